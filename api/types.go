package api

import (
	"time"

	"github.com/kmjones1979/ampersend-sdk/types"
)

// PaymentEventType is the lifecycle stage reported to the API.
type PaymentEventType string

const (
	EventSending  PaymentEventType = "sending"
	EventAccepted PaymentEventType = "accepted"
	EventRejected PaymentEventType = "rejected"
	EventError    PaymentEventType = "error"
)

type PaymentEvent struct {
	Type      PaymentEventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Details   map[string]any   `json:"details,omitempty"`
}

type authorizeRequest struct {
	Requirements []types.PaymentRequirements `json:"requirements"`
	Context      map[string]any              `json:"context,omitempty"`
}

// SpendLimits are the remaining budgets reported with an authorization.
type SpendLimits struct {
	DailyRemaining   string `json:"dailyRemaining,omitempty"`
	MonthlyRemaining string `json:"monthlyRemaining,omitempty"`
}

type AuthorizeResponse struct {
	Authorized bool         `json:"authorized"`
	Reason     string       `json:"reason,omitempty"`
	Limits     *SpendLimits `json:"limits,omitempty"`
}

type eventRequest struct {
	ID      string                `json:"id"`
	Payment *types.PaymentPayload `json:"payment"`
	Event   PaymentEvent          `json:"event"`
}

type EventResponse struct {
	Received  bool   `json:"received"`
	PaymentID string `json:"paymentId,omitempty"`
}

type nonceResponse struct {
	Nonce     string `json:"nonce"`
	SessionID string `json:"sessionId"`
}

type loginRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	SessionID string `json:"sessionId"`
}

type loginResponse struct {
	Token        string `json:"token"`
	AgentAddress string `json:"agentAddress"`
	ExpiresAt    string `json:"expiresAt"`
}
