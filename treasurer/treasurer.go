// Package treasurer decides whether and how a client pays for a request.
package treasurer

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/kmjones1979/ampersend-sdk/types"
)

// Authorization is a treasurer's decision to pay, with the signed payment.
type Authorization struct {
	// ID is unique per decision and keys status reports.
	ID      string
	Payment *types.PaymentPayload
}

// Treasurer is consulted whenever a server asks for payment.
//
// OnPaymentRequired returns nil, nil to decline. OnStatus is informational;
// the negotiation engine logs and discards its error.
type Treasurer interface {
	OnPaymentRequired(ctx context.Context, required *types.PaymentRequiredResponse, pctx map[string]any) (*Authorization, error)
	OnStatus(ctx context.Context, status types.PaymentStatus, auth *Authorization, pctx map[string]any) error
}

// NewAuthorizationID returns a random uuid in 32-char hex form.
func NewAuthorizationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
