package a2a

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/utils"
)

// X402ExtensionURI identifies the x402 payments extension for A2A.
const X402ExtensionURI = "https://github.com/google-agentic-commerce/a2a-x402/blob/main/spec/v0.1"

// Metadata keys used by the x402 extension.
const (
	MetadataStatus   = "x402.payment.status"
	MetadataRequired = "x402.payment.required"
	MetadataPayload  = "x402.payment.payload"
	MetadataReceipts = "x402.payment.receipts"
	MetadataError    = "x402.payment.error"
)

// PaymentSubmissionText is the text part of a payment submission message.
const PaymentSubmissionText = "Payment authorization provided"

var ErrNoPaymentMetadata = errors.New("no x402 payment metadata")

// X402Declaration is the agent card entry advertising x402 support.
func X402Declaration() AgentExtension {
	return AgentExtension{
		URI:         X402ExtensionURI,
		Description: "Supports payments using the x402 protocol.",
		Required:    true,
	}
}

func statusMetadata(t *Task) map[string]any {
	if t == nil || t.Status.Message == nil {
		return nil
	}
	return t.Status.Message.Metadata
}

func statusFrom(md map[string]any) (types.PaymentStatus, bool) {
	switch v := md[MetadataStatus].(type) {
	case string:
		return types.PaymentStatus(v), v != ""
	case types.PaymentStatus:
		return v, v != ""
	}
	return "", false
}

// PaymentStatusOf reads the payment status from a task's status message.
func PaymentStatusOf(t *Task) (types.PaymentStatus, bool) {
	return statusFrom(statusMetadata(t))
}

// MessagePaymentStatus reads the payment status carried on a message.
func MessagePaymentStatus(m *Message) (types.PaymentStatus, bool) {
	if m == nil {
		return "", false
	}
	return statusFrom(m.Metadata)
}

// PaymentRequiredOf reads the payment-required response from a task's status message.
func PaymentRequiredOf(t *Task) (*types.PaymentRequiredResponse, error) {
	raw, ok := statusMetadata(t)[MetadataRequired]
	if !ok || raw == nil {
		return nil, ErrNoPaymentMetadata
	}
	switch v := raw.(type) {
	case *types.PaymentRequiredResponse:
		return v, nil
	case types.PaymentRequiredResponse:
		return &v, nil
	}
	var out types.PaymentRequiredResponse
	if err := utils.DecodeJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", MetadataRequired, err)
	}
	return &out, nil
}

// PaymentPayloadOf reads the submitted payment from a message.
func PaymentPayloadOf(m *Message) (*types.PaymentPayload, error) {
	if m == nil {
		return nil, ErrNoPaymentMetadata
	}
	raw, ok := m.Metadata[MetadataPayload]
	if !ok || raw == nil {
		return nil, ErrNoPaymentMetadata
	}
	switch v := raw.(type) {
	case *types.PaymentPayload:
		return v, nil
	case types.PaymentPayload:
		return &v, nil
	}
	var out types.PaymentPayload
	if err := utils.DecodeJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", MetadataPayload, err)
	}
	return &out, nil
}

// ReceiptsOf reads settlement receipts from a task's status message.
func ReceiptsOf(t *Task) ([]types.SettleResponse, error) {
	raw, ok := statusMetadata(t)[MetadataReceipts]
	if !ok || raw == nil {
		return nil, ErrNoPaymentMetadata
	}
	if v, ok := raw.([]types.SettleResponse); ok {
		return v, nil
	}
	var out []types.SettleResponse
	if err := utils.DecodeJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", MetadataReceipts, err)
	}
	return out, nil
}

// NewPaymentSubmission builds the user message that answers a payment-required
// task. contextID must be the task's context id.
func NewPaymentSubmission(taskID, contextID string, payload *types.PaymentPayload) *Message {
	return &Message{
		Kind:      KindMessage,
		MessageID: uuid.NewString(),
		Role:      RoleUser,
		Parts:     []Part{TextPart(PaymentSubmissionText)},
		TaskID:    taskID,
		ContextID: contextID,
		Metadata: map[string]any{
			MetadataStatus:  string(types.PaymentSubmitted),
			MetadataPayload: payload,
		},
	}
}

// NewAgentMessage builds an agent-authored message with a single text part.
func NewAgentMessage(taskID, contextID, text string) *Message {
	return &Message{
		Kind:      KindMessage,
		MessageID: uuid.NewString(),
		Role:      RoleAgent,
		Parts:     []Part{TextPart(text)},
		TaskID:    taskID,
		ContextID: contextID,
	}
}

// PaymentStatusUpdate builds a status update whose message carries x402 metadata.
// extra is merged over the status key.
func PaymentStatusUpdate(taskID, contextID string, state TaskState, status types.PaymentStatus, text string, extra map[string]any, final bool) *TaskStatusUpdateEvent {
	msg := NewAgentMessage(taskID, contextID, text)
	msg.Metadata = map[string]any{MetadataStatus: string(status)}
	for k, v := range extra {
		msg.Metadata[k] = v
	}
	return &TaskStatusUpdateEvent{
		Kind:      KindStatusUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Status: TaskStatus{
			State:     state,
			Message:   msg,
			Timestamp: Now(),
		},
		Final: final,
	}
}
