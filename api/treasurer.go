package api

import (
	"context"
	"fmt"
	"time"

	"github.com/kmjones1979/ampersend-sdk/logger"
	"github.com/kmjones1979/ampersend-sdk/treasurer"
	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/wallet"
)

// PaymentAPI is the part of Client the treasurer depends on.
type PaymentAPI interface {
	AuthorizePayment(ctx context.Context, requirements []types.PaymentRequirements, pctx map[string]any) (*AuthorizeResponse, error)
	ReportPaymentEvent(ctx context.Context, id string, payment *types.PaymentPayload, event PaymentEvent) (*EventResponse, error)
}

var _ PaymentAPI = (*Client)(nil)

// Treasurer asks the payment API before every payment and reports each
// payment's lifecycle back to it.
type Treasurer struct {
	api      PaymentAPI
	wallet   wallet.Wallet
	selector treasurer.RequirementSelector
	logger   logger.Logger
	now      func() time.Time
}

var _ treasurer.Treasurer = (*Treasurer)(nil)

func NewTreasurer(api PaymentAPI, w wallet.Wallet, opts ...treasurer.Option) *Treasurer {
	sel, log := treasurer.ApplyOptions(opts...)
	return &Treasurer{api: api, wallet: w, selector: sel, logger: log, now: time.Now}
}

var statusEvents = map[types.PaymentStatus]PaymentEventType{
	types.PaymentSubmitted: EventSending,
	types.PaymentFailed:    EventError,
	types.PaymentRejected:  EventRejected,
	types.PaymentVerified:  EventAccepted,
	types.PaymentCompleted: EventAccepted,
}

func (t *Treasurer) OnPaymentRequired(ctx context.Context, required *types.PaymentRequiredResponse, pctx map[string]any) (*treasurer.Authorization, error) {
	if required == nil {
		return nil, fmt.Errorf("%w: empty payment-required response", treasurer.ErrNoMatchingRequirement)
	}

	result, err := t.api.AuthorizePayment(ctx, required.Accepts, pctx)
	if err != nil {
		return nil, fmt.Errorf("authorize payment: %w", err)
	}
	if !result.Authorized {
		t.logger.Info("payment not authorized", map[string]any{"reason": result.Reason})
		return nil, nil
	}

	req, err := t.selector(required.Accepts)
	if err != nil {
		return nil, err
	}
	payment, err := t.wallet.CreatePayment(req)
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	id := treasurer.NewAuthorizationID()
	_, err = t.api.ReportPaymentEvent(ctx, id, payment, PaymentEvent{
		Type:      EventSending,
		Timestamp: t.now().UTC(),
		Details:   pctx,
	})
	if err != nil {
		return nil, fmt.Errorf("report payment event: %w", err)
	}

	return &treasurer.Authorization{ID: id, Payment: payment}, nil
}

func (t *Treasurer) OnStatus(ctx context.Context, status types.PaymentStatus, auth *treasurer.Authorization, pctx map[string]any) error {
	eventType, ok := statusEvents[status]
	if !ok || auth == nil {
		return nil
	}
	_, err := t.api.ReportPaymentEvent(ctx, auth.ID, auth.Payment, PaymentEvent{
		Type:      eventType,
		Timestamp: t.now().UTC(),
		Details:   pctx,
	})
	return err
}
