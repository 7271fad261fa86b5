package server

import (
	"context"

	"github.com/kmjones1979/ampersend-sdk/types"
)

// BeforeAgentFunc runs before the agent. A non-nil error stops the request.
type BeforeAgentFunc func(ctx context.Context, rc *RequestContext) error

type GateOption func(*PaymentOptions)

func WithPrice(price string) GateOption {
	return func(o *PaymentOptions) { o.Price = price }
}

func WithResource(resource string) GateOption {
	return func(o *PaymentOptions) { o.Resource = resource }
}

func WithNetwork(n types.Network) GateOption {
	return func(o *PaymentOptions) { o.Network = n }
}

func WithDescription(d string) GateOption {
	return func(o *PaymentOptions) { o.Description = d }
}

// WithPaymentMessage sets the text of the payment-required status.
func WithPaymentMessage(m string) GateOption {
	return func(o *PaymentOptions) { o.Message = m }
}

// PaymentGate charges for every agent run. A run whose payment was verified
// passes once; the flag is cleared so a later run in the same request pays again.
func PaymentGate(payTo string, opts ...GateOption) BeforeAgentFunc {
	po := PaymentOptions{
		Price:       "$0.001",
		PayTo:       payTo,
		Resource:    "https://dev.local/a2a/task",
		Network:     types.NetworkBaseSepolia,
		Description: "Payment for this task",
		Message:     "Payment required for task",
	}
	for _, opt := range opts {
		opt(&po)
	}
	return func(_ context.Context, rc *RequestContext) error {
		if rc.State.Bool(PaymentVerifiedKey) {
			rc.State.Set(PaymentVerifiedKey, false)
			return nil
		}
		return RequirePayment(po)
	}
}

type gated struct {
	before BeforeAgentFunc
	next   AgentExecutor
}

// Gated runs before ahead of every Execute on next.
func Gated(before BeforeAgentFunc, next AgentExecutor) AgentExecutor {
	return &gated{before: before, next: next}
}

func (g *gated) Execute(ctx context.Context, rc *RequestContext, q EventQueue) error {
	rc.ensureDefaults()
	if err := g.before(ctx, rc); err != nil {
		return err
	}
	return g.next.Execute(ctx, rc, q)
}

func (g *gated) Cancel(ctx context.Context, rc *RequestContext, q EventQueue) error {
	return g.next.Cancel(ctx, rc, q)
}
