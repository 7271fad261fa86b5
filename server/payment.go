package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/kmjones1979/ampersend-sdk/a2a"
	"github.com/kmjones1979/ampersend-sdk/facilitator"
	"github.com/kmjones1979/ampersend-sdk/metrics"
	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/verification"
)

// PaymentVerifiedKey is set to true in RequestContext.State while the
// delegate serves a request whose payment has been verified.
const PaymentVerifiedKey = "x402_payment_verified"

// PaymentExecutor turns a delegate's *PaymentRequiredError into an x402
// payment request, and verifies then settles the payment when the caller
// answers with one.
type PaymentExecutor struct {
	delegate    AgentExecutor
	facilitator facilitator.Interface
	opts        options
}

var _ AgentExecutor = (*PaymentExecutor)(nil)

func NewPaymentExecutor(delegate AgentExecutor, f facilitator.Interface, opts ...Option) *PaymentExecutor {
	return &PaymentExecutor{delegate: delegate, facilitator: f, opts: applyOptions(opts)}
}

func (p *PaymentExecutor) Execute(ctx context.Context, rc *RequestContext, q EventQueue) error {
	rc.ensureDefaults()
	if status, ok := a2a.MessagePaymentStatus(rc.Message); ok && status == types.PaymentSubmitted {
		return p.executePaid(ctx, rc, q)
	}

	err := p.delegate.Execute(ctx, rc, q)
	var pre *PaymentRequiredError
	if errors.As(err, &pre) {
		return p.requestPayment(ctx, rc, q, pre)
	}
	return err
}

func (p *PaymentExecutor) Cancel(ctx context.Context, rc *RequestContext, q EventQueue) error {
	return p.delegate.Cancel(ctx, rc, q)
}

func (p *PaymentExecutor) requestPayment(ctx context.Context, rc *RequestContext, q EventQueue, pre *PaymentRequiredError) error {
	rc.Call.Activate(a2a.X402ExtensionURI)

	if !rc.Call.IsRequested(a2a.X402ExtensionURI) {
		p.opts.logger.Warn("client did not request the x402 extension", map[string]any{"task_id": rc.TaskID})
		p.opts.metrics.IncCounter(metrics.ExtensionMissing, nil)
		text := "Client does not support required extension: " + a2a.X402ExtensionURI
		return q.Enqueue(ctx, statusUpdate(rc, a2a.TaskStateFailed, a2a.NewAgentMessage(rc.TaskID, rc.ContextID, text), true))
	}

	required := &types.PaymentRequiredResponse{
		X402Version: int(types.X402Version1),
		Accepts:     pre.Accepts,
		Error:       pre.Message,
	}
	if err := p.opts.store.Put(ctx, rc.TaskID, required); err != nil {
		return err
	}

	p.opts.metrics.IncCounter(metrics.PaymentRequired, nil)
	p.opts.logger.Info("payment required", map[string]any{"task_id": rc.TaskID, "accepts": len(pre.Accepts)})
	return q.Enqueue(ctx, a2a.PaymentStatusUpdate(rc.TaskID, rc.ContextID, a2a.TaskStateInputRequired,
		types.PaymentRequired, pre.Error(), map[string]any{a2a.MetadataRequired: required}, true))
}

func (p *PaymentExecutor) executePaid(ctx context.Context, rc *RequestContext, q EventQueue) error {
	rc.Call.Activate(a2a.X402ExtensionURI)

	payload, err := a2a.PaymentPayloadOf(rc.Message)
	if err != nil {
		return p.reject(ctx, rc, q, "", verification.ReasonInvalidPayload, err)
	}
	network := payload.Network

	required, err := p.opts.store.Get(ctx, rc.TaskID)
	if err != nil {
		return p.reject(ctx, rc, q, network, verification.ReasonInvalidRequirements, err)
	}
	req, reason := matchRequirement(required.Accepts, payload)
	if req == nil {
		return p.reject(ctx, rc, q, network, reason, nil)
	}

	if p.opts.verifier != nil {
		resp, err := p.opts.verifier.QuickVerify(payload, req)
		if err != nil {
			return p.reject(ctx, rc, q, network, verification.ReasonInvalidPayload, err)
		}
		if !resp.IsValid {
			return p.reject(ctx, rc, q, network, resp.InvalidReason, nil)
		}
	}

	start := p.opts.now()
	verified, err := p.facilitator.Verify(ctx, payload, req)
	p.opts.metrics.ObserveLatency(metrics.OpVerify, p.opts.now().Sub(start), metrics.Network(network))
	switch {
	case errors.Is(err, types.ErrVerification):
		return p.reject(ctx, rc, q, network, err.Error(), nil)
	case err != nil:
		return p.fail(ctx, rc, q, network, err.Error(), nil)
	case !verified.IsValid:
		return p.reject(ctx, rc, q, network, verified.InvalidReason, nil)
	}

	p.opts.metrics.IncCounter(metrics.PaymentVerified, metrics.Network(network))
	p.opts.logger.Info("payment verified", map[string]any{"task_id": rc.TaskID, "payer": verified.Payer, "network": network})
	err = q.Enqueue(ctx, a2a.PaymentStatusUpdate(rc.TaskID, rc.ContextID, a2a.TaskStateWorking,
		types.PaymentVerified, "Payment verified", nil, false))
	if err != nil {
		return err
	}

	rc.State.Set(PaymentVerifiedKey, true)
	if err := p.delegate.Execute(ctx, rc, q); err != nil {
		// Not settled, so the payer keeps their funds.
		return err
	}

	start = p.opts.now()
	settled, err := p.facilitator.Settle(ctx, payload, req)
	p.opts.metrics.ObserveLatency(metrics.OpSettle, p.opts.now().Sub(start), metrics.Network(network))
	if err != nil {
		return p.fail(ctx, rc, q, network, err.Error(), nil)
	}
	if !settled.Success {
		return p.fail(ctx, rc, q, network, settled.ErrorReason, []types.SettleResponse{*settled})
	}

	if err := p.opts.store.Delete(ctx, rc.TaskID); err != nil {
		p.opts.logger.Warn("failed to drop settled requirements", map[string]any{"task_id": rc.TaskID, "error": err})
	}
	p.opts.metrics.IncCounter(metrics.PaymentSettled, metrics.Network(network))
	p.opts.logger.Info("payment settled", map[string]any{"task_id": rc.TaskID, "transaction": settled.Transaction, "network": network})
	return q.Enqueue(ctx, a2a.PaymentStatusUpdate(rc.TaskID, rc.ContextID, a2a.TaskStateCompleted,
		types.PaymentCompleted, "Payment completed", map[string]any{a2a.MetadataReceipts: []types.SettleResponse{*settled}}, true))
}

// reject ends the task because the payment itself is unacceptable.
func (p *PaymentExecutor) reject(ctx context.Context, rc *RequestContext, q EventQueue, network, reason string, cause error) error {
	fields := map[string]any{"task_id": rc.TaskID, "reason": reason}
	if cause != nil {
		fields["error"] = cause
	}
	p.opts.logger.Warn("payment rejected", fields)
	p.opts.metrics.IncCounter(metrics.PaymentRejected, metrics.Network(network))
	return q.Enqueue(ctx, a2a.PaymentStatusUpdate(rc.TaskID, rc.ContextID, a2a.TaskStateFailed,
		types.PaymentRejected, fmt.Sprintf("Payment verification failed: %s", reason),
		map[string]any{a2a.MetadataError: reason}, true))
}

// fail ends the task because the payment could not be processed.
func (p *PaymentExecutor) fail(ctx context.Context, rc *RequestContext, q EventQueue, network, reason string, receipts []types.SettleResponse) error {
	p.opts.logger.Error("payment failed", map[string]any{"task_id": rc.TaskID, "reason": reason})
	p.opts.metrics.IncCounter(metrics.PaymentFailed, metrics.Network(network))
	extra := map[string]any{a2a.MetadataError: reason}
	if len(receipts) > 0 {
		extra[a2a.MetadataReceipts] = receipts
	}
	return q.Enqueue(ctx, a2a.PaymentStatusUpdate(rc.TaskID, rc.ContextID, a2a.TaskStateFailed,
		types.PaymentFailed, fmt.Sprintf("Payment failed: %s", reason), extra, true))
}

// matchRequirement picks the accepted requirement the payload was made for.
func matchRequirement(accepts []types.PaymentRequirements, payload *types.PaymentPayload) (*types.PaymentRequirements, string) {
	reason := verification.ReasonInvalidScheme
	for i := range accepts {
		if accepts[i].Scheme != payload.Scheme {
			continue
		}
		reason = verification.ReasonInvalidNetwork
		if accepts[i].Network == payload.Network {
			return &accepts[i], ""
		}
	}
	return nil, reason
}

func statusUpdate(rc *RequestContext, state a2a.TaskState, msg *a2a.Message, final bool) *a2a.TaskStatusUpdateEvent {
	return &a2a.TaskStatusUpdateEvent{
		Kind:      a2a.KindStatusUpdate,
		TaskID:    rc.TaskID,
		ContextID: rc.ContextID,
		Status:    a2a.TaskStatus{State: state, Message: msg, Timestamp: a2a.Now()},
		Final:     final,
	}
}
