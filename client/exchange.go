package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kmjones1979/ampersend-sdk/a2a"
	"github.com/kmjones1979/ampersend-sdk/metrics"
	"github.com/kmjones1979/ampersend-sdk/treasurer"
	"github.com/kmjones1979/ampersend-sdk/types"
)

// exchange is the stream returned by SendMessage. streams holds the original
// response at the bottom and the response to a payment submission on top.
// It is not safe for concurrent use.
type exchange struct {
	ctx    context.Context
	client *Client
	pctx   map[string]any

	streams []a2a.EventStream
	auth    *treasurer.Authorization
	// pending is sent on the Recv after the payment-required event is returned.
	pending *a2a.Message
	closed  bool
}

func (x *exchange) Recv() (a2a.Event, error) {
	if x.closed {
		return nil, io.EOF
	}
	if err := x.ctx.Err(); err != nil {
		return nil, err
	}

	if x.pending != nil {
		msg := x.pending
		x.pending = nil
		s, err := x.client.transport.SendMessage(x.ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("send payment submission for task %s: %w", msg.TaskID, err)
		}
		x.streams = append(x.streams, s)
	}

	for len(x.streams) > 0 {
		top := x.streams[len(x.streams)-1]
		ev, err := top.Recv()
		if errors.Is(err, io.EOF) {
			_ = top.Close()
			x.streams = x.streams[:len(x.streams)-1]
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := x.ctx.Err(); err != nil {
			return nil, err
		}
		x.handle(ev)
		return ev, nil
	}
	return nil, io.EOF
}

func (x *exchange) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	var errs []error
	for i := len(x.streams) - 1; i >= 0; i-- {
		if err := x.streams[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	x.streams = nil
	x.pending = nil
	return errors.Join(errs...)
}

// handle inspects ev for x402 metadata and, when the agent asks for payment
// and the treasurer agrees, queues the submission. ev itself is always
// forwarded unchanged.
func (x *exchange) handle(ev a2a.Event) {
	if _, ok := ev.(*a2a.Message); ok {
		return
	}
	task, ok := a2a.TaskOf(ev)
	if !ok {
		return
	}
	status, ok := a2a.PaymentStatusOf(task)
	if !ok {
		return
	}

	log := x.client.logger
	rec := x.client.metrics
	fields := map[string]any{"task_id": task.ID, "state": string(task.Status.State), "payment_status": string(status)}

	if x.auth != nil {
		if err := x.client.treasurer.OnStatus(x.ctx, status, x.auth, x.pctx); err != nil {
			log.Error("treasurer status callback failed", withErr(fields, err))
			rec.IncCounter(metrics.StatusCallbackFail, nil)
		}
	}

	if task.Status.State != a2a.TaskStateInputRequired || status != types.PaymentRequired {
		return
	}
	rec.IncCounter(metrics.PaymentRequired, nil)

	if x.auth != nil {
		log.Error("payment required but have already paid", fields)
		rec.IncCounter(metrics.ProtocolViolation, nil)
		return
	}

	required, err := a2a.PaymentRequiredOf(task)
	if err != nil {
		log.Error("payment required without requirements", withErr(fields, err))
		rec.IncCounter(metrics.ProtocolViolation, nil)
		return
	}

	start := time.Now()
	auth, err := x.client.treasurer.OnPaymentRequired(x.ctx, required, x.pctx)
	rec.ObserveLatency(metrics.OpAuthorize, time.Since(start), nil)
	if err != nil {
		log.Error("treasurer failed to decide on payment", withErr(fields, err))
		rec.IncCounter(metrics.TreasurerError, nil)
		return
	}
	if auth == nil {
		log.Info("treasurer declined to pay", fields)
		rec.IncCounter(metrics.PaymentDeclined, nil)
		return
	}
	if auth.Payment == nil {
		log.Error("treasurer authorized without a payment", fields)
		rec.IncCounter(metrics.TreasurerError, nil)
		return
	}

	x.auth = auth
	rec.IncCounter(metrics.PaymentAuthorized, metrics.Network(auth.Payment.Network))
	log.Info("payment authorized", map[string]any{
		"task_id":          task.ID,
		"authorization_id": auth.ID,
		"network":          auth.Payment.Network,
	})
	x.pending = a2a.NewPaymentSubmission(task.ID, task.ContextID, auth.Payment)
}

func withErr(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err
	return out
}
