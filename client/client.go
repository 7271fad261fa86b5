// Package client sends A2A messages and settles x402 payment requests on the
// caller's behalf.
package client

import (
	"context"
	"errors"

	"github.com/kmjones1979/ampersend-sdk/a2a"
	"github.com/kmjones1979/ampersend-sdk/logger"
	"github.com/kmjones1979/ampersend-sdk/metrics"
	"github.com/kmjones1979/ampersend-sdk/treasurer"
)

// Transport delivers one message to a remote agent and streams its response.
type Transport interface {
	SendMessage(ctx context.Context, msg *a2a.Message) (a2a.EventStream, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, msg *a2a.Message) (a2a.EventStream, error)

func (f TransportFunc) SendMessage(ctx context.Context, msg *a2a.Message) (a2a.EventStream, error) {
	return f(ctx, msg)
}

var (
	ErrNilTransport = errors.New("client: transport is required")
	ErrNilTreasurer = errors.New("client: treasurer is required")
)

// Client wraps a Transport. When a remote agent answers with payment-required,
// the client asks its treasurer for a payment and resubmits it in the same
// task, forwarding every event to the caller.
type Client struct {
	transport Transport
	treasurer treasurer.Treasurer
	logger    logger.Logger
	metrics   metrics.Recorder
}

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) { c.metrics = r }
}

func New(t Transport, tr treasurer.Treasurer, opts ...Option) (*Client, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	if tr == nil {
		return nil, ErrNilTreasurer
	}
	c := &Client{transport: t, treasurer: tr}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrNoop(c.logger)
	c.metrics = metrics.OrNoop(c.metrics)
	return c, nil
}

type callOptions struct {
	paymentContext map[string]any
}

// CallOption configures a single SendMessage call.
type CallOption func(*callOptions)

// WithPaymentContext passes pctx to the treasurer for every decision made
// during the call.
func WithPaymentContext(pctx map[string]any) CallOption {
	return func(o *callOptions) { o.paymentContext = pctx }
}

// SendMessage sends msg and returns the combined response stream. The caller
// must drain or Close it.
func (c *Client) SendMessage(ctx context.Context, msg *a2a.Message, opts ...CallOption) (a2a.EventStream, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	s, err := c.transport.SendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	return &exchange{ctx: ctx, client: c, pctx: co.paymentContext, streams: []a2a.EventStream{s}}, nil
}
