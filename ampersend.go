// Package ampersend wires x402 payments into A2A agents: a wallet and
// treasurer for buyers, payment enforcement for sellers, and a facilitator
// for verification and settlement.
package ampersend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kmjones1979/ampersend-sdk/a2a"
	"github.com/kmjones1979/ampersend-sdk/api"
	"github.com/kmjones1979/ampersend-sdk/client"
	"github.com/kmjones1979/ampersend-sdk/facilitator"
	"github.com/kmjones1979/ampersend-sdk/logger"
	"github.com/kmjones1979/ampersend-sdk/metrics"
	"github.com/kmjones1979/ampersend-sdk/server"
	"github.com/kmjones1979/ampersend-sdk/treasurer"
	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/utils"
	"github.com/kmjones1979/ampersend-sdk/verification"
	"github.com/kmjones1979/ampersend-sdk/wallet"
)

// batchLimit bounds concurrent facilitator calls in BatchVerify and BatchSettle.
const batchLimit = 8

// SDK is the main struct that ties the buyer and seller sides together.
type SDK struct {
	config      *types.Config
	wallet      wallet.Wallet
	treasurer   treasurer.Treasurer
	api         *api.Client
	facilitator facilitator.Interface
	verifier    *verification.VerificationService

	logger   logger.Logger
	metrics  metrics.Recorder
	selector treasurer.RequirementSelector

	// timeout bounds remote API calls; facilitator calls keep their own per-operation timeouts.
	timeout    time.Duration
	httpClient *http.Client
}

// New validates config and builds the wallet, treasurer and facilitator it
// describes. A smart-account wallet is used when Wallet.SmartAccountAddress is
// set. Payments are authorized remotely when API is set and locally otherwise.
func New(config *types.Config, opts ...Option) (*SDK, error) {
	if config == nil {
		return nil, &types.X402Error{Code: types.ErrConfigError, Message: "config is required"}
	}
	if err := utils.ValidateConfig(config); err != nil {
		return nil, err
	}

	x := &SDK{config: config, timeout: 30 * time.Second}
	if config.DefaultTimeout > 0 {
		x.timeout = config.DefaultTimeout
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.logger == nil && config.LogLevel != "" {
		x.logger = logger.NewZapLogger(config.LogLevel)
	}
	x.logger = logger.OrNoop(x.logger)
	if x.metrics == nil && config.EnableMetrics {
		x.metrics = metrics.NewPrometheusRecorder()
	}
	x.metrics = metrics.OrNoop(x.metrics)
	if x.selector == nil {
		x.selector = treasurer.SelectIndex(config.RequirementIndex)
	}

	w, err := newWallet(config.Wallet)
	if err != nil {
		return nil, err
	}
	x.wallet = w

	topts := []treasurer.Option{treasurer.WithSelector(x.selector), treasurer.WithLogger(x.logger)}
	if config.API != nil {
		timeout := x.timeout
		if config.API.TimeoutMs > 0 {
			timeout = time.Duration(config.API.TimeoutMs) * time.Millisecond
		}
		x.api = api.NewClient(api.Options{
			BaseURL:              config.API.BaseURL,
			SessionKeyPrivateKey: config.Wallet.PrivateKey,
			Timeout:              timeout,
			HTTPClient:           x.httpClient,
			Logger:               x.logger,
		})
		x.treasurer = api.NewTreasurer(x.api, w, topts...)
	} else {
		x.treasurer = treasurer.NewNaiveTreasurer(w, topts...)
	}

	if x.facilitator == nil {
		x.facilitator = x.newFacilitator()
	}
	x.verifier = verification.NewVerificationService()

	x.logger.Debug("ampersend initialized", map[string]any{
		"payer":        w.Address().Hex(),
		"remote_authz": config.API != nil,
	})
	return x, nil
}

func newWallet(cfg types.WalletConfig) (wallet.Wallet, error) {
	if cfg.SmartAccountAddress != "" {
		return wallet.NewSmartAccountWallet(wallet.SmartAccountConfig{
			SessionKey:          cfg.PrivateKey,
			SmartAccountAddress: cfg.SmartAccountAddress,
			ValidatorAddress:    cfg.ValidatorAddress,
		})
	}
	return wallet.NewAccountWallet(cfg.PrivateKey)
}

func (x *SDK) newFacilitator() *facilitator.Client {
	url := facilitator.DefaultURL
	fc := x.config.Facilitator
	if fc != nil {
		url = fc.URL
	}
	c := facilitator.NewClient(url)
	c.HTTPClient = x.httpClient
	c.Logger = x.logger
	if fc != nil {
		c.Authorization = fc.Authorization
		c.MaxRetries = fc.MaxRetries
	}
	return c
}

// Wallet returns the wallet that signs payments.
func (x *SDK) Wallet() wallet.Wallet { return x.wallet }

// Treasurer returns the treasurer that decides on payments.
func (x *SDK) Treasurer() treasurer.Treasurer { return x.treasurer }

// Facilitator returns the facilitator used by Verify, Settle and server executors.
func (x *SDK) Facilitator() facilitator.Interface { return x.facilitator }

// NewClient returns a negotiation client over t that pays with the SDK's treasurer.
func (x *SDK) NewClient(t client.Transport, opts ...client.Option) (*client.Client, error) {
	base := []client.Option{client.WithLogger(x.logger), client.WithMetrics(x.metrics)}
	return client.New(t, x.treasurer, append(base, opts...)...)
}

// NewPaymentExecutor wraps delegate with payment enforcement.
func (x *SDK) NewPaymentExecutor(delegate server.AgentExecutor, opts ...server.Option) *server.PaymentExecutor {
	return server.NewPaymentExecutor(delegate, x.facilitator, x.serverOptions(opts)...)
}

// NewServerExecutor returns the full seller stack: task bookkeeping around
// payment enforcement around delegate.
func (x *SDK) NewServerExecutor(delegate server.AgentExecutor, opts ...server.Option) *server.Executor {
	opts = x.serverOptions(opts)
	return server.NewExecutor(server.NewPaymentExecutor(delegate, x.facilitator, opts...), opts...)
}

func (x *SDK) serverOptions(opts []server.Option) []server.Option {
	base := []server.Option{
		server.WithLogger(x.logger),
		server.WithMetrics(x.metrics),
		server.WithVerifier(x.verifier),
	}
	return append(base, opts...)
}

// Verify verifies a payment against requirements with the facilitator.
func (x *SDK) Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error) {
	if req == nil {
		return nil, &types.X402Error{Code: types.ErrInvalidPayload, Message: "verify request is required"}
	}
	return x.facilitator.Verify(ctx, &req.PaymentPayload, &req.PaymentRequirements)
}

// Settle settles a payment through the facilitator.
func (x *SDK) Settle(ctx context.Context, req *types.VerifyRequest) (*types.SettleResponse, error) {
	if req == nil {
		return nil, &types.X402Error{Code: types.ErrInvalidPayload, Message: "settle request is required"}
	}
	return x.facilitator.Settle(ctx, &req.PaymentPayload, &req.PaymentRequirements)
}

// BatchVerify verifies multiple payments concurrently. Results keep the order
// of reqs; the first error cancels the rest.
func (x *SDK) BatchVerify(ctx context.Context, reqs []*types.VerifyRequest) ([]*types.VerifyResponse, error) {
	return batch(ctx, reqs, x.Verify)
}

// BatchSettle settles multiple payments concurrently.
func (x *SDK) BatchSettle(ctx context.Context, reqs []*types.VerifyRequest) ([]*types.SettleResponse, error) {
	return batch(ctx, reqs, x.Settle)
}

func batch[T any](ctx context.Context, reqs []*types.VerifyRequest, fn func(context.Context, *types.VerifyRequest) (T, error)) ([]T, error) {
	if len(reqs) == 0 {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidPayload,
			Message: "at least one request is required",
		}
	}

	out := make([]T, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchLimit)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := fn(gctx, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Supported lists the payment kinds the facilitator accepts.
func (x *SDK) Supported(ctx context.Context) (*types.SupportedResponse, error) {
	return x.facilitator.Supported(ctx)
}

// QuickVerify performs basic validation without a facilitator round trip.
func (x *SDK) QuickVerify(req *types.VerifyRequest) (*types.VerifyResponse, error) {
	if req == nil {
		return nil, &types.X402Error{Code: types.ErrInvalidPayload, Message: "verify request is required"}
	}
	return x.verifier.QuickVerify(&req.PaymentPayload, &req.PaymentRequirements)
}

// Close drops the remote API session and flushes the logger.
func (x *SDK) Close() {
	if x.api != nil {
		x.api.ClearAuth()
	}
	if s, ok := x.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

// Version information
const (
	Version         = "0.1.0"
	ProtocolVersion = int(types.X402Version1)
)

// GetVersion returns version information
func GetVersion() map[string]any {
	networks := make([]string, 0, len(types.SupportedNetworks()))
	for _, n := range types.SupportedNetworks() {
		networks = append(networks, n.String())
	}
	return map[string]any{
		"library_version":    Version,
		"protocol_version":   ProtocolVersion,
		"supported_networks": networks,
		"supported_schemes":  []string{string(types.SchemeExact)},
		"a2a_extension":      a2a.X402ExtensionURI,
	}
}
