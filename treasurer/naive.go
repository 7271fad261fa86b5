package treasurer

import (
	"context"
	"fmt"

	"github.com/kmjones1979/ampersend-sdk/logger"
	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/wallet"
)

// NaiveTreasurer pays every request it is asked about. Useful for tests and
// trusted environments; it has no spending limits.
type NaiveTreasurer struct {
	wallet   wallet.Wallet
	selector RequirementSelector
	logger   logger.Logger
}

var _ Treasurer = (*NaiveTreasurer)(nil)

type Option func(*options)

type options struct {
	selector RequirementSelector
	logger   logger.Logger
}

func WithSelector(s RequirementSelector) Option {
	return func(o *options) { o.selector = s }
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ApplyOptions resolves options with defaults. Exposed for treasurers built
// outside this package.
func ApplyOptions(opts ...Option) (RequirementSelector, logger.Logger) {
	o := options{selector: SelectFirst(), logger: logger.NoopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.selector == nil {
		o.selector = SelectFirst()
	}
	return o.selector, logger.OrNoop(o.logger)
}

func NewNaiveTreasurer(w wallet.Wallet, opts ...Option) *NaiveTreasurer {
	sel, log := ApplyOptions(opts...)
	return &NaiveTreasurer{wallet: w, selector: sel, logger: log}
}

func (t *NaiveTreasurer) OnPaymentRequired(_ context.Context, required *types.PaymentRequiredResponse, _ map[string]any) (*Authorization, error) {
	if required == nil {
		return nil, fmt.Errorf("%w: empty payment-required response", ErrNoMatchingRequirement)
	}
	req, err := t.selector(required.Accepts)
	if err != nil {
		return nil, err
	}
	payment, err := t.wallet.CreatePayment(req)
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	auth := &Authorization{ID: NewAuthorizationID(), Payment: payment}
	t.logger.Debug("authorized payment", map[string]any{
		"authorization_id": auth.ID,
		"network":          req.Network,
		"amount":           req.MaxAmountRequired,
	})
	return auth, nil
}

func (t *NaiveTreasurer) OnStatus(context.Context, types.PaymentStatus, *Authorization, map[string]any) error {
	return nil
}
