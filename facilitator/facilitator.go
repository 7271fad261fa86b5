// Package facilitator verifies and settles x402 payments through a remote
// facilitator service.
package facilitator

import (
	"context"
	"fmt"
	"time"

	"github.com/kmjones1979/ampersend-sdk/types"
)

// DefaultURL is the public x402 facilitator.
const DefaultURL = "https://x402.org/facilitator"

// Interface is what payment enforcement needs from a facilitator.
type Interface interface {
	Verify(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirements) (*types.VerifyResponse, error)
	Settle(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirements) (*types.SettleResponse, error)
	Supported(ctx context.Context) (*types.SupportedResponse, error)
}

// TimeoutConfig bounds facilitator calls made with a context that has no deadline.
type TimeoutConfig struct {
	VerifyTimeout time.Duration
	// SettleTimeout covers the on-chain transfer, so it is much longer.
	SettleTimeout  time.Duration
	RequestTimeout time.Duration
}

var DefaultTimeouts = TimeoutConfig{
	VerifyTimeout:  5 * time.Second,
	SettleTimeout:  60 * time.Second,
	RequestTimeout: 120 * time.Second,
}

func (tc TimeoutConfig) Validate() error {
	if tc.VerifyTimeout <= 0 {
		return fmt.Errorf("verify timeout must be positive, got %v", tc.VerifyTimeout)
	}
	if tc.SettleTimeout <= 0 {
		return fmt.Errorf("settle timeout must be positive, got %v", tc.SettleTimeout)
	}
	if tc.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", tc.RequestTimeout)
	}
	if tc.SettleTimeout < tc.VerifyTimeout {
		return fmt.Errorf("settle timeout (%v) should be >= verify timeout (%v)", tc.SettleTimeout, tc.VerifyTimeout)
	}
	return nil
}
