// Package verification checks EIP-3009 payment payloads without touching a chain.
package verification

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/utils"
	"github.com/kmjones1979/ampersend-sdk/utils/eip712"
)

// Verifier is satisfied by anything that can pre-check a payment locally.
type Verifier interface {
	QuickVerify(payload *types.PaymentPayload, requirements *types.PaymentRequirements) (*types.VerifyResponse, error)
}

// VerificationService performs offline checks. Balance, nonce usage and
// contract-wallet signatures are left to the facilitator.
type VerificationService struct {
	now func() time.Time
}

var _ Verifier = (*VerificationService)(nil)

type Option func(*VerificationService)

// WithClock overrides time.Now for window checks.
func WithClock(now func() time.Time) Option {
	return func(s *VerificationService) { s.now = now }
}

func NewVerificationService(opts ...Option) *VerificationService {
	s := &VerificationService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func invalid(reason, payer string) *types.VerifyResponse {
	return &types.VerifyResponse{IsValid: false, InvalidReason: reason, Payer: payer}
}

// QuickVerify validates a payment against a requirement. An invalid payment is
// reported in the response; the error is reserved for nil inputs.
func (s *VerificationService) QuickVerify(
	payload *types.PaymentPayload,
	requirements *types.PaymentRequirements,
) (*types.VerifyResponse, error) {
	if payload == nil || requirements == nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidPayload,
			Message: "payload and requirements are required",
		}
	}

	auth := payload.Payload.Authorization
	payer := auth.From

	if err := requirements.Validate(); err != nil {
		return invalid(ReasonInvalidRequirements, payer), nil
	}
	if payload.Scheme != requirements.Scheme || types.PaymentScheme(payload.Scheme) != types.SchemeExact {
		return invalid(ReasonInvalidScheme, payer), nil
	}
	if payload.Network != requirements.Network || !types.Network(payload.Network).IsEVM() {
		return invalid(ReasonInvalidNetwork, payer), nil
	}

	msg, err := eip712.FromAuthorization(auth)
	if err != nil {
		return invalid(ReasonInvalidPayload, payer), nil
	}

	// 1. Recipient must be payTo
	if !strings.EqualFold(auth.To, requirements.PayTo) {
		return invalid(ReasonRecipientMismatch, payer), nil
	}

	// 2. Verify authorization value ≥ maxAmountRequired
	enough, err := utils.AmountAtLeast(auth.Value, requirements.MaxAmountRequired)
	if err != nil || !enough {
		return invalid(ReasonInsufficientValue, payer), nil
	}

	// 3. Verify validAfter ≤ now ≤ validBefore
	now := big.NewInt(s.now().Unix())
	if now.Cmp(msg.ValidAfter) < 0 {
		return invalid(ReasonValidAfter, payer), nil
	}
	if now.Cmp(msg.ValidBefore) > 0 {
		return invalid(ReasonValidBefore, payer), nil
	}

	// 4. Signature
	sig, err := hexutil.Decode(payload.Payload.Signature)
	if err != nil {
		return invalid(ReasonInvalidSignature, payer), nil
	}
	switch len(sig) {
	case 65:
		domain, err := eip712.DomainFor(requirements)
		if err != nil {
			return invalid(ReasonInvalidRequirements, payer), nil
		}
		digest, err := eip712.Digest(domain, msg)
		if err != nil {
			return nil, fmt.Errorf("digest: %w", err)
		}
		signer, err := eip712.RecoverSigner(digest, sig)
		if err != nil || signer != msg.From {
			return invalid(ReasonInvalidSignature, payer), nil
		}
	case 85:
		// ERC-1271 envelope, validated on chain by the account
	default:
		return invalid(ReasonInvalidSignature, payer), nil
	}

	return &types.VerifyResponse{IsValid: true, Payer: payer}, nil
}
