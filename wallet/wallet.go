// Package wallet turns payment requirements into signed EIP-3009 payment payloads.
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/utils"
	"github.com/kmjones1979/ampersend-sdk/utils/eip712"
)

// Wallet creates a signed payment for a single requirement.
type Wallet interface {
	CreatePayment(req *types.PaymentRequirements) (*types.PaymentPayload, error)
	// Address is the payer named in every authorization the wallet signs.
	Address() common.Address
}

// validAfterSkew backdates validAfter to absorb clock drift between client and chain.
const validAfterSkew = 60 * time.Second

// NonceFunc produces a fresh 32-byte authorization nonce.
type NonceFunc func() ([32]byte, error)

type Option func(*signer)

// WithNonceFunc overrides the crypto/rand nonce source.
func WithNonceFunc(f NonceFunc) Option {
	return func(s *signer) { s.nonce = f }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *signer) { s.now = now }
}

// signer holds what both wallet variants share: a key, a nonce source and a clock.
type signer struct {
	key   *ecdsa.PrivateKey
	nonce NonceFunc
	now   func() time.Time
}

func newSigner(privateKeyHex string, opts []Option) (*signer, error) {
	key, err := utils.PrivateKeyFromHex(privateKeyHex)
	if err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid private key: %v", err),
		}
	}
	s := &signer{key: key, nonce: utils.RandomNonce, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *signer) address() common.Address {
	return utils.AddressFromPrivateKey(s.key)
}

// authorize builds and signs a TransferWithAuthorization from `from` to req.PayTo.
// The returned signature is 65 bytes with V as 27/28.
func (s *signer) authorize(from common.Address, req *types.PaymentRequirements) (eip712.TransferWithAuthorization, []byte, error) {
	var msg eip712.TransferWithAuthorization

	if req == nil {
		return msg, nil, &types.X402Error{Code: types.ErrInvalidRequirements, Message: "payment requirement is nil"}
	}
	if types.PaymentScheme(req.Scheme) != types.SchemeExact {
		return msg, nil, &types.X402Error{
			Code:    types.ErrUnsupportedScheme,
			Message: fmt.Sprintf("unsupported scheme: %s", req.Scheme),
		}
	}
	if !common.IsHexAddress(req.PayTo) {
		return msg, nil, &types.X402Error{
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("payTo is not an address: %q", req.PayTo),
		}
	}
	value, err := req.Amount()
	if err != nil {
		return msg, nil, err
	}
	domain, err := eip712.DomainFor(req)
	if err != nil {
		return msg, nil, err
	}
	nonce, err := s.nonce()
	if err != nil {
		return msg, nil, &types.X402Error{
			Code:    types.ErrSigningFailed,
			Message: fmt.Sprintf("failed to generate nonce: %v", err),
		}
	}

	now := s.now()
	msg = eip712.TransferWithAuthorization{
		From:        from,
		To:          common.HexToAddress(req.PayTo),
		Value:       value,
		ValidAfter:  big.NewInt(now.Add(-validAfterSkew).Unix()),
		ValidBefore: big.NewInt(now.Add(time.Duration(req.MaxTimeoutSeconds) * time.Second).Unix()),
		Nonce:       nonce,
	}

	digest, err := eip712.Digest(domain, msg)
	if err != nil {
		return msg, nil, &types.X402Error{
			Code:    types.ErrSigningFailed,
			Message: fmt.Sprintf("failed to hash authorization: %v", err),
		}
	}
	sig, err := utils.SignHash(digest.Bytes(), s.key)
	if err != nil {
		return msg, nil, &types.X402Error{
			Code:    types.ErrSigningFailed,
			Message: err.Error(),
		}
	}
	return msg, sig, nil
}

func newPayload(req *types.PaymentRequirements, msg eip712.TransferWithAuthorization, signature string) *types.PaymentPayload {
	return &types.PaymentPayload{
		X402Version: int(types.X402Version1),
		Scheme:      req.Scheme,
		Network:     req.Network,
		Payload: types.ExactEvmPayload{
			Signature:     signature,
			Authorization: msg.ToAuthorization(),
		},
	}
}
