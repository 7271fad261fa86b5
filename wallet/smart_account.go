package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/kmjones1979/ampersend-sdk/types"
)

// SmartAccountConfig describes a smart contract account driven by a session key.
type SmartAccountConfig struct {
	// SessionKey is the hex private key of the key registered with the validator.
	SessionKey          string
	SmartAccountAddress string
	ValidatorAddress    string
}

// SmartAccountWallet pays from a smart account. Signatures are produced by the
// session key and wrapped for ERC-1271 validation by the account's validator module.
type SmartAccountWallet struct {
	signer    *signer
	account   common.Address
	validator common.Address
}

var _ Wallet = (*SmartAccountWallet)(nil)

func NewSmartAccountWallet(cfg SmartAccountConfig, opts ...Option) (*SmartAccountWallet, error) {
	if !common.IsHexAddress(cfg.SmartAccountAddress) {
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid smart account address: %q", cfg.SmartAccountAddress),
		}
	}
	if !common.IsHexAddress(cfg.ValidatorAddress) {
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid validator address: %q", cfg.ValidatorAddress),
		}
	}
	s, err := newSigner(cfg.SessionKey, opts)
	if err != nil {
		return nil, err
	}
	return &SmartAccountWallet{
		signer:    s,
		account:   common.HexToAddress(cfg.SmartAccountAddress),
		validator: common.HexToAddress(cfg.ValidatorAddress),
	}, nil
}

// Address is the smart account, which is the payer in authorization.from.
func (w *SmartAccountWallet) Address() common.Address {
	return w.account
}

// SessionAddress is the EOA behind the session key.
func (w *SmartAccountWallet) SessionAddress() common.Address {
	return w.signer.address()
}

func (w *SmartAccountWallet) CreatePayment(req *types.PaymentRequirements) (*types.PaymentPayload, error) {
	msg, sig, err := w.signer.authorize(w.account, req)
	if err != nil {
		return nil, err
	}
	encoded, err := Encode1271Signature(w.account.Hex(), w.validator.Hex(), sig)
	if err != nil {
		return nil, &types.X402Error{Code: types.ErrSigningFailed, Message: err.Error()}
	}
	return newPayload(req, msg, encoded), nil
}

// Encode1271Signature wraps a 65-byte ECDSA signature for ERC-1271 validation
// as validator(20) ‖ r ‖ s ‖ v, 0x hex. When the account is its own validator
// and v < 30, v is shifted by 4 to mark an eth_sign style signature.
// The input slice is not modified.
func Encode1271Signature(account, validator string, signature []byte) (string, error) {
	if len(signature) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes, got %d", len(signature))
	}
	if !common.IsHexAddress(validator) {
		return "", fmt.Errorf("invalid validator address: %q", validator)
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if strings.EqualFold(account, validator) && sig[64] < 30 {
		sig[64] += 4
	}

	out := make([]byte, 0, common.AddressLength+65)
	out = append(out, common.HexToAddress(validator).Bytes()...)
	out = append(out, sig...)
	return hexutil.Encode(out), nil
}
