package wallet

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/kmjones1979/ampersend-sdk/types"
)

// AccountWallet signs payments directly with an externally owned account key.
type AccountWallet struct {
	signer *signer
}

var _ Wallet = (*AccountWallet)(nil)

func NewAccountWallet(privateKeyHex string, opts ...Option) (*AccountWallet, error) {
	s, err := newSigner(privateKeyHex, opts)
	if err != nil {
		return nil, err
	}
	return &AccountWallet{signer: s}, nil
}

// Address is the payer address that appears in authorization.from.
func (w *AccountWallet) Address() common.Address {
	return w.signer.address()
}

func (w *AccountWallet) CreatePayment(req *types.PaymentRequirements) (*types.PaymentPayload, error) {
	msg, sig, err := w.signer.authorize(w.signer.address(), req)
	if err != nil {
		return nil, err
	}
	return newPayload(req, msg, hexutil.Encode(sig)), nil
}
