// Package eip712 builds and recovers EIP-3009 TransferWithAuthorization digests.
package eip712

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kmjones1979/ampersend-sdk/types"
)

// Domain is the EIP-712 domain of an EIP-3009 token contract.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// TransferWithAuthorization is the typed EIP-3009 message.
type TransferWithAuthorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

var (
	transferAuthTypeHash = crypto.Keccak256Hash([]byte("TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))

	// EIP712Domain type string, ordering matters
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
)

// DomainFor derives the token domain from a requirement: name and version
// come from extra, the chain id from the network, the contract from asset.
func DomainFor(req *types.PaymentRequirements) (Domain, error) {
	name := req.ExtraString("name")
	version := req.ExtraString("version")
	if name == "" || version == "" {
		return Domain{}, &types.X402Error{
			Code:    types.ErrInvalidRequirements,
			Message: "requirement extra must carry EIP-712 name and version",
		}
	}
	if !common.IsHexAddress(req.Asset) {
		return Domain{}, &types.X402Error{
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("asset is not an address: %q", req.Asset),
		}
	}
	chainID, err := types.Network(req.Network).ChainID()
	if err != nil {
		return Domain{}, err
	}
	return Domain{
		Name:              name,
		Version:           version,
		ChainID:           chainID,
		VerifyingContract: common.HexToAddress(req.Asset),
	}, nil
}

// padLeft32 returns a 32-byte right-aligned representation of the given big.Int
func padLeft32(i *big.Int) []byte {
	return common.LeftPadBytes(i.Bytes(), 32)
}

// addressTo32 left-pads an address into a 32-byte word
func addressTo32(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

// Separator computes keccak256(abi.encode(domainTypeHash, keccak(name), keccak(version), chainId, verifyingContract)).
func (d Domain) Separator() (common.Hash, error) {
	if d.Name == "" || d.Version == "" || d.ChainID == nil {
		return common.Hash{}, errors.New("incomplete domain")
	}
	return crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(d.Name)),
		crypto.Keccak256([]byte(d.Version)),
		padLeft32(d.ChainID),
		addressTo32(d.VerifyingContract),
	), nil
}

// StructHash computes keccak256(abi.encode(TYPEHASH, from, to, value, validAfter, validBefore, nonce)).
func (m TransferWithAuthorization) StructHash() common.Hash {
	return crypto.Keccak256Hash(
		transferAuthTypeHash.Bytes(),
		addressTo32(m.From),
		addressTo32(m.To),
		padLeft32(m.Value),
		padLeft32(m.ValidAfter),
		padLeft32(m.ValidBefore),
		m.Nonce[:],
	)
}

// Digest returns keccak256("\x19\x01" ‖ domainSeparator ‖ structHash).
func Digest(d Domain, m TransferWithAuthorization) (common.Hash, error) {
	sep, err := d.Separator()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, sep.Bytes(), m.StructHash().Bytes()), nil
}

// RecoverSigner recovers the address that signed digest.
// sig must be 65 bytes (R||S||V) with V as 0/1 or 27/28.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, errors.New("signature must be 65 bytes")
	}

	// copy to avoid mutating caller slice
	s := make([]byte, 65)
	copy(s, sig)
	if s[64] >= 27 {
		s[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("sig to pub failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// FromAuthorization parses the wire form of an authorization.
func FromAuthorization(a types.EIP3009Authorization) (TransferWithAuthorization, error) {
	var m TransferWithAuthorization
	if !common.IsHexAddress(a.From) || !common.IsHexAddress(a.To) {
		return m, errors.New("authorization from/to must be addresses")
	}
	m.From = common.HexToAddress(a.From)
	m.To = common.HexToAddress(a.To)

	var err error
	if m.Value, err = stringToBig(a.Value); err != nil {
		return m, fmt.Errorf("value: %w", err)
	}
	if m.ValidAfter, err = stringToBig(a.ValidAfter); err != nil {
		return m, fmt.Errorf("validAfter: %w", err)
	}
	if m.ValidBefore, err = stringToBig(a.ValidBefore); err != nil {
		return m, fmt.Errorf("validBefore: %w", err)
	}
	if m.Nonce, err = HexToBytes32(a.Nonce); err != nil {
		return m, fmt.Errorf("nonce: %w", err)
	}
	return m, nil
}

// ToAuthorization renders the message in wire form.
func (m TransferWithAuthorization) ToAuthorization() types.EIP3009Authorization {
	return types.EIP3009Authorization{
		From:        m.From.Hex(),
		To:          m.To.Hex(),
		Value:       m.Value.String(),
		ValidAfter:  m.ValidAfter.String(),
		ValidBefore: m.ValidBefore.String(),
		Nonce:       "0x" + hex.EncodeToString(m.Nonce[:]),
	}
}

// stringToBig converts decimal string -> *big.Int
func stringToBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid decimal integer string %q", s)
	}
	return n, nil
}

// HexToBytes32 converts a 0x-prefixed 32-byte hex string to an array.
func HexToBytes32(hexStr string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
