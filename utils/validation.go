package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateAmount checks if an amount string is a valid decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ValidateBigInt parses a non-negative base-10 integer such as an amount in
// atomic token units.
func ValidateBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}

	bigInt, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid big integer format")
	}
	if bigInt.Sign() < 0 {
		return nil, fmt.Errorf("value cannot be negative")
	}

	return bigInt, nil
}

// ParseAmountWithDecimals parses a decimal amount string and converts to big.Int with specified decimals.
// Fractions below the smallest unit are rejected rather than truncated.
func ParseAmountWithDecimals(amount string, decimals int32) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	scaled := dec.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	return scaled.BigInt(), nil
}

// ParsePrice converts a money string such as "$0.001" or "0.001" into atomic
// units of a token with the given decimals.
func ParsePrice(price string, decimals int32) (*big.Int, error) {
	p := strings.TrimSpace(price)
	p = strings.TrimPrefix(p, "$")
	p = strings.ReplaceAll(p, ",", "")
	amount, err := ParseAmountWithDecimals(p, decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, err)
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("invalid price %q: must be positive", price)
	}
	return amount, nil
}

// AmountAtLeast reports whether have >= want, both amounts in atomic units.
func AmountAtLeast(have, want string) (bool, error) {
	h, err := ValidateBigInt(have)
	if err != nil {
		return false, fmt.Errorf("have: %w", err)
	}
	w, err := ValidateBigInt(want)
	if err != nil {
		return false, fmt.Errorf("want: %w", err)
	}
	return h.Cmp(w) >= 0, nil
}
