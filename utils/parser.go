package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/kmjones1979/ampersend-sdk/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterStructValidation(walletConfigValidation, types.WalletConfig{})
}

// A smart account needs its validator module address.
func walletConfigValidation(sl validator.StructLevel) {
	w := sl.Current().Interface().(types.WalletConfig)
	if w.SmartAccountAddress != "" && w.ValidatorAddress == "" {
		sl.ReportError(w.ValidatorAddress, "ValidatorAddress", "validatorAddress", "required_with", "SmartAccountAddress")
	}
}

// ValidateRequirements checks struct tags on a requirement.
func ValidateRequirements(req *types.PaymentRequirements) error {
	if err := validate.Struct(req); err != nil {
		return &types.X402Error{
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}
	return nil
}

// ParseConfig parses Config from JSON
func ParseConfig(data []byte) (*types.Config, error) {
	var config types.Config

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to parse config: %v", err),
		}
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// ValidateConfig checks struct tags on a config built in code.
func ValidateConfig(config *types.Config) error {
	if err := validate.Struct(config); err != nil {
		return &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}
	return nil
}

// LoadConfig reads and parses a JSON config file.
func LoadConfig(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to read config %s: %v", path, err),
		}
	}
	return ParseConfig(data)
}

// DecodeJSON re-decodes a loosely typed value, such as A2A metadata, into out.
func DecodeJSON(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
