package types

import "time"

// Config contains global configuration for the SDK facade.
type Config struct {
	DefaultTimeout time.Duration `json:"defaultTimeout,omitempty"`
	LogLevel       string        `json:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics  bool          `json:"enableMetrics,omitempty"`

	Wallet      WalletConfig       `json:"wallet"`
	API         *APIConfig         `json:"api,omitempty"`
	Facilitator *FacilitatorConfig `json:"facilitator,omitempty"`

	// RequirementIndex picks accepts[i] instead of the first option.
	RequirementIndex int `json:"requirementIndex,omitempty" validate:"gte=0"`
}

// WalletConfig selects between a direct-key wallet and a smart-account wallet.
// A smart account is used when SmartAccountAddress is set, with PrivateKey as
// its session key.
type WalletConfig struct {
	PrivateKey          string `json:"privateKey" validate:"required"`
	SmartAccountAddress string `json:"smartAccountAddress,omitempty" validate:"omitempty,eth_addr"`
	ValidatorAddress    string `json:"validatorAddress,omitempty" validate:"required_with=SmartAccountAddress,omitempty,eth_addr"`
}

// APIConfig points at the remote payment-authorization service.
type APIConfig struct {
	BaseURL   string `json:"baseUrl" validate:"required,url"`
	TimeoutMs int    `json:"timeoutMs,omitempty" validate:"gte=0"`
}

type FacilitatorConfig struct {
	URL           string `json:"url" validate:"required,url"`
	Authorization string `json:"authorization,omitempty"`
	MaxRetries    int    `json:"maxRetries,omitempty" validate:"gte=0,lte=10"`
}
