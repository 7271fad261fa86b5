package server

import (
	"fmt"

	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/utils"
)

// DefaultMaxTimeoutSeconds bounds how long a signed payment stays usable.
const DefaultMaxTimeoutSeconds = 600

// PaymentRequiredError is returned by an agent to ask the caller for payment.
type PaymentRequiredError struct {
	Accepts []types.PaymentRequirements
	Message string
}

func (e *PaymentRequiredError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "payment required"
}

// PaymentOptions prices a request in USDC.
type PaymentOptions struct {
	// Price is a dollar amount such as "$0.001".
	Price             string
	PayTo             string
	Resource          string
	Network           types.Network
	Description       string
	MimeType          string
	MaxTimeoutSeconds int
	Message           string
}

// RequirePayment builds the *PaymentRequiredError for opts. Any other error
// means opts could not be priced.
func RequirePayment(opts PaymentOptions) error {
	usdc, err := opts.Network.USDC()
	if err != nil {
		return err
	}
	amount, err := utils.ParsePrice(opts.Price, usdc.Decimals)
	if err != nil {
		return err
	}
	payTo, ok := utils.ChecksumAddress(opts.PayTo)
	if !ok {
		return fmt.Errorf("%w: invalid payTo address %q", types.ErrRequirementsInvalid, opts.PayTo)
	}

	timeout := opts.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultMaxTimeoutSeconds
	}
	mime := opts.MimeType
	if mime == "" {
		mime = "application/json"
	}

	req := types.PaymentRequirements{
		Scheme:            string(types.SchemeExact),
		Network:           opts.Network.String(),
		MaxAmountRequired: amount.String(),
		Resource:          opts.Resource,
		Description:       opts.Description,
		MimeType:          mime,
		PayTo:             payTo,
		MaxTimeoutSeconds: timeout,
		Asset:             usdc.Address,
		Extra:             map[string]any{"name": usdc.Name, "version": usdc.Version},
	}
	if err := utils.ValidateRequirements(&req); err != nil {
		return err
	}
	return &PaymentRequiredError{Accepts: []types.PaymentRequirements{req}, Message: opts.Message}
}
