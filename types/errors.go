package types

import "errors"

// Error types
type X402Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e X402Error) Error() string {
	return e.Message
}

// Is lets errors.Is match an *X402Error against the sentinel for its code.
func (e X402Error) Is(target error) bool {
	if s, ok := sentinels[e.Code]; ok {
		return s == target
	}
	return false
}

// Common error codes
const (
	ErrInvalidPayload      = "INVALID_PAYLOAD"
	ErrInvalidRequirements = "INVALID_REQUIREMENTS"
	ErrUnsupportedNetwork  = "UNSUPPORTED_NETWORK"
	ErrUnsupportedScheme   = "UNSUPPORTED_SCHEME"
	ErrVerificationFailed  = "VERIFICATION_FAILED"
	ErrSettlementFailed    = "SETTLEMENT_FAILED"
	ErrNetworkError        = "NETWORK_ERROR"
	ErrConfigError         = "CONFIG_ERROR"
	ErrSigningFailed       = "SIGNING_FAILED"
)

// Sentinel errors for errors.Is checks.
var (
	ErrSchemeNotSupported     = errors.New("unsupported payment scheme")
	ErrNetworkNotSupported    = errors.New("unsupported network")
	ErrRequirementsInvalid    = errors.New("invalid payment requirements")
	ErrPayloadInvalid         = errors.New("invalid payment payload")
	ErrFacilitatorUnavailable = errors.New("facilitator unavailable")
	ErrVerification           = errors.New("payment verification failed")
	ErrSettlement             = errors.New("payment settlement failed")
)

var sentinels = map[string]error{
	ErrUnsupportedScheme:   ErrSchemeNotSupported,
	ErrUnsupportedNetwork:  ErrNetworkNotSupported,
	ErrInvalidRequirements: ErrRequirementsInvalid,
	ErrInvalidPayload:      ErrPayloadInvalid,
	ErrVerificationFailed:  ErrVerification,
	ErrSettlementFailed:    ErrSettlement,
	ErrNetworkError:        ErrFacilitatorUnavailable,
}

// IsCode reports whether err wraps an X402Error with the given code.
func IsCode(err error, code string) bool {
	var xe *X402Error
	if errors.As(err, &xe) {
		return xe.Code == code
	}
	var xv X402Error
	if errors.As(err, &xv) {
		return xv.Code == code
	}
	return false
}
