package verification

// Invalid reasons reported in VerifyResponse.InvalidReason. These follow the
// facilitator's reason codes so a local rejection reads the same as a remote one.
const (
	// -----------------------------
	// SCHEME / NETWORK
	// -----------------------------
	ReasonInvalidScheme  = "invalid_scheme"
	ReasonInvalidNetwork = "invalid_network"

	// -----------------------------
	// PAYLOAD
	// -----------------------------
	ReasonInvalidPayload        = "invalid_payload"
	ReasonInvalidRequirements   = "invalid_payment_requirements"
	ReasonRecipientMismatch     = "invalid_exact_evm_payload_recipient_mismatch"
	ReasonInsufficientValue     = "invalid_exact_evm_payload_authorization_value"
	ReasonValidAfter            = "invalid_exact_evm_payload_authorization_valid_after"
	ReasonValidBefore           = "invalid_exact_evm_payload_authorization_valid_before"
	ReasonInvalidSignature      = "invalid_exact_evm_payload_signature"
	ReasonUnexpectedVerifyError = "unexpected_verify_error"
)
