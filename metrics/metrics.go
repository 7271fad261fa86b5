package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

const LabelNetwork = "network"

// Counter names.
const (
	PaymentRequired    = "payment_required"
	PaymentAuthorized  = "payment_authorized"
	PaymentDeclined    = "payment_declined"
	ProtocolViolation  = "protocol_violation"
	TreasurerError     = "treasurer_error"
	StatusCallbackFail = "status_callback_error"
	ExtensionMissing   = "extension_missing"
	PaymentVerified    = "payment_verified"
	PaymentRejected    = "payment_rejected"
	PaymentSettled     = "payment_settled"
	PaymentFailed      = "payment_failed"
)

// Latency operation names.
const (
	OpVerify    = "verify"
	OpSettle    = "settle"
	OpAuthorize = "authorize" // treasurer decision, including signing
)

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

// Network builds the label set for a network-scoped observation.
func Network(network string) map[string]string {
	return map[string]string{LabelNetwork: network}
}
