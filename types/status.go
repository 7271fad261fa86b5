package types

// PaymentStatus is the payment lifecycle stage carried in A2A task metadata.
type PaymentStatus string

const (
	PaymentRequired  PaymentStatus = "payment-required"
	PaymentSubmitted PaymentStatus = "payment-submitted"
	PaymentVerified  PaymentStatus = "payment-verified"
	PaymentRejected  PaymentStatus = "payment-rejected"
	PaymentCompleted PaymentStatus = "payment-completed"
	PaymentFailed    PaymentStatus = "payment-failed"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentRequired, PaymentSubmitted, PaymentVerified,
		PaymentRejected, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}
