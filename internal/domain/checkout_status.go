package domain

type CheckoutStatus string

const (
	CheckoutStatusIdle       CheckoutStatus = "IDLE"
	CheckoutStatusCommitting CheckoutStatus = "COMMITTING"
	CheckoutStatusSettled    CheckoutStatus = "SETTLED"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusSettled
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the checkout state machine allows from -> to.
// Settled starts a new cycle, and a failed commit falls back to Idle.
func CanTransitionTo(from, to CheckoutStatus) bool {
	switch from {
	case CheckoutStatusIdle:
		return to == CheckoutStatusCommitting
	case CheckoutStatusCommitting:
		return to == CheckoutStatusSettled || to == CheckoutStatusIdle
	case CheckoutStatusSettled:
		return to == CheckoutStatusIdle
	default:
		return false
	}
}
