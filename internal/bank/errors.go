package bank

import "errors"

// Errors returned by the bank service. Callers match them with errors.Is; most are
// wrapped with a detail message.
var (
	ErrValidation            = errors.New("validation error")
	ErrInvalidAmount         = errors.New("invalid amount (must be > 0)")
	ErrNotFound              = errors.New("not found")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientGoalFunds = errors.New("insufficient savings goal funds")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrConflict              = errors.New("conflict")
	ErrInvalidState          = errors.New("invalid state")
	ErrGenerationExhausted   = errors.New("identifier generation exhausted")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrForbidden             = errors.New("forbidden")
)

// Classify names the sentinel err wraps, for metrics labels and logs. A nil error is
// "ok"; anything unrecognised is "internal".
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientGoalFunds):
		return "insufficient_goal_funds"
	case errors.Is(err, ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrGenerationExhausted):
		return "generation_exhausted"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
