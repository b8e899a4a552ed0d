package engine

import (
	"errors"
)

// Validation errors reject a single submission and leave the draft unchanged.
var (
	ErrAlreadyStarted    = errors.New("draft already started")
	ErrDraftNotActive    = errors.New("draft is not active")
	ErrStaleTurn         = errors.New("stale turn")
	ErrWrongTeam         = errors.New("wrong team for this pick")
	ErrPlayerUnavailable = errors.New("player unavailable")
)

// Fatal errors halt the draft.
var (
	ErrResolverExhausted = errors.New("auto-pick resolver exhausted")
	ErrClockFailure      = errors.New("pick clock failure")
)

// IsFatal reports whether err halts the draft it occurred in.
func IsFatal(err error) bool {
	return errors.Is(err, ErrResolverExhausted) || errors.Is(err, ErrClockFailure)
}

// IsValidation reports whether err is a recoverable rejection of a submission.
func IsValidation(err error) bool {
	return errors.Is(err, ErrAlreadyStarted) ||
		errors.Is(err, ErrDraftNotActive) ||
		errors.Is(err, ErrStaleTurn) ||
		errors.Is(err, ErrWrongTeam) ||
		errors.Is(err, ErrPlayerUnavailable)
}

// UserMessage returns text suitable for showing to the person whose
// submission failed.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyStarted):
		return "the draft has already started"
	case errors.Is(err, ErrDraftNotActive):
		return "the draft is not accepting picks"
	case errors.Is(err, ErrStaleTurn):
		return "it is no longer your turn"
	case errors.Is(err, ErrWrongTeam):
		return "it is not your team's turn to pick"
	case errors.Is(err, ErrPlayerUnavailable):
		return "that player is not available"
	case IsFatal(err):
		return "the draft has been halted and needs attention from the commissioner"
	default:
		return "something went wrong, please try again"
	}
}
