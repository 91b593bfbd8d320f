package dispatch

import "errors"

// Decline reasons. Every guard violation maps to one of these so a caller
// can distinguish "try another job" from "retry me"; they are never folded
// into a generic fault.
var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrNoLongerAvailable = errors.New("no longer available")
	ErrNotAssigned       = errors.New("not assigned to you")
	ErrInvalidStatus     = errors.New("invalid status value")
	ErrAlreadySubmitted  = errors.New("already submitted")
)
