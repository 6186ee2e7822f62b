package validation

import "errors"

var (
	// ErrTicketInvalid is the single outcome for every failed door scan:
	// unknown code, wrong event, or already validated. Keeping it coarse
	// prevents enumeration of valid codes by trial.
	ErrTicketInvalid = errors.New("ticket invalid or already used")

	ErrTicketNotFound = errors.New("ticket not found")
)
