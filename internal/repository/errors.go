package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEventNotPublished = errors.New("event not published")

	// ErrInvalidOrUsed deliberately does not distinguish an unknown ticket
	// code from an already validated one.
	ErrInvalidOrUsed = errors.New("ticket invalid or already used")
)
