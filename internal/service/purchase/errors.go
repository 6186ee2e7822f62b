package purchase

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound     = errors.New("event or ticket category not found")
	ErrEventNotPublished = errors.New("event is not open for purchase")
	ErrTicketConflict    = errors.New("conflict minting tickets")
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrForbidden         = errors.New("purchase belongs to another buyer")
	ErrInvalidStatus     = errors.New("invalid purchase status")

	// ErrReadBack means a committed purchase was not visible on the
	// post-commit read. That should be structurally impossible and is
	// reported as an internal integrity failure.
	ErrReadBack = errors.New("committed purchase not found on read-back")
)

type InvalidQuantityError struct {
	Quantity int64
	Max      int64
}

func (e InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity %d out of range (1..%d)", e.Quantity, e.Max)
}

type InsufficientStockError struct {
	Available int64
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}
