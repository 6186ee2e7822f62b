package query

import (
	"errors"
)

var (
	ErrCategoryNotFound = errors.New("ticket category not found")
	ErrTicketNotFound   = errors.New("ticket not found")
)
