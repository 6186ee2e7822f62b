package admin

import (
	"errors"
)

var (
	ErrCategoryConflict = errors.New("category already exists")
	ErrCategoryNotFound = errors.New("category not found")
	ErrEventNotFound    = errors.New("event does not exist")
	ErrInvalidCategory  = errors.New("invalid category fields")
)
