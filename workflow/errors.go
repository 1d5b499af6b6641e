package workflow

import "errors"

// Sentinel errors for the workflow taxonomy. Controllers map these to
// HTTP statuses; anything else is an internal error.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrOutOfStock   = errors.New("product out of stock or does not exist")
	ErrValidation   = errors.New("invalid input")
)
