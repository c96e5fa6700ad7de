package domain

import (
	"errors"
	"fmt"
)

// Domain errors. Callers wrap them with context and match with errors.Is;
// the HTTP layer maps each one to a status code.
var (
	ErrValidation          = errors.New("validation failed")
	ErrEmailTaken          = errors.New("email already used")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated     = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrUserNotFound        = errors.New("user not found")
	ErrSweetNotFound       = errors.New("sweet not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrIdempotencyInFlight = errors.New("a request with this idempotency key is still in progress")

	// ErrStockOverflow is a validation error: the restock would push the
	// quantity past the largest storable value.
	ErrStockOverflow = fmt.Errorf("%w: stock would exceed the maximum quantity", ErrValidation)
)
