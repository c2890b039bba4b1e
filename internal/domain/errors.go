package domain

import "github.com/juju/errors"

// Error kinds that juju/errors has no type for. NotFound, NotValid,
// AlreadyExists, Forbidden and Unauthorized come from juju/errors directly.
const (
	// ErrInvalidState is returned when a business rule forbids the operation,
	// for example a stock decrement past zero.
	ErrInvalidState = errors.ConstError("invalid state")

	// ErrConflict is returned when an optimistic-concurrency token is stale.
	ErrConflict = errors.ConstError("conflict")

	// ErrServiceUnavailable is returned when a required peer service could
	// not be reached or answered with a server error.
	ErrServiceUnavailable = errors.ConstError("service unavailable")
)

// Placeholder names used when a read-side lookup fails.
const (
	ClientUnavailable  = "Client unavailable"
	ProductUnavailable = "Product unavailable"
)
