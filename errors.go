package xval

import (
	"errors"
	"fmt"
)

//////
// Sentinel errors.
//////

var (
	// ErrValidation is returned when construction parameters or call
	// arguments are invalid: bad split sizes, malformed probability vectors,
	// non-monotonic distribution bounds, empty candidate lists, negative
	// temperatures, rates not greater than one.
	//
	// It is always raised eagerly, at construction or at call entry, never in
	// the middle of a search. Match it with errors.Is.
	ErrValidation = errors.New("xval: validation error")

	// ErrBounds is returned when a query point handed to a neighbor operator
	// lies outside the declared domain of its distribution.
	ErrBounds = errors.New("xval: out of bounds")
)

//////
// Helper functions.
//////

// validationf wraps ErrValidation with a formatted reason.
func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// boundsf wraps ErrBounds with a formatted reason.
func boundsf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrBounds}, args...)...)
}
