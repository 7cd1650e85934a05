package errors

import "errors"

var (
	ErrNotFound = errors.New("payment not found")

	// ErrStatusConflict means the payment exists but was no longer in the
	// status the conditional transition expected.
	ErrStatusConflict = errors.New("payment status changed concurrently")
)
