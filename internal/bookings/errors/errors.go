package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	// ErrStatusConflict means the booking exists but was not in any of the
	// statuses a conditional transition expected.
	ErrStatusConflict = errors.New("booking status changed concurrently")

	// ErrSlotTaken is returned when another active booking already holds the
	// provider's slot.
	ErrSlotTaken = errors.New("provider slot already booked")
)
