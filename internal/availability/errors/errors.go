package errors

import "errors"

var (
	ErrNotFound = errors.New("availability window not found")

	ErrNotOpen = errors.New("availability window is not open")

	ErrOverlap = errors.New("availability window overlaps an existing window")
)
