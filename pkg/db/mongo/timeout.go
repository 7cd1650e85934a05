package mongo

import (
	"context"
	"time"

	"tutorhub/pkg/db"
)

// WithTimeout bounds a single store call. Inside a transaction the
// transaction's own deadline governs, so ctx is returned untouched.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if db.InTransaction(ctx) || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
