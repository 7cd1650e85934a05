// Package db defines the unit-of-work contract shared by every store backend.
package db

import (
	"context"
	"errors"
)

// ErrTxTimeout is wrapped into transaction errors caused by a deadline or a
// store-side lock timeout.
var ErrTxTimeout = errors.New("transaction timed out")

type TransactionFunc func(ctx context.Context) error

// TransactionManager runs fn atomically: every write performed through the
// context handed to fn commits together or not at all. Calls made while a
// transaction is already active join it.
type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type txMarker struct{}

// MarkTransaction tags ctx as carrying an active transaction.
func MarkTransaction(ctx context.Context) context.Context {
	return context.WithValue(ctx, txMarker{}, true)
}

// InTransaction reports whether ctx was produced by a TransactionManager.
func InTransaction(ctx context.Context) bool {
	v, _ := ctx.Value(txMarker{}).(bool)
	return v
}

// MustBeInTransaction panics when called outside a transaction. Store
// methods whose writes are only safe as part of a larger unit call it first.
func MustBeInTransaction(ctx context.Context, op string) {
	if !InTransaction(ctx) {
		panic(op + " must run inside ExecuteTransaction")
	}
}
