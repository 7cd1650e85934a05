// Package sql adapts gorm to the db.TransactionManager contract. Postgres is
// the production dialect; SQLite serves tests and single-node setups.
package sql

import (
	"context"
	"errors"
	"fmt"

	"tutorhub/pkg/db"
	apperrors "tutorhub/pkg/errors"

	"gorm.io/gorm"
)

type txKey struct{}

type gormTransactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(gdb *gorm.DB) db.TransactionManager {
	return &gormTransactionManager{db: gdb}
}

func (m *gormTransactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	if db.InTransaction(ctx) {
		return fn(ctx)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := db.MarkTransaction(context.WithValue(ctx, txKey{}, tx))
		return fn(txCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", db.ErrTxTimeout, err)
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// Conn returns the transaction bound to ctx, or gdb scoped to ctx when no
// transaction is active. Repositories route every statement through it.
func Conn(ctx context.Context, gdb *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return gdb.WithContext(ctx)
}
