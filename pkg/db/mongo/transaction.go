package mongo

import (
	"context"
	"errors"
	"fmt"

	"tutorhub/pkg/db"
	apperrors "tutorhub/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

type mongoTransactionManager struct {
	client *mongo.Client
}

// NewTransactionManager returns a db.TransactionManager backed by Mongo
// sessions. Transactions need a replica set or sharded cluster.
func NewTransactionManager(client *mongo.Client) db.TransactionManager {
	return &mongoTransactionManager{
		client: client,
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	if db.InTransaction(ctx) {
		return fn(ctx)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(db.MarkTransaction(sessCtx))
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		if mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", db.ErrTxTimeout, err)
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
