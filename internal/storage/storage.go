// Package storage assembles the repositories of one store backend.
package storage

import (
	"context"
	"fmt"

	availabilityrepo "tutorhub/internal/availability/repository"
	bookingsrepo "tutorhub/internal/bookings/repository"
	"tutorhub/internal/identity"
	paymentsrepo "tutorhub/internal/payments/repository"
	"tutorhub/pkg/config"
	"tutorhub/pkg/db"
	mongotx "tutorhub/pkg/db/mongo"
	sqldb "tutorhub/pkg/db/sql"
	"tutorhub/pkg/slotlock"

	"gorm.io/gorm"
)

// Stores shares one connection and one transaction manager, so the
// repositories can be combined in a single unit of work.
type Stores struct {
	Windows   availabilityrepo.WindowRepository
	Bookings  bookingsrepo.BookingRepository
	Payments  paymentsrepo.PaymentRepository
	Directory identity.Directory
	Locker    slotlock.Locker
	Tx        db.TransactionManager
}

// New builds the stores for cfg.StoreBackend. cfg.Connect must have run.
func New(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		if cfg.Client.Mongo == nil {
			return nil, fmt.Errorf("mongo backend selected but no mongo client is connected")
		}
		return NewMongo(ctx, cfg)
	case config.BackendPostgres, config.BackendSQLite:
		if cfg.Client.SQL == nil {
			return nil, fmt.Errorf("%s backend selected but no SQL connection is open", cfg.StoreBackend)
		}
		return NewSQL(cfg.Client.SQL, cfg.SlotLockBackend), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func NewSQL(gdb *gorm.DB, lockBackend string) *Stores {
	var locker slotlock.Locker = slotlock.NewMemory()
	if lockBackend == config.BackendSQL {
		locker = slotlock.NewSQL(gdb)
	}

	return &Stores{
		Windows:   availabilityrepo.NewSQLWindowRepository(gdb),
		Bookings:  bookingsrepo.NewSQLBookingRepository(gdb),
		Payments:  paymentsrepo.NewSQLPaymentRepository(gdb),
		Directory: identity.NewSQLDirectory(gdb),
		Locker:    locker,
		Tx:        sqldb.NewTransactionManager(gdb),
	}
}

func NewMongo(ctx context.Context, cfg *config.Config) (*Stores, error) {
	var locker slotlock.Locker = slotlock.NewMemory()
	if cfg.SlotLockBackend == config.BackendMongo {
		mongoLocker := slotlock.NewMongo(cfg.Client.Mongo.Database(cfg.MongoDatabaseName))
		if err := mongoLocker.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare slot lock collection: %w", err)
		}
		locker = mongoLocker
	}

	return &Stores{
		Windows:   availabilityrepo.NewMongoWindowRepository(cfg),
		Bookings:  bookingsrepo.NewMongoBookingRepository(cfg),
		Payments:  paymentsrepo.NewMongoPaymentRepository(cfg),
		Directory: identity.NewMongoDirectory(cfg),
		Locker:    locker,
		Tx:        mongotx.NewTransactionManager(cfg.Client.Mongo),
	}, nil
}
