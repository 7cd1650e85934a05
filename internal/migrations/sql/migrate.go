package sql

import (
	"context"
	"fmt"

	"tutorhub/pkg/model"

	"gorm.io/gorm"
)

// activeSlotIndex enforces at most one slot-holding booking per provider
// and start, independently of the slot lock.
const activeSlotIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_slot
	ON bookings (provider_id, start_at)
	WHERE status <> 'canceled'`

const pendingPaymentsIndex = `CREATE INDEX IF NOT EXISTS idx_payments_pending_created
	ON payments (created_at)
	WHERE status = 'pending'`

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&model.User{},
		&model.AvailabilityWindow{},
		&model.Booking{},
		&model.Payment{},
		&model.SlotLock{},
	}
}

// RunMigration creates or updates all tables and the partial indexes gorm
// tags cannot express. Works on Postgres and SQLite.
func RunMigration(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx)

	if err := tx.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	for _, stmt := range []string{activeSlotIndex, pendingPaymentsIndex} {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
