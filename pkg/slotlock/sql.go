package slotlock

import (
	"context"
	"fmt"
	"time"

	"tutorhub/pkg/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL stores locks in the slot_locks table, relying on the primary key for
// set-if-absent. Expired rows are cleared before each insert attempt.
type SQL struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db, now: time.Now}
}

func (s *SQL) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}

	now := s.now().UTC()
	db := s.db.WithContext(ctx)

	if err := db.Where("lock_key = ? AND expires_at <= ?", key, now).Delete(&model.SlotLock{}).Error; err != nil {
		return false, fmt.Errorf("failed to clear expired slot lock: %w", err)
	}

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.SlotLock{
		Key:       key,
		Holder:    holder,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert slot lock: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *SQL) Release(ctx context.Context, key, holder string) error {
	err := s.db.WithContext(ctx).
		Where("lock_key = ? AND holder = ?", key, holder).
		Delete(&model.SlotLock{}).Error
	if err != nil {
		return fmt.Errorf("failed to release slot lock: %w", err)
	}
	return nil
}
