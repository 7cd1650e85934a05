package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "tutorhub/internal/availability/errors"
	sqldb "tutorhub/pkg/db/sql"
	"tutorhub/pkg/model"

	"gorm.io/gorm"
)

type sqlWindowRepository struct {
	db *gorm.DB
}

func NewSQLWindowRepository(db *gorm.DB) WindowRepository {
	return &sqlWindowRepository{db: db}
}

func (r *sqlWindowRepository) Create(ctx context.Context, window *model.AvailabilityWindow) error {
	if err := sqldb.Conn(ctx, r.db).Create(window).Error; err != nil {
		return fmt.Errorf("failed to create availability window: %w", err)
	}
	return nil
}

func (r *sqlWindowRepository) FindByID(ctx context.Context, id string) (*model.AvailabilityWindow, error) {
	var window model.AvailabilityWindow
	err := sqldb.Conn(ctx, r.db).Where("id = ?", id).Take(&window).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find availability window: %w", err)
	}
	return &window, nil
}

func (r *sqlWindowRepository) FindOpenCovering(ctx context.Context, providerID string, start, end time.Time) (*model.AvailabilityWindow, error) {
	var window model.AvailabilityWindow
	err := sqldb.Conn(ctx, r.db).
		Where("provider_id = ? AND status = ? AND start_at <= ? AND end_at >= ?", providerID, model.WindowOpen, start, end).
		Order("start_at ASC").
		Take(&window).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find open window: %w", err)
	}
	return &window, nil
}

func (r *sqlWindowRepository) FindOpen(ctx context.Context, providerID string, from, to time.Time, limit int, offset int64) ([]*model.AvailabilityWindow, error) {
	q := sqldb.Conn(ctx, r.db).
		Where("provider_id = ? AND status = ? AND start_at >= ?", providerID, model.WindowOpen, from)
	if !to.IsZero() {
		q = q.Where("start_at < ?", to)
	}

	windows := []*model.AvailabilityWindow{}
	err := q.Order("start_at ASC").Limit(limit).Offset(int(offset)).Find(&windows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find open windows: %w", err)
	}
	return windows, nil
}

func (r *sqlWindowRepository) CountOverlapping(ctx context.Context, providerID string, start, end time.Time) (int64, error) {
	var count int64
	err := sqldb.Conn(ctx, r.db).Model(&model.AvailabilityWindow{}).
		Where("provider_id = ? AND status IN ? AND start_at < ? AND end_at > ?", providerID,
			[]model.WindowStatus{model.WindowOpen, model.WindowClaimed}, end, start).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping windows: %w", err)
	}
	return count, nil
}

func (r *sqlWindowRepository) Claim(ctx context.Context, id, bookingID string) error {
	res := sqldb.Conn(ctx, r.db).Model(&model.AvailabilityWindow{}).
		Where("id = ? AND status = ?", id, model.WindowOpen).
		Updates(map[string]any{
			"status":     model.WindowClaimed,
			"booking_id": bookingID,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to claim availability window: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return availabilityerrors.ErrNotOpen
	}
	return nil
}

func (r *sqlWindowRepository) Release(ctx context.Context, id, bookingID string) error {
	err := sqldb.Conn(ctx, r.db).Model(&model.AvailabilityWindow{}).
		Where("id = ? AND status = ? AND booking_id = ?", id, model.WindowClaimed, bookingID).
		Updates(map[string]any{
			"status":     model.WindowOpen,
			"booking_id": "",
		}).Error
	if err != nil {
		return fmt.Errorf("failed to release availability window: %w", err)
	}
	return nil
}

func (r *sqlWindowRepository) DeleteOpen(ctx context.Context, id string) error {
	res := sqldb.Conn(ctx, r.db).
		Where("id = ? AND status = ?", id, model.WindowOpen).
		Delete(&model.AvailabilityWindow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete availability window: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return availabilityerrors.ErrNotOpen
}
