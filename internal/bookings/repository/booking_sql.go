package repository

import (
	"context"
	"errors"
	"fmt"

	bookingserrors "tutorhub/internal/bookings/errors"
	sqldb "tutorhub/pkg/db/sql"
	"tutorhub/pkg/model"

	"gorm.io/gorm"
)

type sqlBookingRepository struct {
	db *gorm.DB
}

func NewSQLBookingRepository(db *gorm.DB) BookingRepository {
	return &sqlBookingRepository{db: db}
}

func (r *sqlBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if err := sqldb.Conn(ctx, r.db).Create(booking).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return bookingserrors.ErrSlotTaken
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *sqlBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	var booking model.Booking
	err := sqldb.Conn(ctx, r.db).Where("id = ?", id).Take(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *sqlBookingRepository) Transition(ctx context.Context, id string, change StatusChange) (*model.Booking, error) {
	updates := map[string]any{"status": change.To}
	if change.To == model.BookingCanceled {
		updates["cancel_reason"] = change.CancelReason
		updates["canceled_by"] = change.CanceledBy
		updates["canceled_at"] = change.CanceledAt
	}

	res := sqldb.Conn(ctx, r.db).Model(&model.Booking{}).
		Where("id = ? AND status IN ?", id, change.From).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to transition booking: %w", res.Error)
	}

	booking, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, bookingserrors.ErrStatusConflict
	}
	return booking, nil
}

func (r *sqlBookingRepository) forUser(ctx context.Context, userID string, role model.Role) *gorm.DB {
	q := sqldb.Conn(ctx, r.db).Model(&model.Booking{})
	switch role {
	case model.RoleStudent:
		return q.Where("student_id = ?", userID)
	case model.RoleProvider:
		return q.Where("provider_id = ?", userID)
	default:
		return q.Where("student_id = ? OR provider_id = ?", userID, userID)
	}
}

func (r *sqlBookingRepository) FindForUser(ctx context.Context, userID string, role model.Role, limit int, offset int64) ([]*model.Booking, error) {
	bookings := []*model.Booking{}
	err := r.forUser(ctx, userID, role).
		Order("start_at DESC").
		Limit(limit).
		Offset(int(offset)).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	return bookings, nil
}

func (r *sqlBookingRepository) CountForUser(ctx context.Context, userID string, role model.Role) (int64, error) {
	var count int64
	if err := r.forUser(ctx, userID, role).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}
