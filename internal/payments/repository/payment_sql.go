package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	paymentserrors "tutorhub/internal/payments/errors"
	"tutorhub/pkg/db"
	sqldb "tutorhub/pkg/db/sql"
	"tutorhub/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sqlPaymentRepository struct {
	db *gorm.DB
}

func NewSQLPaymentRepository(db *gorm.DB) PaymentRepository {
	return &sqlPaymentRepository{db: db}
}

func (r *sqlPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	if err := sqldb.Conn(ctx, r.db).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *sqlPaymentRepository) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	var payment model.Payment
	q := sqldb.Conn(ctx, r.db)
	if db.InTransaction(ctx) && q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	err := q.Where("id = ?", id).Take(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, paymentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &payment, nil
}

func (r *sqlPaymentRepository) Transition(ctx context.Context, id string, change StatusChange) (*model.Payment, error) {
	updates := map[string]any{"status": change.To}
	if change.AdminNotes != "" {
		updates["admin_notes"] = change.AdminNotes
	}
	if change.ConfirmedBy != "" {
		updates["confirmed_by"] = change.ConfirmedBy
		updates["confirmed_at"] = change.ConfirmedAt
	}

	res := sqldb.Conn(ctx, r.db).Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, change.From).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to transition payment: %w", res.Error)
	}

	payment, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, paymentserrors.ErrStatusConflict
	}
	return payment, nil
}

func (r *sqlPaymentRepository) MarkConfirmed(ctx context.Context, id, adminID, notes string, at time.Time) (*model.Payment, error) {
	db.MustBeInTransaction(ctx, "payments.MarkConfirmed")
	return r.Transition(ctx, id, confirmChange(adminID, notes, at))
}

func (r *sqlPaymentRepository) FindPending(ctx context.Context, limit int, offset int64) ([]*model.Payment, error) {
	payments := []*model.Payment{}
	err := sqldb.Conn(ctx, r.db).
		Where("status = ?", model.PaymentPending).
		Order("created_at ASC").
		Limit(limit).
		Offset(int(offset)).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending payments: %w", err)
	}
	return payments, nil
}

func (r *sqlPaymentRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := sqldb.Conn(ctx, r.db).Model(&model.Payment{}).
		Where("status = ?", model.PaymentPending).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending payments: %w", err)
	}
	return count, nil
}

func (r *sqlPaymentRepository) FindForUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Payment, error) {
	payments := []*model.Payment{}
	err := sqldb.Conn(ctx, r.db).
		Where("user_id = ? OR provider_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(int(offset)).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find payments: %w", err)
	}
	return payments, nil
}

func (r *sqlPaymentRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := sqldb.Conn(ctx, r.db).Model(&model.Payment{}).
		Where("user_id = ? OR provider_id = ?", userID, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

func (r *sqlPaymentRepository) Stats(ctx context.Context) (*model.PaymentStats, error) {
	var rows []struct {
		Status model.PaymentStatus
		Count  int64
		Total  decimal.NullDecimal
	}
	err := sqldb.Conn(ctx, r.db).Model(&model.Payment{}).
		Select("status, COUNT(*) AS count, SUM(amount) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payment stats: %w", err)
	}

	stats := newStats()
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
		if row.Status == model.PaymentConfirmed && row.Total.Valid {
			stats.ConfirmedTotal = row.Total.Decimal.Round(2)
		}
	}
	return stats, nil
}
