package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	paymentserrors "tutorhub/internal/payments/errors"
	"tutorhub/pkg/config"
	"tutorhub/pkg/db"
	mongotx "tutorhub/pkg/db/mongo"
	"tutorhub/pkg/model"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "payments"
)

// StatusChange is a conditional transition applied only while the payment
// is still in From.
type StatusChange struct {
	From        model.PaymentStatus
	To          model.PaymentStatus
	AdminNotes  string
	ConfirmedBy string
	ConfirmedAt *time.Time
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id string) (*model.Payment, error)
	Transition(ctx context.Context, id string, change StatusChange) (*model.Payment, error)
	// MarkConfirmed moves a pending payment to confirmed. It only runs as
	// part of a settlement transaction and panics otherwise.
	MarkConfirmed(ctx context.Context, id, adminID, notes string, at time.Time) (*model.Payment, error)
	FindPending(ctx context.Context, limit int, offset int64) ([]*model.Payment, error)
	CountPending(ctx context.Context) (int64, error)
	FindForUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Payment, error)
	CountForUser(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context) (*model.PaymentStats, error)
}

func confirmChange(adminID, notes string, at time.Time) StatusChange {
	return StatusChange{
		From:        model.PaymentPending,
		To:          model.PaymentConfirmed,
		AdminNotes:  notes,
		ConfirmedBy: adminID,
		ConfirmedAt: &at,
	}
}

func newStats() *model.PaymentStats {
	return &model.PaymentStats{
		ByStatus:       map[model.PaymentStatus]int64{},
		ConfirmedTotal: decimal.Zero,
	}
}

type mongoPaymentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPaymentRepository(cfg *config.Config) PaymentRepository {
	return &mongoPaymentRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if _, err := r.collection.InsertOne(ctx, payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *mongoPaymentRepository) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var payment model.Payment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, paymentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &payment, nil
}

func (r *mongoPaymentRepository) Transition(ctx context.Context, id string, change StatusChange) (*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set := bson.M{
		"status":     change.To,
		"updated_at": time.Now().UTC(),
	}
	if change.AdminNotes != "" {
		set["admin_notes"] = change.AdminNotes
	}
	if change.ConfirmedBy != "" {
		set["confirmed_by"] = change.ConfirmedBy
		set["confirmed_at"] = change.ConfirmedAt
	}

	var payment model.Payment
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": change.From},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&payment)
	if err == nil {
		return &payment, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to transition payment: %w", err)
	}

	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, paymentserrors.ErrStatusConflict
}

func (r *mongoPaymentRepository) MarkConfirmed(ctx context.Context, id, adminID, notes string, at time.Time) (*model.Payment, error) {
	db.MustBeInTransaction(ctx, "payments.MarkConfirmed")
	return r.Transition(ctx, id, confirmChange(adminID, notes, at))
}

func (r *mongoPaymentRepository) find(ctx context.Context, filter bson.M, sort bson.D, limit int, offset int64) ([]*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(sort).SetLimit(int64(limit)).SetSkip(offset)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find payments: %w", err)
	}
	defer cursor.Close(ctx)

	payments := []*model.Payment{}
	if err = cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, nil
}

func (r *mongoPaymentRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

func (r *mongoPaymentRepository) FindPending(ctx context.Context, limit int, offset int64) ([]*model.Payment, error) {
	return r.find(ctx, bson.M{"status": model.PaymentPending}, bson.D{{Key: "created_at", Value: 1}}, limit, offset)
}

func (r *mongoPaymentRepository) CountPending(ctx context.Context) (int64, error) {
	return r.count(ctx, bson.M{"status": model.PaymentPending})
}

func (r *mongoPaymentRepository) FindForUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Payment, error) {
	return r.find(ctx, participantFilter(userID), bson.D{{Key: "created_at", Value: -1}}, limit, offset)
}

func (r *mongoPaymentRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, participantFilter(userID))
}

func participantFilter(userID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"user_id": userID},
		bson.M{"provider_id": userID},
	}}
}

func (r *mongoPaymentRepository) Stats(ctx context.Context) (*model.PaymentStats, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$amount"},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payment stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status model.PaymentStatus `bson:"_id"`
		Count  int64               `bson:"count"`
		Total  decimal.Decimal     `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode payment stats: %w", err)
	}

	stats := newStats()
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
		if row.Status == model.PaymentConfirmed {
			stats.ConfirmedTotal = row.Total
		}
	}
	return stats, nil
}
