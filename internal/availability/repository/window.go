package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "tutorhub/internal/availability/errors"
	"tutorhub/pkg/config"
	mongotx "tutorhub/pkg/db/mongo"
	"tutorhub/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "availability_windows"
)

// WindowRepository persists availability windows. Claim and Release are
// conditional writes: they only change a window in the expected state.
type WindowRepository interface {
	Create(ctx context.Context, window *model.AvailabilityWindow) error
	FindByID(ctx context.Context, id string) (*model.AvailabilityWindow, error)
	// FindOpenCovering returns the earliest open window of providerID that
	// contains [start, end).
	FindOpenCovering(ctx context.Context, providerID string, start, end time.Time) (*model.AvailabilityWindow, error)
	FindOpen(ctx context.Context, providerID string, from, to time.Time, limit int, offset int64) ([]*model.AvailabilityWindow, error)
	// CountOverlapping counts open or claimed windows of providerID
	// intersecting [start, end).
	CountOverlapping(ctx context.Context, providerID string, start, end time.Time) (int64, error)
	Claim(ctx context.Context, id, bookingID string) error
	Release(ctx context.Context, id, bookingID string) error
	DeleteOpen(ctx context.Context, id string) error
}

type mongoWindowRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoWindowRepository(cfg *config.Config) WindowRepository {
	return &mongoWindowRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoWindowRepository) Create(ctx context.Context, window *model.AvailabilityWindow) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	window.CreatedAt = now
	window.UpdatedAt = now
	if _, err := r.collection.InsertOne(ctx, window); err != nil {
		return fmt.Errorf("failed to create availability window: %w", err)
	}
	return nil
}

func (r *mongoWindowRepository) FindByID(ctx context.Context, id string) (*model.AvailabilityWindow, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var window model.AvailabilityWindow
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&window)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find availability window: %w", err)
	}
	return &window, nil
}

func (r *mongoWindowRepository) FindOpenCovering(ctx context.Context, providerID string, start, end time.Time) (*model.AvailabilityWindow, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"provider_id": providerID,
		"status":      model.WindowOpen,
		"start":       bson.M{"$lte": start},
		"end":         bson.M{"$gte": end},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "start", Value: 1}})

	var window model.AvailabilityWindow
	err := r.collection.FindOne(ctx, filter, opts).Decode(&window)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find open window: %w", err)
	}
	return &window, nil
}

func (r *mongoWindowRepository) FindOpen(ctx context.Context, providerID string, from, to time.Time, limit int, offset int64) ([]*model.AvailabilityWindow, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	startFilter := bson.M{"$gte": from}
	if !to.IsZero() {
		startFilter["$lt"] = to
	}
	filter := bson.M{
		"provider_id": providerID,
		"status":      model.WindowOpen,
		"start":       startFilter,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "start", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find open windows: %w", err)
	}
	defer cursor.Close(ctx)

	windows := []*model.AvailabilityWindow{}
	if err = cursor.All(ctx, &windows); err != nil {
		return nil, fmt.Errorf("failed to decode availability windows: %w", err)
	}
	return windows, nil
}

func (r *mongoWindowRepository) CountOverlapping(ctx context.Context, providerID string, start, end time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"provider_id": providerID,
		"status":      bson.M{"$in": bson.A{model.WindowOpen, model.WindowClaimed}},
		"start":       bson.M{"$lt": end},
		"end":         bson.M{"$gt": start},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping windows: %w", err)
	}
	return count, nil
}

func (r *mongoWindowRepository) Claim(ctx context.Context, id, bookingID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.WindowOpen},
		bson.M{"$set": bson.M{
			"status":     model.WindowClaimed,
			"booking_id": bookingID,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to claim availability window: %w", err)
	}
	if res.MatchedCount == 0 {
		return availabilityerrors.ErrNotOpen
	}
	return nil
}

func (r *mongoWindowRepository) Release(ctx context.Context, id, bookingID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.WindowClaimed, "booking_id": bookingID},
		bson.M{
			"$set":   bson.M{"status": model.WindowOpen, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"booking_id": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to release availability window: %w", err)
	}
	return nil
}

func (r *mongoWindowRepository) DeleteOpen(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "status": model.WindowOpen})
	if err != nil {
		return fmt.Errorf("failed to delete availability window: %w", err)
	}
	if res.DeletedCount == 1 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return availabilityerrors.ErrNotOpen
}
