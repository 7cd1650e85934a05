package slotlock

import (
	"context"
	"fmt"
	"time"

	"tutorhub/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SlotLocksCollection = "slot_locks"

// Mongo stores locks as documents keyed by _id. The unique primary key makes
// insertion the atomic set-if-absent; a TTL index on expires_at eventually
// deletes abandoned locks and Acquire takes over expired ones eagerly.
type Mongo struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongo(database *mongo.Database) *Mongo {
	return &Mongo{
		collection: database.Collection(SlotLocksCollection),
		now:        time.Now,
	}
}

// EnsureIndexes creates the TTL index used for background cleanup.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("slot_locks_ttl"),
	})
	if err != nil {
		return fmt.Errorf("failed to create slot lock ttl index: %w", err)
	}
	return nil
}

func (m *Mongo) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}

	now := m.now().UTC()
	lock := model.SlotLock{
		Key:       key,
		Holder:    holder,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := m.collection.InsertOne(ctx, lock)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to insert slot lock: %w", err)
	}

	// The TTL monitor runs about once a minute, so an expired lock may
	// still be present. Take it over only if it is past its expiry.
	res, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": key, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{
			"holder":     holder,
			"expires_at": lock.ExpiresAt,
			"created_at": now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to take over expired slot lock: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (m *Mongo) Release(ctx context.Context, key, holder string) error {
	_, err := m.collection.DeleteOne(ctx, bson.M{"_id": key, "holder": holder})
	if err != nil {
		return fmt.Errorf("failed to release slot lock: %w", err)
	}
	return nil
}
