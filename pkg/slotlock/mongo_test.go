package slotlock

import (
	"context"
	"os"
	"testing"
	"time"

	mongodb "tutorhub/pkg/db/mongo"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Runs against a real server only when MONGO_URI is set.
func newMongoLocker(t *testing.T) *Mongo {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping Mongo slot lock tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetRegistry(mongodb.Registry()))
	require.NoError(t, err)

	database := client.Database("slotlock_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	locker := NewMongo(database)
	require.NoError(t, locker.EnsureIndexes(ctx))
	return locker
}

func TestMongo_AcquireReleaseTakeover(t *testing.T) {
	ctx := context.Background()
	locker := newMongoLocker(t)
	now := time.Now().UTC()
	locker.now = func() time.Time { return now }

	ok, err := locker.Acquire(ctx, "slot:p:1", "a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = locker.Acquire(ctx, "slot:p:1", "b", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, err = locker.Acquire(ctx, "slot:p:1", "b", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is taken over")

	require.NoError(t, locker.Release(ctx, "slot:p:1", "a"))
	ok, _ = locker.Acquire(ctx, "slot:p:1", "c", 30*time.Second)
	assert.False(t, ok, "stale holder cannot release the new lock")

	require.NoError(t, locker.Release(ctx, "slot:p:1", "b"))
	require.NoError(t, locker.Release(ctx, "slot:p:1", "b"))
}
