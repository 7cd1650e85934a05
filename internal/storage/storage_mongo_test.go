package storage

import (
	"context"
	"os"
	"testing"
	"time"

	mongoMigration "tutorhub/internal/migrations/mongo"
	"tutorhub/internal/testutil"
	"tutorhub/pkg/client"
	"tutorhub/pkg/config"
	"tutorhub/pkg/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMongoStores runs against a real replica set only when MONGO_URI is set;
// the transaction tests need multi-document transactions.
func newMongoStores(t *testing.T) (*Stores, *config.Config) {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping Mongo storage tests")
	}

	cfg := testutil.Config()
	cfg.StoreBackend = config.BackendMongo
	cfg.SlotLockBackend = config.BackendMongo
	cfg.MongoDatabaseName = "tutorhub_test_" + uuid.NewString()[:8]
	cfg.Client = client.NewClient()
	cfg.Client.SetMongo(cfg.Log, uri, 10*time.Second)

	ctx := context.Background()
	require.NoError(t, mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log))
	t.Cleanup(func() {
		_ = cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Drop(context.Background())
		cfg.GracefulShutdown()
	})

	stores, err := New(ctx, cfg)
	require.NoError(t, err)
	return stores, cfg
}

func mongoWindow(t *testing.T, stores *Stores, start time.Time) *model.AvailabilityWindow {
	t.Helper()
	w := &model.AvailabilityWindow{
		ID:         uuid.NewString(),
		ProviderID: "prov-1",
		Start:      start,
		End:        start.Add(2 * time.Hour),
		Status:     model.WindowOpen,
	}
	require.NoError(t, stores.Windows.Create(context.Background(), w))
	return w
}

func mongoBooking(w *model.AvailabilityWindow) *model.Booking {
	return &model.Booking{
		ID:         uuid.NewString(),
		StudentID:  "stud-1",
		ProviderID: w.ProviderID,
		Mode:       model.ModeOnline,
		WindowID:   w.ID,
		Start:      w.Start,
		End:        w.Start.Add(time.Hour),
		Status:     model.BookingPending,
		Currency:   "XAF",
	}
}

func TestMongo_TransactionRollsBackClaim(t *testing.T) {
	stores, _ := newMongoStores(t)
	ctx := context.Background()
	w := mongoWindow(t, stores, testutil.At(10, 0))
	booking := mongoBooking(w)

	err := stores.Tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := stores.Bookings.Create(txCtx, booking); err != nil {
			return err
		}
		if err := stores.Windows.Claim(txCtx, w.ID, booking.ID); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	_, err = stores.Bookings.FindByID(ctx, booking.ID)
	assert.Error(t, err)
	window, err := stores.Windows.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WindowOpen, window.Status)
}

func TestMongo_OneActiveBookingPerSlot(t *testing.T) {
	stores, _ := newMongoStores(t)
	ctx := context.Background()
	w := mongoWindow(t, stores, testutil.At(12, 0))

	first := mongoBooking(w)
	require.NoError(t, stores.Bookings.Create(ctx, first))

	second := mongoBooking(w)
	assert.Error(t, stores.Bookings.Create(ctx, second))
}

func TestMongo_SlotLock(t *testing.T) {
	stores, _ := newMongoStores(t)
	ctx := context.Background()

	ok, err := stores.Locker.Acquire(ctx, "slot:prov-1:1", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = stores.Locker.Acquire(ctx, "slot:prov-1:1", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, stores.Locker.Release(ctx, "slot:prov-1:1", "a"))
}
