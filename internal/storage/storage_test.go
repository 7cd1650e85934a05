package storage

import (
	"context"
	"testing"
	"time"

	"tutorhub/internal/testutil"
	"tutorhub/pkg/client"
	"tutorhub/pkg/config"
	"tutorhub/pkg/model"
	"tutorhub/pkg/slotlock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQL_LockBackend(t *testing.T) {
	gdb := testutil.NewSQLite(t)

	_, isMemory := NewSQL(gdb, config.BackendMemory).Locker.(*slotlock.Memory)
	assert.True(t, isMemory)

	_, isSQL := NewSQL(gdb, config.BackendSQL).Locker.(*slotlock.SQL)
	assert.True(t, isSQL)
}

func TestNewSQL_SharesTransaction(t *testing.T) {
	gdb := testutil.NewSQLite(t)
	testutil.SeedUsers(t, gdb, testutil.Student("stud-1"), testutil.Provider("prov-1", "50"))
	stores := NewSQL(gdb, config.BackendMemory)
	start := testutil.At(10, 0)
	w := testutil.SeedWindow(t, gdb, "prov-1", start, start.Add(time.Hour))

	booking := &model.Booking{
		ID:         "b-1",
		StudentID:  "stud-1",
		ProviderID: "prov-1",
		Mode:       model.ModeOnline,
		WindowID:   w.ID,
		Start:      start,
		End:        start.Add(time.Hour),
		Status:     model.BookingPending,
		Currency:   "XAF",
	}
	err := stores.Tx.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		if err := stores.Bookings.Create(ctx, booking); err != nil {
			return err
		}
		if err := stores.Windows.Claim(ctx, w.ID, booking.ID); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = stores.Bookings.FindByID(context.Background(), "b-1")
	assert.Error(t, err, "the booking must roll back with the window claim")
	window, err := stores.Windows.FindByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WindowOpen, window.Status)
}

func TestNew_RequiresConnection(t *testing.T) {
	cfg := testutil.Config()
	cfg.Client = client.NewClient()

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg.StoreBackend = config.BackendMongo
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)

	cfg.StoreBackend = "cassandra"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
