package repository_test

import (
	"context"
	"testing"
	"time"

	bookingserrors "tutorhub/internal/bookings/errors"
	"tutorhub/internal/bookings/repository"
	"tutorhub/internal/testutil"
	"tutorhub/pkg/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLBookingRepository_Transition(t *testing.T) {
	gdb := testutil.NewSQLite(t)
	repo := repository.NewSQLBookingRepository(gdb)
	ctx := context.Background()
	b := testutil.SeedBooking(t, gdb, "stud-1", "prov-1", testutil.At(10, 0))

	confirmed, err := repo.Transition(ctx, b.ID, repository.StatusChange{
		From: []model.BookingStatus{model.BookingPending},
		To:   model.BookingConfirmed,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, confirmed.Status)

	// A second writer still expecting pending loses.
	_, err = repo.Transition(ctx, b.ID, repository.StatusChange{
		From: []model.BookingStatus{model.BookingPending},
		To:   model.BookingCanceled,
	})
	assert.ErrorIs(t, err, bookingserrors.ErrStatusConflict)

	_, err = repo.Transition(ctx, "missing", repository.StatusChange{
		From: []model.BookingStatus{model.BookingPending},
		To:   model.BookingConfirmed,
	})
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound)
}

func TestSQLBookingRepository_CancelRecordsAudit(t *testing.T) {
	gdb := testutil.NewSQLite(t)
	repo := repository.NewSQLBookingRepository(gdb)
	ctx := context.Background()
	b := testutil.SeedBooking(t, gdb, "stud-1", "prov-1", testutil.At(10, 0))

	at := time.Now().UTC().Truncate(time.Second)
	canceled, err := repo.Transition(ctx, b.ID, repository.StatusChange{
		From:         []model.BookingStatus{model.BookingPending, model.BookingConfirmed},
		To:           model.BookingCanceled,
		CancelReason: "sick",
		CanceledBy:   "stud-1",
		CanceledAt:   &at,
	})
	require.NoError(t, err)
	assert.Equal(t, "sick", canceled.CancelReason)
	assert.Equal(t, "stud-1", canceled.CanceledBy)
	require.NotNil(t, canceled.CanceledAt)
	assert.True(t, at.Equal(canceled.CanceledAt.UTC()))
}

func TestSQLBookingRepository_OneActiveBookingPerSlot(t *testing.T) {
	gdb := testutil.NewSQLite(t)
	repo := repository.NewSQLBookingRepository(gdb)
	ctx := context.Background()
	start := testutil.At(10, 0)
	first := testutil.SeedBooking(t, gdb, "stud-1", "prov-1", start)

	dup := *first
	dup.ID = uuid.NewString()
	dup.StudentID = "stud-2"
	assert.ErrorIs(t, repo.Create(ctx, &dup), bookingserrors.ErrSlotTaken)

	// Canceling frees the slot for a new booking.
	_, err := repo.Transition(ctx, first.ID, repository.StatusChange{
		From: []model.BookingStatus{model.BookingPending},
		To:   model.BookingCanceled,
	})
	require.NoError(t, err)
	dup.ID = uuid.NewString()
	assert.NoError(t, repo.Create(ctx, &dup))
}

func TestSQLBookingRepository_ListForUser(t *testing.T) {
	gdb := testutil.NewSQLite(t)
	repo := repository.NewSQLBookingRepository(gdb)
	ctx := context.Background()
	early := testutil.SeedBooking(t, gdb, "stud-1", "prov-1", testutil.At(9, 0))
	late := testutil.SeedBooking(t, gdb, "stud-1", "prov-2", testutil.At(15, 0))
	testutil.SeedBooking(t, gdb, "stud-2", "prov-1", testutil.At(12, 0))

	bookings, err := repo.FindForUser(ctx, "stud-1", model.RoleStudent, 10, 0)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, late.ID, bookings[0].ID, "newest start first")
	assert.Equal(t, early.ID, bookings[1].ID)

	count, err := repo.CountForUser(ctx, "prov-1", model.RoleProvider)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	page, err := repo.FindForUser(ctx, "stud-1", "", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, early.ID, page[0].ID)
}
