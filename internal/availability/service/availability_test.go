package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"tutorhub/internal/availability/repository"
	"tutorhub/internal/identity"
	"tutorhub/internal/testutil"
	apperrors "tutorhub/pkg/errors"
	"tutorhub/pkg/model"
	"tutorhub/pkg/slotlock"
	"tutorhub/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (AvailabilityService, *gorm.DB) {
	t.Helper()

	gdb := testutil.NewSQLite(t)
	testutil.SeedUsers(t, gdb,
		testutil.Provider("prov-1", "50"),
		testutil.Student("stud-1"),
		testutil.Admin("admin-1"),
	)
	v, err := validation.New()
	require.NoError(t, err)

	svc := NewAvailabilityService(
		repository.NewSQLWindowRepository(gdb),
		identity.NewSQLDirectory(gdb),
		slotlock.NewMemory(),
		v,
		testutil.Config(),
	)
	return svc, gdb
}

var provider = model.Actor{ID: "prov-1", Role: model.RoleProvider}

func TestCreateWindow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	start := testutil.At(9, 0)

	window, err := svc.CreateWindow(ctx, provider, &model.CreateWindowInput{
		ProviderID: "prov-1",
		Start:      start,
		End:        start.Add(4 * time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, window.ID)
	assert.Equal(t, model.WindowOpen, window.Status)

	found, err := svc.FindOpenWindow(ctx, "prov-1", start.Add(time.Hour), start.Add(2*time.Hour+30*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, window.ID, found.ID)
}

func TestCreateWindow_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	start := testutil.At(9, 0)
	testutil.SeedWindow(t, gdb, "prov-1", start, start.Add(2*time.Hour))

	tests := []struct {
		name  string
		actor model.Actor
		input model.CreateWindowInput
		code  string
	}{
		{
			name:  "end before start",
			actor: provider,
			input: model.CreateWindowInput{ProviderID: "prov-1", Start: start.Add(5 * time.Hour), End: start.Add(4 * time.Hour)},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "in the past",
			actor: provider,
			input: model.CreateWindowInput{ProviderID: "prov-1", Start: time.Now().Add(-2 * time.Hour), End: time.Now().Add(-time.Hour)},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "someone else's calendar",
			actor: model.Actor{ID: "stud-1", Role: model.RoleStudent},
			input: model.CreateWindowInput{ProviderID: "prov-1", Start: start.Add(5 * time.Hour), End: start.Add(6 * time.Hour)},
			code:  apperrors.CodeForbidden,
		},
		{
			name:  "not a provider",
			actor: model.Actor{ID: "admin-1", Role: model.RoleAdmin},
			input: model.CreateWindowInput{ProviderID: "stud-1", Start: start.Add(5 * time.Hour), End: start.Add(6 * time.Hour)},
			code:  apperrors.CodeInvalidInput,
		},
		{
			name:  "unknown provider",
			actor: model.Actor{ID: "admin-1", Role: model.RoleAdmin},
			input: model.CreateWindowInput{ProviderID: "ghost", Start: start.Add(5 * time.Hour), End: start.Add(6 * time.Hour)},
			code:  apperrors.CodeNotFound,
		},
		{
			name:  "overlaps existing window",
			actor: provider,
			input: model.CreateWindowInput{ProviderID: "prov-1", Start: start.Add(time.Hour), End: start.Add(3 * time.Hour)},
			code:  apperrors.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			_, err := svc.CreateWindow(ctx, tt.actor, &input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestCreateWindow_AdjacentWindowsDoNotOverlap(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	start := testutil.At(9, 0)
	testutil.SeedWindow(t, gdb, "prov-1", start, start.Add(2*time.Hour))

	_, err := svc.CreateWindow(ctx, provider, &model.CreateWindowInput{
		ProviderID: "prov-1",
		Start:      start.Add(2 * time.Hour),
		End:        start.Add(3 * time.Hour),
	})
	assert.NoError(t, err)
}

func TestCreateWindow_OverClaimedWindowConflicts(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	start := testutil.At(9, 0)
	w := testutil.SeedWindow(t, gdb, "prov-1", start, start.Add(time.Hour))
	_, err := svc.Claim(ctx, w.ID, "booking-1")
	require.NoError(t, err)

	_, err = svc.CreateWindow(ctx, provider, &model.CreateWindowInput{
		ProviderID: "prov-1",
		Start:      start.Add(-30 * time.Minute),
		End:        start.Add(2 * time.Hour),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "booked time cannot be republished, got %v", err)

	found, err := svc.FindOpenWindow(ctx, "prov-1", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestCreateWindow_ConcurrentOverlappingPublishes(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	start := testutil.At(9, 0)

	const publishers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			offset := time.Duration(i) * 10 * time.Minute
			_, err := svc.CreateWindow(ctx, provider, &model.CreateWindowInput{
				ProviderID: "prov-1",
				Start:      start.Add(offset),
				End:        start.Add(offset + 2*time.Hour),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t,
				apperrors.HasCode(err, apperrors.CodeConflict) || apperrors.HasCode(err, apperrors.CodeSlotBusy),
				"unexpected error %v", err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	var stored int64
	require.NoError(t, gdb.Model(&model.AvailabilityWindow{}).Where("provider_id = ?", "prov-1").Count(&stored).Error)
	assert.Equal(t, int64(1), stored)
}

func TestFindOpenWindow_MustCoverWholeInterval(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	start := testutil.At(9, 0)
	testutil.SeedWindow(t, gdb, "prov-1", start, start.Add(time.Hour))

	found, err := svc.FindOpenWindow(ctx, "prov-1", start.Add(30*time.Minute), start.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, found, "a window that ends before the session does not cover it")

	found, err = svc.FindOpenWindow(ctx, "prov-1", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.NotNil(t, found, "bounds are inclusive of an exact fit")
}

func TestClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	start := testutil.At(9, 0)
	w := testutil.SeedWindow(t, gdb, "prov-1", start, start.Add(time.Hour))

	claimed, err := svc.Claim(ctx, w.ID, "booking-1")
	require.NoError(t, err)
	assert.Equal(t, model.WindowClaimed, claimed.Status)
	assert.Equal(t, "booking-1", claimed.BookingID)

	_, err = svc.Claim(ctx, w.ID, "booking-2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeWindowNotOpen), "second claim must fail, got %v", err)

	found, err := svc.FindOpenWindow(ctx, "prov-1", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, found, "claimed windows are not offered")

	require.NoError(t, svc.Release(ctx, w.ID, "booking-2"), "a stranger's release is a no-op")
	_, err = svc.Claim(ctx, w.ID, "booking-3")
	assert.Error(t, err)

	require.NoError(t, svc.Release(ctx, w.ID, "booking-1"))
	require.NoError(t, svc.Release(ctx, w.ID, "booking-1"))

	found, err = svc.FindOpenWindow(ctx, "prov-1", start, start.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Empty(t, found.BookingID)
}

func TestListOpenWindows(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	start := testutil.At(8, 0)
	first := testutil.SeedWindow(t, gdb, "prov-1", start, start.Add(time.Hour))
	second := testutil.SeedWindow(t, gdb, "prov-1", start.Add(2*time.Hour), start.Add(3*time.Hour))
	claimed := testutil.SeedWindow(t, gdb, "prov-1", start.Add(4*time.Hour), start.Add(5*time.Hour))
	_, err := svc.Claim(ctx, claimed.ID, "b-1")
	require.NoError(t, err)

	windows, err := svc.ListOpenWindows(ctx, "prov-1", time.Time{}, time.Time{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, first.ID, windows[0].ID)
	assert.Equal(t, second.ID, windows[1].ID)

	windows, err = svc.ListOpenWindows(ctx, "prov-1", start.Add(time.Minute), time.Time{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, second.ID, windows[0].ID)

	_, err = svc.ListOpenWindows(ctx, "", time.Time{}, time.Time{}, 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestDeleteWindow(t *testing.T) {
	ctx := context.Background()
	svc, gdb := newService(t)
	start := testutil.At(9, 0)
	open := testutil.SeedWindow(t, gdb, "prov-1", start, start.Add(time.Hour))
	claimed := testutil.SeedWindow(t, gdb, "prov-1", start.Add(2*time.Hour), start.Add(3*time.Hour))
	_, err := svc.Claim(ctx, claimed.ID, "b-1")
	require.NoError(t, err)

	err = svc.DeleteWindow(ctx, model.Actor{ID: "stud-1", Role: model.RoleStudent}, open.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	err = svc.DeleteWindow(ctx, provider, claimed.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	err = svc.DeleteWindow(ctx, provider, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	require.NoError(t, svc.DeleteWindow(ctx, provider, open.ID))
	err = svc.DeleteWindow(ctx, provider, open.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
