package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	availabilityrepo "tutorhub/internal/availability/repository"
	availability "tutorhub/internal/availability/service"
	"tutorhub/internal/bookings/repository"
	"tutorhub/internal/bookings/validator"
	"tutorhub/internal/identity"
	"tutorhub/internal/testutil"
	sqldb "tutorhub/pkg/db/sql"
	apperrors "tutorhub/pkg/errors"
	"tutorhub/pkg/metrics"
	"tutorhub/pkg/model"
	"tutorhub/pkg/notify"
	"tutorhub/pkg/notify/notifytest"
	"tutorhub/pkg/slotlock"
	"tutorhub/pkg/validation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	svc      BookingService
	db       *gorm.DB
	locker   *slotlock.Memory
	recorder *notifytest.Recorder
	notifier *notify.Notifier
}

var (
	student  = model.Actor{ID: "stud-1", Role: model.RoleStudent}
	provider = model.Actor{ID: "prov-1", Role: model.RoleProvider}
	admin    = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	stranger = model.Actor{ID: "stud-2", Role: model.RoleStudent}
)

func newHarness(t *testing.T, override ...func(*Deps)) *harness {
	t.Helper()

	gdb := testutil.NewSQLite(t)
	testutil.SeedUsers(t, gdb,
		testutil.Student("stud-1"),
		testutil.Student("stud-2"),
		testutil.Provider("prov-1", "50"),
		testutil.Admin("admin-1"),
	)

	cfg := testutil.Config()
	v, err := validation.New()
	require.NoError(t, err)

	dir := identity.NewSQLDirectory(gdb)
	recorder := notifytest.NewRecorder()
	m := metrics.New(prometheus.NewRegistry())
	notifier := notify.NewNotifier(recorder, cfg.Log, m)
	locker := slotlock.NewMemory()

	deps := Deps{
		Repo:         repository.NewSQLBookingRepository(gdb),
		Availability: availability.NewAvailabilityService(availabilityrepo.NewSQLWindowRepository(gdb), dir, locker, v, cfg),
		Directory:    dir,
		Rates:        identity.NewRateSource(dir, cfg.DefaultCurrency),
		Locker:       locker,
		Tx:           sqldb.NewTransactionManager(gdb),
		Validator:    validator.NewBookingValidator(v, cfg.Log),
		Notifier:     notifier,
		Metrics:      m,
	}
	for _, fn := range override {
		fn(&deps)
	}

	return &harness{
		svc:      NewBookingService(deps, cfg),
		db:       gdb,
		locker:   locker,
		recorder: recorder,
		notifier: notifier,
	}
}

func (h *harness) book(t *testing.T, start, end time.Time) *model.Booking {
	t.Helper()
	b, err := h.svc.Create(context.Background(), &model.CreateBookingInput{
		StudentID:  "stud-1",
		ProviderID: "prov-1",
		Start:      start,
		End:        end,
	})
	require.NoError(t, err)
	return b
}

func (h *harness) window(t *testing.T, id string) *model.AvailabilityWindow {
	t.Helper()
	var w model.AvailabilityWindow
	require.NoError(t, h.db.Where("id = ?", id).Take(&w).Error)
	return &w
}

func TestCreate_NinetyMinutesAtFifty(t *testing.T) {
	h := newHarness(t)
	start := testutil.At(10, 0)
	w := testutil.SeedWindow(t, h.db, "prov-1", start, start.Add(3*time.Hour))

	booking := h.book(t, start, start.Add(90*time.Minute))

	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, "75.00", booking.Price.StringFixed(2))
	assert.Equal(t, "XAF", booking.Currency)
	assert.Equal(t, model.ModeOnline, booking.Mode)
	assert.Equal(t, model.ProviderTutor, booking.ProviderType)
	assert.Equal(t, w.ID, booking.WindowID)

	claimed := h.window(t, w.ID)
	assert.Equal(t, model.WindowClaimed, claimed.Status)
	assert.Equal(t, booking.ID, claimed.BookingID)

	ok, err := h.locker.Acquire(context.Background(), slotlock.Key("prov-1", start), "probe", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "the slot lock is released after create")

	h.notifier.Flush()
	assert.Equal(t, []string{notify.BookingCreated}, h.recorder.Types())
}

func TestCreate_Rejections(t *testing.T) {
	h := newHarness(t)
	start := testutil.At(10, 0)
	testutil.SeedWindow(t, h.db, "prov-1", start, start.Add(time.Hour))

	tests := []struct {
		name  string
		input model.CreateBookingInput
		code  string
	}{
		{"no covering window", model.CreateBookingInput{StudentID: "stud-1", ProviderID: "prov-1", Start: start, End: start.Add(2 * time.Hour)}, apperrors.CodeWindowNotOpen},
		{"unknown student", model.CreateBookingInput{StudentID: "ghost", ProviderID: "prov-1", Start: start, End: start.Add(time.Hour)}, apperrors.CodeNotFound},
		{"unknown provider", model.CreateBookingInput{StudentID: "stud-1", ProviderID: "ghost", Start: start, End: start.Add(time.Hour)}, apperrors.CodeNotFound},
		{"provider is a student", model.CreateBookingInput{StudentID: "stud-1", ProviderID: "stud-2", Start: start, End: start.Add(time.Hour)}, apperrors.CodeInvalidInput},
		{"invalid interval", model.CreateBookingInput{StudentID: "stud-1", ProviderID: "prov-1", Start: start, End: start}, apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			_, err := h.svc.Create(context.Background(), &input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}

	var count int64
	require.NoError(t, h.db.Model(&model.Booking{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreate_SlotBusyWhileLocked(t *testing.T) {
	h := newHarness(t)
	start := testutil.At(10, 0)
	testutil.SeedWindow(t, h.db, "prov-1", start, start.Add(time.Hour))

	ok, err := h.locker.Acquire(context.Background(), slotlock.Key("prov-1", start), "someone-else", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.svc.Create(context.Background(), &model.CreateBookingInput{
		StudentID: "stud-1", ProviderID: "prov-1", Start: start, End: start.Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSlotBusy))
	assert.True(t, apperrors.AsAppError(err).Retryable)
}

func TestCreate_ConcurrentRequestsYieldOneBooking(t *testing.T) {
	h := newHarness(t)
	start := testutil.At(10, 0)
	testutil.SeedWindow(t, h.db, "prov-1", start, start.Add(time.Hour))

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Create(context.Background(), &model.CreateBookingInput{
				StudentID: "stud-1", ProviderID: "prov-1", Start: start, End: start.Add(time.Hour),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range failures {
		assert.True(t,
			apperrors.HasCode(err, apperrors.CodeSlotBusy) ||
				apperrors.HasCode(err, apperrors.CodeWindowNotOpen) ||
				apperrors.HasCode(err, apperrors.CodeConflict),
			"unexpected failure %v", err)
	}

	var count int64
	require.NoError(t, h.db.Model(&model.Booking{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

type failingClaim struct {
	availability.AvailabilityService
}

func (f failingClaim) Claim(context.Context, string, string) (*model.AvailabilityWindow, error) {
	return nil, apperrors.Internal("Failed to claim availability window", errors.New("disk on fire"))
}

func TestCreate_ClaimFailureRollsBackBooking(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Availability = failingClaim{d.Availability}
	})
	start := testutil.At(10, 0)
	w := testutil.SeedWindow(t, h.db, "prov-1", start, start.Add(time.Hour))

	_, err := h.svc.Create(context.Background(), &model.CreateBookingInput{
		StudentID: "stud-1", ProviderID: "prov-1", Start: start, End: start.Add(time.Hour),
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, h.db.Model(&model.Booking{}).Count(&count).Error)
	assert.Zero(t, count, "the booking insert must roll back with the failed claim")
	assert.Equal(t, model.WindowOpen, h.window(t, w.ID).Status)

	h.notifier.Flush()
	assert.Empty(t, h.recorder.Types())
}

func TestConfirm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := testutil.At(10, 0)
	testutil.SeedWindow(t, h.db, "prov-1", start, start.Add(time.Hour))
	booking := h.book(t, start, start.Add(time.Hour))

	_, err := h.svc.Confirm(ctx, booking.ID, student)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.svc.Confirm(ctx, booking.ID, admin)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "only the provider confirms directly")

	confirmed, err := h.svc.Confirm(ctx, booking.ID, provider)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, confirmed.Status)

	_, err = h.svc.Confirm(ctx, booking.ID, provider)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = h.svc.Confirm(ctx, "missing", provider)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := testutil.At(10, 0)
	testutil.SeedWindow(t, h.db, "prov-1", start, start.Add(3*time.Hour))
	booking := h.book(t, start, start.Add(time.Hour))

	_, err := h.svc.Start(ctx, booking.ID, provider)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "pending bookings cannot start")
	_, err = h.svc.MarkNoShow(ctx, booking.ID, provider)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = h.svc.Confirm(ctx, booking.ID, provider)
	require.NoError(t, err)

	_, err = h.svc.Start(ctx, booking.ID, student)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	started, err := h.svc.Start(ctx, booking.ID, provider)
	require.NoError(t, err)
	assert.Equal(t, model.BookingInProgress, started.Status)

	completed, err := h.svc.Complete(ctx, booking.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, completed.Status)

	_, err = h.svc.Cancel(ctx, booking.ID, admin, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "completed is terminal")

	h.notifier.Flush()
	assert.ElementsMatch(t, []string{
		notify.BookingCreated,
		notify.BookingConfirmed,
		notify.BookingStarted,
		notify.BookingCompleted,
	}, h.recorder.Types())
}

func TestCancel_Policy(t *testing.T) {
	soon := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Minute)
	later := testutil.At(10, 0)

	tests := []struct {
		name  string
		start time.Time
		actor model.Actor
		code  string
	}{
		{"student well ahead", later, student, ""},
		{"student inside notice", soon, student, apperrors.CodeCancellationWindowClosed},
		{"provider inside notice", soon, provider, ""},
		{"admin inside notice", soon, admin, ""},
		{"unrelated student", later, stranger, apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			w := testutil.SeedWindow(t, h.db, "prov-1", tt.start, tt.start.Add(time.Hour))
			booking := h.book(t, tt.start, tt.start.Add(time.Hour))

			canceled, err := h.svc.Cancel(ctx, booking.ID, tt.actor, &model.CancelBookingInput{Reason: "  schedule   clash "})
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
				assert.Equal(t, model.WindowClaimed, h.window(t, w.ID).Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, model.BookingCanceled, canceled.Status)
			assert.Equal(t, "schedule clash", canceled.CancelReason)
			assert.Equal(t, tt.actor.ID, canceled.CanceledBy)
			require.NotNil(t, canceled.CanceledAt)

			reopened := h.window(t, w.ID)
			assert.Equal(t, model.WindowOpen, reopened.Status)
			assert.Empty(t, reopened.BookingID)

			_, err = h.svc.Cancel(ctx, booking.ID, tt.actor, nil)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
		})
	}
}

func TestCancel_SlotCanBeRebooked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := testutil.At(10, 0)
	testutil.SeedWindow(t, h.db, "prov-1", start, start.Add(time.Hour))

	first := h.book(t, start, start.Add(time.Hour))
	_, err := h.svc.Cancel(ctx, first.ID, provider, nil)
	require.NoError(t, err)

	second := h.book(t, start, start.Add(time.Hour))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestGetByID_OnlyParticipants(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := testutil.At(10, 0)
	testutil.SeedWindow(t, h.db, "prov-1", start, start.Add(time.Hour))
	booking := h.book(t, start, start.Add(time.Hour))

	for _, actor := range []model.Actor{student, provider, admin} {
		got, err := h.svc.GetByID(ctx, booking.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, booking.ID, got.ID)
	}

	_, err := h.svc.GetByID(ctx, booking.ID, stranger)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestListForUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	day := testutil.At(8, 0)
	for i := 0; i < 3; i++ {
		start := day.Add(time.Duration(i*2) * time.Hour)
		testutil.SeedWindow(t, h.db, "prov-1", start, start.Add(time.Hour))
		h.book(t, start, start.Add(time.Hour))
	}

	bookings, total, err := h.svc.ListForUser(ctx, student, "", model.RoleStudent, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, bookings, 2)
	assert.True(t, bookings[0].Start.After(bookings[1].Start), "newest first")

	_, total, err = h.svc.ListForUser(ctx, provider, "", model.RoleProvider, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	_, total, err = h.svc.ListForUser(ctx, stranger, "", "", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = h.svc.ListForUser(ctx, stranger, "stud-1", "", 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, total, err = h.svc.ListForUser(ctx, admin, "stud-1", "", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}
