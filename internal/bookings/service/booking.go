package service

import (
	"context"
	"errors"
	"time"

	availability "tutorhub/internal/availability/service"
	bookingserrors "tutorhub/internal/bookings/errors"
	"tutorhub/internal/bookings/repository"
	"tutorhub/internal/bookings/validator"
	"tutorhub/internal/identity"
	"tutorhub/pkg/config"
	"tutorhub/pkg/db"
	apperrors "tutorhub/pkg/errors"
	"tutorhub/pkg/metrics"
	"tutorhub/pkg/model"
	"tutorhub/pkg/notify"
	"tutorhub/pkg/pricing"
	"tutorhub/pkg/sanitizer"
	"tutorhub/pkg/slotlock"
	"tutorhub/pkg/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("tutorhub/internal/bookings")

type BookingService interface {
	Create(ctx context.Context, input *model.CreateBookingInput) (*model.Booking, error)
	Confirm(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)
	Cancel(ctx context.Context, id string, actor model.Actor, input *model.CancelBookingInput) (*model.Booking, error)
	Start(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)
	Complete(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)
	MarkNoShow(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)
	GetByID(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)
	ListForUser(ctx context.Context, actor model.Actor, userID string, role model.Role, limit int, offset int64) ([]*model.Booking, int64, error)
}

// Deps are the collaborators of the booking service.
type Deps struct {
	Repo         repository.BookingRepository
	Availability availability.AvailabilityService
	Directory    identity.Directory
	Rates        pricing.RateSource
	Locker       slotlock.Locker
	Tx           db.TransactionManager
	Validator    *validator.BookingValidator
	Notifier     *notify.Notifier
	Metrics      *metrics.Metrics
}

type bookingService struct {
	Deps
	cfg *config.Config
	now func() time.Time
}

func NewBookingService(deps Deps, cfg *config.Config) BookingService {
	return &bookingService{
		Deps: deps,
		cfg:  cfg,
		now:  time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, input *model.CreateBookingInput) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "bookings.Create")
	defer span.End()

	s.applyDefaults(input)
	s.sanitize(input)
	if err := s.Validator.ValidateCreate(input); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "student_id", input.StudentID, "provider_id", input.ProviderID, "error", err)
		return nil, validation.ToAppError(err)
	}
	start, end := input.Start.UTC(), input.End.UTC()
	span.SetAttributes(
		attribute.String("booking.provider_id", input.ProviderID),
		attribute.String("booking.start", start.Format(time.RFC3339)),
	)

	provider, err := s.resolveParticipants(ctx, input.StudentID, input.ProviderID)
	if err != nil {
		return nil, err
	}

	rate, err := s.Rates.RateFor(ctx, input.ProviderID)
	if err != nil {
		if errors.Is(err, identity.ErrRateNotSet) {
			return nil, apperrors.InvalidInput("Provider has not set an hourly rate")
		}
		return nil, apperrors.Internal("Failed to resolve provider rate", err)
	}
	price := pricing.Price(start, end, rate.Hourly)

	key := slotlock.Key(input.ProviderID, start)
	holder := uuid.NewString()
	acquired, err := s.Locker.Acquire(ctx, key, holder, s.cfg.SlotLockTTL)
	if err != nil {
		s.Metrics.ObserveSlotLock(metrics.LockError)
		s.cfg.Log.Error("Failed to acquire slot lock", "lock_key", key, "error", err)
		span.SetStatus(codes.Error, "slot lock unavailable")
		return nil, apperrors.Unavailable("Slot lock").WithCause(err)
	}
	if !acquired {
		s.Metrics.ObserveSlotLock(metrics.LockBusy)
		s.cfg.Log.Warn("Slot is locked by another request", "lock_key", key)
		return nil, apperrors.SlotBusy(input.ProviderID, key)
	}
	s.Metrics.ObserveSlotLock(metrics.LockAcquired)
	defer func() {
		if releaseErr := s.Locker.Release(context.WithoutCancel(ctx), key, holder); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_key", key, "error", releaseErr)
		}
	}()

	booking := &model.Booking{
		ID:           uuid.NewString(),
		StudentID:    input.StudentID,
		ProviderID:   input.ProviderID,
		ProviderType: provider.ProviderType,
		Mode:         input.Mode,
		Start:        start,
		End:          end,
		Status:       model.BookingPending,
		Price:        price,
		Currency:     rate.Currency,
		Notes:        input.Notes,
	}

	err = s.Tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		window, err := s.Availability.FindOpenWindow(txCtx, booking.ProviderID, start, end)
		if err != nil {
			return err
		}
		if window == nil {
			return apperrors.WindowNotOpen(booking.ProviderID)
		}
		booking.WindowID = window.ID

		if err := s.Repo.Create(txCtx, booking); err != nil {
			if errors.Is(err, bookingserrors.ErrSlotTaken) {
				return apperrors.Conflict("Provider is already booked at this time")
			}
			return apperrors.Internal("Failed to create booking", err)
		}

		_, err = s.Availability.Claim(txCtx, window.ID, booking.ID)
		return err
	})
	if err != nil {
		s.logFailure("Failed to create booking", err, "provider_id", booking.ProviderID, "start", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create booking failed")
		return nil, err
	}

	s.Metrics.ObserveBookingTransition(string(model.BookingPending))
	s.Notifier.Notify(ctx, notify.BookingEvent(notify.BookingCreated, booking))
	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"student_id", booking.StudentID,
		"provider_id", booking.ProviderID,
		"start", booking.Start,
		"price", booking.Price.StringFixed(pricing.MinorUnits),
		"currency", booking.Currency,
	)
	return booking, nil
}

func (s *bookingService) resolveParticipants(ctx context.Context, studentID, providerID string) (*model.User, error) {
	student, err := s.Directory.GetUser(ctx, studentID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, apperrors.NotFoundWithID("Student", studentID)
		}
		return nil, apperrors.Internal("Failed to resolve student", err)
	}
	if student.Role != model.RoleStudent {
		return nil, apperrors.InvalidInput("Only students can book sessions")
	}

	provider, err := s.Directory.GetUser(ctx, providerID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, apperrors.NotFoundWithID("Provider", providerID)
		}
		return nil, apperrors.Internal("Failed to resolve provider", err)
	}
	if provider.Role != model.RoleProvider {
		return nil, apperrors.InvalidInput("Sessions can only be booked with providers")
	}
	return provider, nil
}

func (s *bookingService) Confirm(ctx context.Context, id string, actor model.Actor) (*model.Booking, error) {
	return s.transition(ctx, id, actor, model.BookingConfirmed, notify.BookingConfirmed, func(b *model.Booking) error {
		if actor.ID != b.ProviderID {
			return apperrors.Forbidden("Only the booking's provider can confirm it")
		}
		return nil
	})
}

func (s *bookingService) Start(ctx context.Context, id string, actor model.Actor) (*model.Booking, error) {
	return s.transition(ctx, id, actor, model.BookingInProgress, notify.BookingStarted, providerOrAdmin(actor))
}

func (s *bookingService) Complete(ctx context.Context, id string, actor model.Actor) (*model.Booking, error) {
	return s.transition(ctx, id, actor, model.BookingCompleted, notify.BookingCompleted, providerOrAdmin(actor))
}

func (s *bookingService) MarkNoShow(ctx context.Context, id string, actor model.Actor) (*model.Booking, error) {
	return s.transition(ctx, id, actor, model.BookingNoShow, notify.BookingNoShow, providerOrAdmin(actor))
}

func providerOrAdmin(actor model.Actor) func(b *model.Booking) error {
	return func(b *model.Booking) error {
		if actor.ID != b.ProviderID && !actor.IsAdmin() {
			return apperrors.Forbidden("Only the booking's provider or an admin can update it")
		}
		return nil
	}
}

// transition moves a booking to next with a write conditioned on the status
// that was read, so a concurrent change is reported instead of overwritten.
func (s *bookingService) transition(
	ctx context.Context,
	id string,
	actor model.Actor,
	next model.BookingStatus,
	event string,
	authorize func(b *model.Booking) error,
) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(booking); err != nil {
		s.cfg.Log.Warn("Booking transition forbidden", "id", id, "actor_id", actor.ID, "to", next)
		return nil, err
	}
	if !booking.Status.CanTransitionTo(next) {
		return nil, apperrors.InvalidTransition("Booking", string(booking.Status), string(next))
	}

	updated, err := s.Repo.Transition(ctx, id, repository.StatusChange{
		From: []model.BookingStatus{booking.Status},
		To:   next,
	})
	if err != nil {
		return nil, s.mapTransitionError(ctx, id, next, err)
	}

	s.Metrics.ObserveBookingTransition(string(next))
	s.Notifier.Notify(ctx, notify.BookingEvent(event, updated))
	s.cfg.Log.Info("Booking status updated",
		"id", id,
		"from", booking.Status,
		"to", next,
		"actor_id", actor.ID,
	)
	return updated, nil
}

func (s *bookingService) Cancel(ctx context.Context, id string, actor model.Actor, input *model.CancelBookingInput) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "bookings.Cancel")
	defer span.End()

	if input == nil {
		input = &model.CancelBookingInput{}
	}
	input.Reason = sanitizer.TrimAndNormalize(input.Reason)
	if err := s.Validator.ValidateCancel(input); err != nil {
		return nil, validation.ToAppError(err)
	}

	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParticipant(actor.ID) && !actor.IsAdmin() {
		s.cfg.Log.Warn("Booking cancellation forbidden", "id", id, "actor_id", actor.ID)
		return nil, apperrors.Forbidden("Only the booking's participants or an admin can cancel it")
	}
	if !booking.Status.CanTransitionTo(model.BookingCanceled) {
		return nil, apperrors.InvalidTransition("Booking", string(booking.Status), string(model.BookingCanceled))
	}

	now := s.now().UTC()
	if actor.ID == booking.StudentID && booking.Start.Sub(now) < s.cfg.CancellationNotice {
		s.cfg.Log.Warn("Late cancellation refused",
			"id", id,
			"student_id", booking.StudentID,
			"start", booking.Start,
		)
		return nil, apperrors.CancellationWindowClosed(s.cfg.CancellationNotice.String())
	}

	var canceled *model.Booking
	err = s.Tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		var err error
		canceled, err = s.Repo.Transition(txCtx, id, repository.StatusChange{
			From:         []model.BookingStatus{booking.Status},
			To:           model.BookingCanceled,
			CancelReason: input.Reason,
			CanceledBy:   actor.ID,
			CanceledAt:   &now,
		})
		if err != nil {
			return s.mapTransitionError(txCtx, id, model.BookingCanceled, err)
		}
		return s.Availability.Release(txCtx, booking.WindowID, booking.ID)
	})
	if err != nil {
		s.logFailure("Failed to cancel booking", err, "id", id)
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel booking failed")
		return nil, err
	}

	s.Metrics.ObserveBookingTransition(string(model.BookingCanceled))
	s.Notifier.Notify(ctx, notify.BookingEvent(notify.BookingCanceled, canceled))
	s.cfg.Log.Info("Booking canceled", "id", id, "canceled_by", actor.ID, "from", booking.Status)
	return canceled, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string, actor model.Actor) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParticipant(actor.ID) && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Bookings are visible to their participants only")
	}
	return booking, nil
}

func (s *bookingService) ListForUser(ctx context.Context, actor model.Actor, userID string, role model.Role, limit int, offset int64) ([]*model.Booking, int64, error) {
	if userID == "" {
		userID = actor.ID
	}
	if userID != actor.ID && !actor.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Cannot list another user's bookings")
	}
	if role != "" && role != model.RoleStudent && role != model.RoleProvider {
		return nil, 0, apperrors.InvalidInput("role must be student or provider")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		count, err = s.Repo.CountForUser(gctx, userID, role)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "user_id", userID, "error", err)
			return apperrors.Internal("Failed to count bookings", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		bookings, err = s.Repo.FindForUser(gctx, userID, role, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings", "user_id", userID, "limit", limit, "offset", offset, "error", err)
			return apperrors.Internal("Failed to retrieve bookings", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return bookings, count, nil
}

func (s *bookingService) load(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) mapTransitionError(ctx context.Context, id string, next model.BookingStatus, err error) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrStatusConflict):
		current := "unknown"
		if b, findErr := s.Repo.FindByID(ctx, id); findErr == nil {
			current = string(b.Status)
		}
		return apperrors.InvalidTransition("Booking", current, string(next))
	}
	return apperrors.Internal("Failed to update booking status", err)
}

func (s *bookingService) applyDefaults(input *model.CreateBookingInput) {
	if input.Mode == "" {
		input.Mode = model.ModeOnline
	}
}

func (s *bookingService) sanitize(input *model.CreateBookingInput) {
	input.StudentID = sanitizer.NormalizeID(input.StudentID)
	input.ProviderID = sanitizer.NormalizeID(input.ProviderID)
	input.Notes = sanitizer.TrimAndNormalize(input.Notes)
}

func (s *bookingService) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if apperrors.IsAppError(err) && apperrors.AsAppError(err).StatusCode() < 500 {
		s.cfg.Log.Warn(msg, args...)
		return
	}
	s.cfg.Log.Error(msg, args...)
}
