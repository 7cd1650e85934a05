package service

import (
	"context"
	"errors"

	bookingserrors "tutorhub/internal/bookings/errors"
	bookingsrepo "tutorhub/internal/bookings/repository"
	paymentserrors "tutorhub/internal/payments/errors"
	"tutorhub/internal/payments/repository"
	"tutorhub/internal/payments/validator"
	"tutorhub/pkg/config"
	apperrors "tutorhub/pkg/errors"
	"tutorhub/pkg/metrics"
	"tutorhub/pkg/model"
	"tutorhub/pkg/notify"
	"tutorhub/pkg/sanitizer"
	"tutorhub/pkg/validation"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PaymentService records payments against bookings. Confirmation is not
// here: it belongs to settlement, which confirms the payment and its booking
// together.
type PaymentService interface {
	Create(ctx context.Context, actor model.Actor, input *model.CreatePaymentInput) (*model.Payment, error)
	Reject(ctx context.Context, id string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error)
	Cancel(ctx context.Context, id string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error)
	GetByID(ctx context.Context, id string, actor model.Actor) (*model.Payment, error)
	ListPending(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Payment, int64, error)
	ListForUser(ctx context.Context, actor model.Actor, userID string, limit int, offset int64) ([]*model.Payment, int64, error)
	Stats(ctx context.Context, actor model.Actor) (*model.PaymentStats, error)
}

type paymentService struct {
	repo      repository.PaymentRepository
	bookings  bookingsrepo.BookingRepository
	validator *validator.PaymentValidator
	notifier  *notify.Notifier
	metrics   *metrics.Metrics
	cfg       *config.Config
}

func NewPaymentService(
	repo repository.PaymentRepository,
	bookings bookingsrepo.BookingRepository,
	validator *validator.PaymentValidator,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		repo:      repo,
		bookings:  bookings,
		validator: validator,
		notifier:  notifier,
		metrics:   m,
		cfg:       cfg,
	}
}

func (s *paymentService) Create(ctx context.Context, actor model.Actor, input *model.CreatePaymentInput) (*model.Payment, error) {
	s.applyDefaults(input)
	s.sanitize(input)
	if err := s.validator.ValidateCreate(input); err != nil {
		s.cfg.Log.Warn("Payment validation failed", "booking_id", input.BookingID, "error", err)
		return nil, validation.ToAppError(err)
	}
	if input.UserID != actor.ID && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Payments can only be recorded by the payer or an admin")
	}

	booking, err := s.bookings.FindByID(ctx, input.BookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", input.BookingID)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	if booking.Status != model.BookingPending {
		s.cfg.Log.Warn("Payment refused for booking not awaiting payment",
			"booking_id", booking.ID,
			"status", booking.Status,
		)
		return nil, apperrors.InvalidBookingState(booking.ID, string(booking.Status))
	}
	if input.UserID != booking.StudentID {
		return nil, apperrors.InvalidInput("Payer must be the booking's student")
	}
	if input.ProviderID == "" {
		input.ProviderID = booking.ProviderID
	} else if input.ProviderID != booking.ProviderID {
		return nil, apperrors.InvalidInput("Payee must be the booking's provider")
	}
	if input.Currency == "" {
		input.Currency = booking.Currency
	} else if input.Currency != booking.Currency {
		return nil, apperrors.InvalidInput("Currency must match the booking currency " + booking.Currency)
	}

	payment := &model.Payment{
		ID:          uuid.NewString(),
		BookingID:   booking.ID,
		UserID:      input.UserID,
		ProviderID:  input.ProviderID,
		Amount:      input.Amount,
		Currency:    input.Currency,
		Type:        input.Type,
		Method:      input.Method,
		Provider:    input.Provider,
		ProviderRef: input.ProviderRef,
		Status:      model.PaymentPending,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		s.cfg.Log.Error("Failed to create payment", "booking_id", booking.ID, "error", err)
		return nil, apperrors.Internal("Failed to create payment", err)
	}

	s.metrics.ObservePaymentTransition(string(model.PaymentPending))
	s.notifier.Notify(ctx, notify.PaymentEvent(notify.PaymentCreated, payment))
	s.cfg.Log.Info("Payment created successfully",
		"id", payment.ID,
		"booking_id", payment.BookingID,
		"amount", payment.Amount.StringFixed(2),
		"currency", payment.Currency,
		"type", payment.Type,
	)
	return payment, nil
}

func (s *paymentService) Reject(ctx context.Context, id string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Only admins can reject payments")
	}
	return s.decide(ctx, id, actor, input, model.PaymentRejected, notify.PaymentRejected)
}

// Cancel withdraws a payment that has not been settled yet. The payer may
// withdraw their own.
func (s *paymentService) Cancel(ctx context.Context, id string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error) {
	if !actor.IsAdmin() {
		payment, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if payment.UserID != actor.ID {
			return nil, apperrors.Forbidden("Only the payer or an admin can cancel a payment")
		}
	}
	return s.decide(ctx, id, actor, input, model.PaymentCancelled, notify.PaymentCancelled)
}

// decide moves a pending payment to a final status, recording the reason in
// the admin notes.
func (s *paymentService) decide(
	ctx context.Context,
	id string,
	actor model.Actor,
	input *model.PaymentDecisionInput,
	next model.PaymentStatus,
	event string,
) (*model.Payment, error) {
	if input == nil {
		input = &model.PaymentDecisionInput{}
	}
	input.Notes = sanitizer.TrimAndNormalize(input.Notes)
	if err := s.validator.ValidateDecision(input); err != nil {
		return nil, validation.ToAppError(err)
	}

	payment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentPending {
		return nil, apperrors.InvalidTransition("Payment", string(payment.Status), string(next))
	}

	updated, err := s.repo.Transition(ctx, id, repository.StatusChange{
		From:       model.PaymentPending,
		To:         next,
		AdminNotes: input.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, paymentserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Payment", id)
		case errors.Is(err, paymentserrors.ErrStatusConflict):
			return nil, apperrors.InvalidTransition("Payment", "unknown", string(next))
		}
		return nil, apperrors.Internal("Failed to update payment", err)
	}

	s.metrics.ObservePaymentTransition(string(next))
	s.notifier.Notify(ctx, notify.PaymentEvent(event, updated))
	s.cfg.Log.Info("Payment status updated",
		"id", id,
		"to", next,
		"actor_id", actor.ID,
	)
	return updated, nil
}

func (s *paymentService) GetByID(ctx context.Context, id string, actor model.Actor) (*model.Payment, error) {
	payment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && payment.UserID != actor.ID && payment.ProviderID != actor.ID {
		return nil, apperrors.Forbidden("Payments are visible to their parties only")
	}
	return payment, nil
}

func (s *paymentService) ListPending(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Payment, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Only admins can review pending payments")
	}
	return s.list(ctx, limit, offset,
		s.repo.CountPending,
		func(ctx context.Context, limit int, offset int64) ([]*model.Payment, error) {
			return s.repo.FindPending(ctx, limit, offset)
		},
	)
}

func (s *paymentService) ListForUser(ctx context.Context, actor model.Actor, userID string, limit int, offset int64) ([]*model.Payment, int64, error) {
	if userID == "" {
		userID = actor.ID
	}
	if userID != actor.ID && !actor.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Cannot list another user's payments")
	}
	return s.list(ctx, limit, offset,
		func(ctx context.Context) (int64, error) {
			return s.repo.CountForUser(ctx, userID)
		},
		func(ctx context.Context, limit int, offset int64) ([]*model.Payment, error) {
			return s.repo.FindForUser(ctx, userID, limit, offset)
		},
	)
}

// list runs the count and page queries concurrently.
func (s *paymentService) list(
	ctx context.Context,
	limit int,
	offset int64,
	count func(ctx context.Context) (int64, error),
	find func(ctx context.Context, limit int, offset int64) ([]*model.Payment, error),
) ([]*model.Payment, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var total int64
	var payments []*model.Payment
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if total, err = count(gctx); err != nil {
			s.cfg.Log.Error("Failed to count payments", "error", err)
			return apperrors.Internal("Failed to count payments", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if payments, err = find(gctx, limit, offset); err != nil {
			s.cfg.Log.Error("Failed to list payments", "limit", limit, "offset", offset, "error", err)
			return apperrors.Internal("Failed to retrieve payments", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (s *paymentService) Stats(ctx context.Context, actor model.Actor) (*model.PaymentStats, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Only admins can view payment statistics")
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to compute payment stats", "error", err)
		return nil, apperrors.Internal("Failed to compute payment statistics", err)
	}
	return stats, nil
}

func (s *paymentService) load(ctx context.Context, id string) (*model.Payment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Payment ID cannot be empty")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, paymentserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Payment", id)
		}
		return nil, apperrors.Internal("Failed to retrieve payment", err)
	}
	return payment, nil
}

func (s *paymentService) applyDefaults(input *model.CreatePaymentInput) {
	if input.Type == "" {
		input.Type = model.PaymentDeposit
	}
	if input.Method == "" {
		input.Method = model.MethodMobileMoney
	}
}

func (s *paymentService) sanitize(input *model.CreatePaymentInput) {
	input.BookingID = sanitizer.NormalizeID(input.BookingID)
	input.UserID = sanitizer.NormalizeID(input.UserID)
	input.ProviderID = sanitizer.NormalizeID(input.ProviderID)
	input.Currency = sanitizer.NormalizeCurrency(input.Currency)
	input.Provider = sanitizer.TrimAndNormalize(input.Provider)
	input.ProviderRef = sanitizer.NormalizeReference(input.ProviderRef)
}
