// Package settlement confirms payments. Confirming a deposit also confirms
// the booking it pays for, and both writes commit in one transaction.
package settlement

import (
	"context"
	"errors"
	"time"

	bookingserrors "tutorhub/internal/bookings/errors"
	bookingsrepo "tutorhub/internal/bookings/repository"
	paymentserrors "tutorhub/internal/payments/errors"
	paymentsrepo "tutorhub/internal/payments/repository"
	"tutorhub/pkg/config"
	"tutorhub/pkg/db"
	apperrors "tutorhub/pkg/errors"
	"tutorhub/pkg/metrics"
	"tutorhub/pkg/model"
	"tutorhub/pkg/notify"
	"tutorhub/pkg/sanitizer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("tutorhub/internal/settlement")

type Coordinator interface {
	ConfirmPayment(ctx context.Context, paymentID string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error)
}

type coordinator struct {
	payments paymentsrepo.PaymentRepository
	bookings bookingsrepo.BookingRepository
	tx       db.TransactionManager
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	cfg      *config.Config
	now      func() time.Time
}

func NewCoordinator(
	payments paymentsrepo.PaymentRepository,
	bookings bookingsrepo.BookingRepository,
	tx db.TransactionManager,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	cfg *config.Config,
) Coordinator {
	return &coordinator{
		payments: payments,
		bookings: bookings,
		tx:       tx,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (c *coordinator) ConfirmPayment(ctx context.Context, paymentID string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error) {
	ctx, span := tracer.Start(ctx, "settlement.ConfirmPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", paymentID))

	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Only admins can confirm payments")
	}
	if paymentID == "" {
		return nil, apperrors.InvalidInput("Payment ID cannot be empty")
	}
	notes := ""
	if input != nil {
		notes = sanitizer.TrimAndNormalize(input.Notes)
	}

	started := c.now()
	txCtx, cancel := context.WithTimeout(ctx, c.cfg.SettlementTimeout)
	defer cancel()

	var payment *model.Payment
	var booking *model.Booking
	err := c.tx.ExecuteTransaction(txCtx, func(txCtx context.Context) error {
		var err error
		payment, err = c.confirmPayment(txCtx, paymentID, actor.ID, notes)
		if err != nil {
			return err
		}
		booking, err = c.confirmBooking(txCtx, payment)
		return err
	})
	elapsed := c.now().Sub(started)

	if err != nil {
		err = c.mapError(txCtx, paymentID, err)
		c.metrics.ObserveSettlement(outcome(err), elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		if apperrors.AsAppError(err).StatusCode() < 500 {
			c.cfg.Log.Warn("Settlement rejected", "payment_id", paymentID, "error", err)
		} else {
			c.cfg.Log.Error("Settlement failed", "payment_id", paymentID, "elapsed", elapsed, "error", err)
		}
		return nil, err
	}

	c.metrics.ObserveSettlement(metrics.SettlementCommitted, elapsed)
	c.metrics.ObservePaymentTransition(string(model.PaymentConfirmed))
	c.notifier.Notify(ctx, notify.PaymentEvent(notify.PaymentConfirmed, payment))
	if booking != nil {
		c.metrics.ObserveBookingTransition(string(model.BookingConfirmed))
		c.notifier.Notify(ctx, notify.BookingEvent(notify.BookingConfirmed, booking))
	}

	c.cfg.Log.Info("Payment settled",
		"payment_id", payment.ID,
		"booking_id", payment.BookingID,
		"booking_confirmed", booking != nil,
		"admin_id", actor.ID,
		"elapsed", elapsed,
	)
	return payment, nil
}

func (c *coordinator) confirmPayment(ctx context.Context, id, adminID, notes string) (*model.Payment, error) {
	current, err := c.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != model.PaymentPending {
		return nil, apperrors.InvalidTransition("Payment", string(current.Status), string(model.PaymentConfirmed))
	}
	return c.payments.MarkConfirmed(ctx, id, adminID, notes, c.now().UTC())
}

// confirmBooking moves the paid booking out of pending. It returns nil when
// the payment does not drive a booking.
func (c *coordinator) confirmBooking(ctx context.Context, payment *model.Payment) (*model.Booking, error) {
	if payment.BookingID == "" || payment.Type != model.PaymentDeposit {
		return nil, nil
	}

	booking, err := c.bookings.FindByID(ctx, payment.BookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			c.cfg.Log.Warn("Settled payment references a missing booking",
				"payment_id", payment.ID,
				"booking_id", payment.BookingID,
			)
			return nil, nil
		}
		return nil, err
	}
	if booking.Status != model.BookingPending {
		return nil, apperrors.InvalidBookingState(booking.ID, string(booking.Status))
	}

	updated, err := c.bookings.Transition(ctx, booking.ID, bookingsrepo.StatusChange{
		From: []model.BookingStatus{model.BookingPending},
		To:   model.BookingConfirmed,
	})
	if errors.Is(err, bookingserrors.ErrStatusConflict) {
		return nil, apperrors.InvalidBookingState(booking.ID, "unknown")
	}
	return updated, err
}

func (c *coordinator) mapError(ctx context.Context, paymentID string, err error) error {
	if errors.Is(err, db.ErrTxTimeout) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.SettlementTimeout(paymentID, err)
	}
	if apperrors.IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, paymentserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Payment", paymentID)
	case errors.Is(err, paymentserrors.ErrStatusConflict):
		return apperrors.InvalidTransition("Payment", "unknown", string(model.PaymentConfirmed))
	}
	return apperrors.Internal("Failed to settle payment", err)
}

func outcome(err error) string {
	switch {
	case apperrors.HasCode(err, apperrors.CodeSettlementTimeout):
		return metrics.SettlementTimeout
	case apperrors.AsAppError(err).StatusCode() < 500:
		return metrics.SettlementRejected
	default:
		return metrics.SettlementFailed
	}
}
