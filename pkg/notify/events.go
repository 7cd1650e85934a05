package notify

import (
	"time"

	"tutorhub/pkg/model"

	"github.com/google/uuid"
)

const (
	BookingCreated   = "booking.created"
	BookingConfirmed = "booking.confirmed"
	BookingStarted   = "booking.started"
	BookingCompleted = "booking.completed"
	BookingCanceled  = "booking.canceled"
	BookingNoShow    = "booking.no_show"

	PaymentCreated   = "payment.created"
	PaymentConfirmed = "payment.confirmed"
	PaymentRejected  = "payment.rejected"
	PaymentCancelled = "payment.cancelled"
)

type Event struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Key           string         `json:"key"`
	Recipients    []string       `json:"recipients"`
	Data          map[string]any `json:"data,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

func BookingEvent(eventType string, b *model.Booking) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        b.ID,
		Recipients: []string{b.StudentID, b.ProviderID},
		Data: map[string]any{
			"booking_id":  b.ID,
			"status":      b.Status,
			"start":       b.Start,
			"end":         b.End,
			"price":       b.Price.StringFixed(2),
			"currency":    b.Currency,
			"provider_id": b.ProviderID,
			"student_id":  b.StudentID,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func PaymentEvent(eventType string, p *model.Payment) Event {
	recipients := []string{p.UserID}
	if p.ProviderID != "" {
		recipients = append(recipients, p.ProviderID)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        p.ID,
		Recipients: recipients,
		Data: map[string]any{
			"payment_id": p.ID,
			"booking_id": p.BookingID,
			"status":     p.Status,
			"type":       p.Type,
			"amount":     p.Amount.StringFixed(2),
			"currency":   p.Currency,
		},
		OccurredAt: time.Now().UTC(),
	}
}
