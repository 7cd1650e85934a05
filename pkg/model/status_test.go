package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatus_Transitions(t *testing.T) {
	tests := []struct {
		from BookingStatus
		to   BookingStatus
		ok   bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCanceled, true},
		{BookingPending, BookingInProgress, false},
		{BookingPending, BookingNoShow, false},
		{BookingConfirmed, BookingInProgress, true},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingCanceled, true},
		{BookingConfirmed, BookingNoShow, true},
		{BookingInProgress, BookingCompleted, true},
		{BookingInProgress, BookingNoShow, true},
		{BookingInProgress, BookingCanceled, false},
		{BookingCompleted, BookingCanceled, false},
		{BookingCanceled, BookingPending, false},
		{BookingNoShow, BookingCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestBookingStatus_Terminal(t *testing.T) {
	assert.True(t, BookingCompleted.IsTerminal())
	assert.True(t, BookingCanceled.IsTerminal())
	assert.True(t, BookingNoShow.IsTerminal())
	assert.False(t, BookingPending.IsTerminal())
	assert.False(t, BookingInProgress.IsTerminal())
}

func TestBookingSourcesFor(t *testing.T) {
	assert.Equal(t, []BookingStatus{BookingConfirmed, BookingPending}, BookingSourcesFor(BookingCanceled))
	assert.Equal(t, []BookingStatus{BookingConfirmed, BookingInProgress}, BookingSourcesFor(BookingNoShow))
	assert.Empty(t, BookingSourcesFor(BookingPending))
}

func TestPaymentStatus_Transitions(t *testing.T) {
	assert.True(t, PaymentPending.CanTransitionTo(PaymentConfirmed))
	assert.True(t, PaymentPending.CanTransitionTo(PaymentRejected))
	assert.True(t, PaymentPending.CanTransitionTo(PaymentCancelled))
	assert.True(t, PaymentConfirmed.CanTransitionTo(PaymentCancelled))
	assert.False(t, PaymentConfirmed.CanTransitionTo(PaymentConfirmed))
	assert.False(t, PaymentRejected.CanTransitionTo(PaymentConfirmed))
	assert.False(t, PaymentCancelled.CanTransitionTo(PaymentPending))
}

func TestAvailabilityWindow_Covers(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	w := &AvailabilityWindow{Start: base, End: base.Add(3 * time.Hour)}

	assert.True(t, w.Covers(base, base.Add(90*time.Minute)))
	assert.True(t, w.Covers(base.Add(time.Hour), base.Add(3*time.Hour)))
	assert.False(t, w.Covers(base.Add(-time.Minute), base.Add(time.Hour)))
	assert.False(t, w.Covers(base.Add(2*time.Hour), base.Add(4*time.Hour)))
}

func TestSlotLock_IsExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&SlotLock{ExpiresAt: now.Add(time.Second)}).IsExpired(now))
	assert.True(t, (&SlotLock{ExpiresAt: now}).IsExpired(now))
}
