package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCanceled   BookingStatus = "canceled"
	BookingNoShow     BookingStatus = "no_show"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:    {BookingConfirmed, BookingCanceled},
	BookingConfirmed:  {BookingInProgress, BookingCompleted, BookingCanceled, BookingNoShow},
	BookingInProgress: {BookingCompleted, BookingNoShow},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return slices.Contains(bookingTransitions[s], next)
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// BookingSourcesFor lists the statuses from which next is reachable.
func BookingSourcesFor(next BookingStatus) []BookingStatus {
	var from []BookingStatus
	for s, targets := range bookingTransitions {
		if slices.Contains(targets, next) {
			from = append(from, s)
		}
	}
	slices.Sort(from)
	return from
}

// ActiveBookingStatuses hold their slot; at most one booking per provider
// and start may be in one of them.
var ActiveBookingStatuses = []BookingStatus{
	BookingPending,
	BookingConfirmed,
	BookingInProgress,
	BookingCompleted,
	BookingNoShow,
}

type SessionMode string

const (
	ModeOnline   SessionMode = "online"
	ModeInPerson SessionMode = "in_person"
	ModeHybrid   SessionMode = "hybrid"
)

type Booking struct {
	ID           string          `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	StudentID    string          `json:"student_id" bson:"student_id" gorm:"type:varchar(64);not null;index"`
	ProviderID   string          `json:"provider_id" bson:"provider_id" gorm:"type:varchar(64);not null;index"`
	ProviderType ProviderType    `json:"provider_type,omitempty" bson:"provider_type,omitempty" gorm:"type:varchar(16)"`
	Mode         SessionMode     `json:"mode" bson:"mode" gorm:"type:varchar(16);not null"`
	WindowID     string          `json:"window_id" bson:"window_id" gorm:"type:varchar(36);index"`
	Start        time.Time       `json:"start" bson:"start" gorm:"column:start_at;not null;index"`
	End          time.Time       `json:"end" bson:"end" gorm:"column:end_at;not null"`
	Status       BookingStatus   `json:"status" bson:"status" gorm:"type:varchar(16);not null;index"`
	Price        decimal.Decimal `json:"price" bson:"price" gorm:"type:decimal(12,2);not null"`
	Currency     string          `json:"currency" bson:"currency" gorm:"type:varchar(3);not null"`
	Notes        string          `json:"notes,omitempty" bson:"notes,omitempty" gorm:"type:text"`
	CancelReason string          `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty" gorm:"type:text"`
	CanceledBy   string          `json:"canceled_by,omitempty" bson:"canceled_by,omitempty" gorm:"type:varchar(64)"`
	CanceledAt   *time.Time      `json:"canceled_at,omitempty" bson:"canceled_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" bson:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// IsParticipant reports whether userID is the booking's student or provider.
func (b *Booking) IsParticipant(userID string) bool {
	return userID != "" && (b.StudentID == userID || b.ProviderID == userID)
}

type CreateBookingInput struct {
	StudentID  string      `json:"student_id" validate:"required,max=64"`
	ProviderID string      `json:"provider_id" validate:"required,max=64,nefield=StudentID"`
	Start      time.Time   `json:"start" validate:"required"`
	End        time.Time   `json:"end" validate:"required,gtfield=Start"`
	Mode       SessionMode `json:"mode" validate:"omitempty,oneof=online in_person hybrid"`
	Notes      string      `json:"notes,omitempty" validate:"max=1000"`
}

type CancelBookingInput struct {
	Reason string `json:"reason" validate:"max=500"`
}
