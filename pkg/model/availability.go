package model

import "time"

type WindowStatus string

const (
	WindowOpen    WindowStatus = "open"
	WindowClaimed WindowStatus = "claimed"
)

// AvailabilityWindow is a provider-published interval a booking may claim.
type AvailabilityWindow struct {
	ID         string       `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	ProviderID string       `json:"provider_id" bson:"provider_id" gorm:"type:varchar(64);not null;index:idx_windows_provider_start,priority:1"`
	Start      time.Time    `json:"start" bson:"start" gorm:"column:start_at;not null;index:idx_windows_provider_start,priority:2"`
	End        time.Time    `json:"end" bson:"end" gorm:"column:end_at;not null"`
	Status     WindowStatus `json:"status" bson:"status" gorm:"type:varchar(16);not null;index"`
	BookingID  string       `json:"booking_id,omitempty" bson:"booking_id,omitempty" gorm:"type:varchar(36)"`
	CreatedAt  time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" bson:"updated_at"`
}

func (AvailabilityWindow) TableName() string {
	return "availability_windows"
}

// Covers reports whether [start, end) lies entirely inside the window.
func (w *AvailabilityWindow) Covers(start, end time.Time) bool {
	return !start.Before(w.Start) && !end.After(w.End)
}

type CreateWindowInput struct {
	ProviderID string    `json:"provider_id" validate:"required,max=64"`
	Start      time.Time `json:"start" validate:"required"`
	End        time.Time `json:"end" validate:"required,gtfield=Start"`
}
