package model

import "github.com/shopspring/decimal"

type Role string

const (
	RoleStudent  Role = "student"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

type ProviderType string

const (
	ProviderTutor  ProviderType = "tutor"
	ProviderCoach  ProviderType = "coach"
	ProviderMentor ProviderType = "mentor"
)

// User is the slice of an account this service reads: identity, role and,
// for providers, the hourly rate used for pricing.
type User struct {
	ID           string          `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(64)"`
	Role         Role            `json:"role" bson:"role" gorm:"type:varchar(16);not null;index"`
	ProviderType ProviderType    `json:"provider_type,omitempty" bson:"provider_type,omitempty" gorm:"type:varchar(16)"`
	HourlyRate   decimal.Decimal `json:"hourly_rate" bson:"hourly_rate" gorm:"type:decimal(12,2);not null;default:0"`
	Currency     string          `json:"currency,omitempty" bson:"currency,omitempty" gorm:"type:varchar(3)"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
