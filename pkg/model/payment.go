package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentCancelled PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentConfirmed, PaymentRejected, PaymentCancelled},
	PaymentConfirmed: {PaymentCancelled},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return slices.Contains(paymentTransitions[s], next)
}

type PaymentType string

const (
	PaymentDeposit PaymentType = "deposit"
	PaymentPayout  PaymentType = "payout"
	PaymentRefund  PaymentType = "refund"
)

type PaymentMethod string

const (
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
	MethodCheck        PaymentMethod = "check"
)

type Payment struct {
	ID          string          `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	BookingID   string          `json:"booking_id,omitempty" bson:"booking_id,omitempty" gorm:"type:varchar(36);index"`
	UserID      string          `json:"user_id" bson:"user_id" gorm:"type:varchar(64);not null;index"`
	ProviderID  string          `json:"provider_id,omitempty" bson:"provider_id,omitempty" gorm:"type:varchar(64);index"`
	Amount      decimal.Decimal `json:"amount" bson:"amount" gorm:"type:decimal(12,2);not null"`
	Currency    string          `json:"currency" bson:"currency" gorm:"type:varchar(3);not null"`
	Type        PaymentType     `json:"type" bson:"type" gorm:"type:varchar(16);not null"`
	Method      PaymentMethod   `json:"method" bson:"method" gorm:"type:varchar(16);not null"`
	Provider    string          `json:"provider,omitempty" bson:"provider,omitempty" gorm:"type:varchar(32)"`
	ProviderRef string          `json:"provider_ref,omitempty" bson:"provider_ref,omitempty" gorm:"type:varchar(128)"`
	Status      PaymentStatus   `json:"status" bson:"status" gorm:"type:varchar(16);not null;index"`
	ConfirmedBy string          `json:"confirmed_by,omitempty" bson:"confirmed_by,omitempty" gorm:"type:varchar(64)"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	AdminNotes  string          `json:"admin_notes,omitempty" bson:"admin_notes,omitempty" gorm:"type:text"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at" gorm:"index"`
	UpdatedAt   time.Time       `json:"updated_at" bson:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

type CreatePaymentInput struct {
	BookingID   string          `json:"booking_id" validate:"required,max=36"`
	UserID      string          `json:"user_id" validate:"required,max=64"`
	ProviderID  string          `json:"provider_id,omitempty" validate:"max=64"`
	Amount      decimal.Decimal `json:"amount" validate:"positive_amount"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	Type        PaymentType     `json:"type,omitempty" validate:"omitempty,oneof=deposit payout refund"`
	Method      PaymentMethod   `json:"method,omitempty" validate:"omitempty,oneof=mobile_money bank_transfer cash check"`
	Provider    string          `json:"provider,omitempty" validate:"max=32"`
	ProviderRef string          `json:"provider_ref,omitempty" validate:"max=128"`
}

type PaymentDecisionInput struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type PaymentStats struct {
	Total          int64                   `json:"total"`
	ByStatus       map[PaymentStatus]int64 `json:"by_status"`
	ConfirmedTotal decimal.Decimal         `json:"confirmed_total"`
}
