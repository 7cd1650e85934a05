package validator

import (
	"tutorhub/pkg/logger"
	"tutorhub/pkg/model"
	"tutorhub/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// maxAmount bounds a single payment; larger values do not fit decimal(12,2).
var maxAmount = decimal.RequireFromString("9999999999.99")

type PaymentValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewPaymentValidator(validate *validator.Validate, log *logger.Logger) *PaymentValidator {
	return &PaymentValidator{
		validate: validate,
		logger:   log,
	}
}

func (v *PaymentValidator) ValidateCreate(input *model.CreatePaymentInput) error {
	if err := validation.Struct(v.validate, input); err != nil {
		return err
	}

	if input.Amount.GreaterThan(maxAmount) {
		return validation.Field("amount", "amount is too large")
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return validation.Field("amount", "amount must have at most 2 decimal places")
	}

	return nil
}

func (v *PaymentValidator) ValidateDecision(input *model.PaymentDecisionInput) error {
	return validation.Struct(v.validate, input)
}
