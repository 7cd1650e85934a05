package validator

import (
	"time"

	"tutorhub/pkg/logger"
	"tutorhub/pkg/model"
	"tutorhub/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

func NewBookingValidator(validate *validator.Validate, log *logger.Logger) *BookingValidator {
	return &BookingValidator{
		validate: validate,
		logger:   log,
		now:      time.Now,
	}
}

// ValidateCreate checks the struct tags, then that the session lies in the
// future.
func (v *BookingValidator) ValidateCreate(input *model.CreateBookingInput) error {
	if err := validation.Struct(v.validate, input); err != nil {
		return err
	}

	if !input.Start.After(v.now()) {
		return validation.Field("start", "start cannot be in the past")
	}

	return nil
}

func (v *BookingValidator) ValidateCancel(input *model.CancelBookingInput) error {
	return validation.Struct(v.validate, input)
}
