// Package identity reads user accounts: who a caller is, their role, and a
// provider's hourly rate. Accounts are written by the profile service.
package identity

import (
	"context"
	"errors"
	"fmt"

	"tutorhub/pkg/model"
	"tutorhub/pkg/pricing"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrNotProvider  = errors.New("user is not a provider")
	ErrRateNotSet   = errors.New("provider has no hourly rate")
)

type Directory interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

type directoryRates struct {
	dir             Directory
	defaultCurrency string
}

// NewRateSource reads provider rates from the directory. Providers without
// their own currency are billed in defaultCurrency.
func NewRateSource(dir Directory, defaultCurrency string) pricing.RateSource {
	return &directoryRates{dir: dir, defaultCurrency: defaultCurrency}
}

func (r *directoryRates) RateFor(ctx context.Context, providerID string) (pricing.Rate, error) {
	user, err := r.dir.GetUser(ctx, providerID)
	if err != nil {
		return pricing.Rate{}, err
	}
	if user.Role != model.RoleProvider {
		return pricing.Rate{}, fmt.Errorf("%w: %s", ErrNotProvider, providerID)
	}
	if !user.HourlyRate.IsPositive() {
		return pricing.Rate{}, fmt.Errorf("%w: %s", ErrRateNotSet, providerID)
	}

	currency := user.Currency
	if currency == "" {
		currency = r.defaultCurrency
	}
	return pricing.Rate{Hourly: user.HourlyRate, Currency: currency}, nil
}
