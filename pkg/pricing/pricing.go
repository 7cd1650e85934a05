// Package pricing computes booking prices from duration and hourly rate.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of decimals prices are rounded to.
const MinorUnits = 2

var millisPerHour = decimal.NewFromInt(int64(time.Hour / time.Millisecond))

// Rate is a provider's hourly price.
type Rate struct {
	Hourly   decimal.Decimal
	Currency string
}

// RateSource resolves the hourly rate of a provider.
type RateSource interface {
	RateFor(ctx context.Context, providerID string) (Rate, error)
}

// Price returns hours(end-start) * hourly, rounded half away from zero to
// two decimals. The product is formed before dividing.
func Price(start, end time.Time, hourly decimal.Decimal) decimal.Decimal {
	millis := decimal.NewFromInt(end.Sub(start).Milliseconds())
	return hourly.Mul(millis).DivRound(millisPerHour, MinorUnits)
}
