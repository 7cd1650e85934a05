// Package api wires the ledgers onto one set of stores and exposes their
// HTTP handlers.
package api

import (
	availabilityhandler "tutorhub/internal/availability/handler"
	availability "tutorhub/internal/availability/service"
	bookingshandler "tutorhub/internal/bookings/handler"
	bookings "tutorhub/internal/bookings/service"
	bookingsvalidator "tutorhub/internal/bookings/validator"
	"tutorhub/internal/identity"
	paymentshandler "tutorhub/internal/payments/handler"
	payments "tutorhub/internal/payments/service"
	paymentsvalidator "tutorhub/internal/payments/validator"
	"tutorhub/internal/settlement"
	"tutorhub/internal/storage"
	"tutorhub/pkg/config"
	"tutorhub/pkg/contracts"
	"tutorhub/pkg/metrics"
	"tutorhub/pkg/notify"

	"github.com/go-playground/validator/v10"
)

type Services struct {
	Availability availability.AvailabilityService
	Bookings     bookings.BookingService
	Payments     payments.PaymentService
	Settlement   settlement.Coordinator
}

func NewServices(
	cfg *config.Config,
	stores *storage.Stores,
	validate *validator.Validate,
	notifier *notify.Notifier,
	m *metrics.Metrics,
) *Services {
	availabilityService := availability.NewAvailabilityService(stores.Windows, stores.Directory, stores.Locker, validate, cfg)

	bookingService := bookings.NewBookingService(bookings.Deps{
		Repo:         stores.Bookings,
		Availability: availabilityService,
		Directory:    stores.Directory,
		Rates:        identity.NewRateSource(stores.Directory, cfg.DefaultCurrency),
		Locker:       stores.Locker,
		Tx:           stores.Tx,
		Validator:    bookingsvalidator.NewBookingValidator(validate, cfg.Log),
		Notifier:     notifier,
		Metrics:      m,
	}, cfg)

	paymentService := payments.NewPaymentService(
		stores.Payments,
		stores.Bookings,
		paymentsvalidator.NewPaymentValidator(validate, cfg.Log),
		notifier,
		m,
		cfg,
	)

	coordinator := settlement.NewCoordinator(stores.Payments, stores.Bookings, stores.Tx, notifier, m, cfg)

	cfg.Log.Info("Services initialized", "store_backend", cfg.StoreBackend, "slot_lock_backend", cfg.SlotLockBackend)
	return &Services{
		Availability: availabilityService,
		Bookings:     bookingService,
		Payments:     paymentService,
		Settlement:   coordinator,
	}
}

func (s *Services) Handlers(cfg *config.Config) []contracts.Handler {
	return []contracts.Handler{
		availabilityhandler.NewAvailabilityHandler(s.Availability, cfg.Log),
		bookingshandler.NewBookingHandler(s.Bookings, cfg.Log),
		paymentshandler.NewPaymentHandler(s.Payments, s.Settlement, cfg.Log),
	}
}
