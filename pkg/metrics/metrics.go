package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters and histograms exported on /metrics. All
// Observe methods are safe on a nil receiver so callers may run unmetered.
type Metrics struct {
	slotLocks          *prometheus.CounterVec
	bookingTransitions *prometheus.CounterVec
	paymentTransitions *prometheus.CounterVec
	settlements        *prometheus.CounterVec
	settlementLatency  prometheus.Histogram
	notifications      *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
	publishLatency     *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Metrics
)

// Default returns the process-wide metrics registered with the default
// Prometheus registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultRegistry = New(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		slotLocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorhub_slot_lock_attempts_total",
			Help: "Slot lock acquisition attempts by result (acquired, busy, error).",
		}, []string{"result"}),
		bookingTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorhub_booking_transitions_total",
			Help: "Booking status changes by target status.",
		}, []string{"status"}),
		paymentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorhub_payment_transitions_total",
			Help: "Payment status changes by target status.",
		}, []string{"status"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorhub_settlements_total",
			Help: "Payment settlements by outcome (committed, rejected, timeout, failed).",
		}, []string{"outcome"}),
		settlementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tutorhub_settlement_duration_seconds",
			Help:    "Wall time of the settlement transaction.",
			Buckets: prometheus.DefBuckets,
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorhub_notifications_total",
			Help: "Notification dispatches by event type and result.",
		}, []string{"event", "result"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorhub_kafka_messages_total",
			Help: "Kafka messages produced by topic and result.",
		}, []string{"topic", "result"}),
		publishLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutorhub_kafka_publish_duration_seconds",
			Help:    "Kafka publish latency by topic.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorhub_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.slotLocks,
			m.bookingTransitions,
			m.paymentTransitions,
			m.settlements,
			m.settlementLatency,
			m.notifications,
			m.eventsPublished,
			m.publishLatency,
			m.httpRequests,
		)
	}
	return m
}

const (
	LockAcquired = "acquired"
	LockBusy     = "busy"
	LockError    = "error"

	SettlementCommitted = "committed"
	SettlementRejected  = "rejected"
	SettlementTimeout   = "timeout"
	SettlementFailed    = "failed"
)

func (m *Metrics) ObserveSlotLock(result string) {
	if m == nil {
		return
	}
	m.slotLocks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveBookingTransition(status string) {
	if m == nil {
		return
	}
	m.bookingTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePaymentTransition(status string) {
	if m == nil {
		return
	}
	m.paymentTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSettlement(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
	m.settlementLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveNotification(event string, err error) {
	if m == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	m.notifications.WithLabelValues(event, result(err)).Inc()
}

func (m *Metrics) ObservePublish(topic string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(topic, result(err)).Inc()
	m.publishLatency.WithLabelValues(topic).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveHTTPRequest(method string, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, code).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
