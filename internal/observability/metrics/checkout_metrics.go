package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CheckoutOutcomeCommitted     = "committed"
	CheckoutOutcomeReplayed      = "replayed"
	CheckoutOutcomeSelection     = "selection_error"
	CheckoutOutcomeConfiguration = "configuration_error"
	CheckoutOutcomeConflict      = "conflict"
	CheckoutOutcomeFailed        = "failed"
)

// CheckoutMetrics captures order snapshot health: outcomes, latency and
// how often the committed rate differed from the one the shopper was quoted.
type CheckoutMetrics struct {
	outcomes    *prometheus.CounterVec
	duration    prometheus.Histogram
	rateDrift   prometheus.Counter
	rateUpdates *prometheus.CounterVec
}

func NewCheckoutMetrics(registerer prometheus.Registerer, cfg Config) (*CheckoutMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "karat"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	outcomes, err := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "karat_checkout_total",
		Help:        "Checkout attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "karat_checkout_duration_seconds",
		Help:        "Time spent inside the checkout snapshot transaction.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}))
	if err != nil {
		return nil, err
	}
	rateDrift, err := register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "karat_checkout_rate_drift_total",
		Help:        "Orders committed at a different gold rate than the one quoted to the shopper.",
		ConstLabels: constLabels,
	}))
	if err != nil {
		return nil, err
	}
	rateUpdates, err := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "karat_rate_update_attempts_total",
		Help:        "Gold rate update transactions by result.",
		ConstLabels: constLabels,
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	return &CheckoutMetrics{
		outcomes:    outcomes,
		duration:    duration,
		rateDrift:   rateDrift,
		rateUpdates: rateUpdates,
	}, nil
}

// register returns the already registered collector when another instance got there first.
func register[T prometheus.Collector](registerer prometheus.Registerer, c T) (T, error) {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *CheckoutMetrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(strings.TrimSpace(outcome)).Inc()
}

func (m *CheckoutMetrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *CheckoutMetrics) IncRateDrift() {
	if m == nil {
		return
	}
	m.rateDrift.Inc()
}

func (m *CheckoutMetrics) IncRateUpdate(result string) {
	if m == nil {
		return
	}
	m.rateUpdates.WithLabelValues(strings.TrimSpace(result)).Inc()
}
