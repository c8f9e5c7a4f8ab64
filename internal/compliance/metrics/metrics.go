package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance checker.
type Metrics struct {
	// Check outcomes by input mode ("country_code", "coordinates") and result
	CheckOutcome *prometheus.CounterVec

	// Reverse-geocode latency by result
	GeocodeLatency *prometheus.HistogramVec
}

// New creates the compliance metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CheckOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nagoya_compliance_checks_total",
			Help: "Total compliance checks by input mode and result",
		}, []string{"mode", "result"}), // result: "implementing", "not_implementing", "error"

		GeocodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nagoya_compliance_geocode_duration_seconds",
			Help:    "Duration of reverse-geocode lookups",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
	}
}

// IncrementOutcome records a check outcome.
func (m *Metrics) IncrementOutcome(mode, result string) {
	if m != nil {
		m.CheckOutcome.WithLabelValues(mode, result).Inc()
	}
}

// ObserveGeocodeLatency records how long a reverse-geocode call took.
func (m *Metrics) ObserveGeocodeLatency(result string, d time.Duration) {
	if m != nil {
		m.GeocodeLatency.WithLabelValues(result).Observe(d.Seconds())
	}
}
