package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for reference-data caches.
type Metrics struct {
	// Refresh attempts by cache and result ("success", "failure", "skipped")
	Refreshes *prometheus.CounterVec

	// Gets answered from a stale snapshot after a failed refresh
	StaleServed *prometheus.CounterVec

	// Gets answered from a fresh snapshot without I/O
	Hits *prometheus.CounterVec

	// Unix time of the last successful refresh
	LastSuccess *prometheus.GaugeVec

	// Number of entries in the current snapshot
	Entries *prometheus.GaugeVec

	RefreshLatency *prometheus.HistogramVec
}

// New creates reference cache metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nagoya_reference_refreshes_total",
			Help: "Reference data refresh attempts by result",
		}, []string{"cache", "result"}),
		StaleServed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nagoya_reference_stale_served_total",
			Help: "Reads served from a stale snapshot because the refresh failed",
		}, []string{"cache"}),
		Hits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nagoya_reference_fresh_hits_total",
			Help: "Reads served from a fresh snapshot",
		}, []string{"cache"}),
		LastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nagoya_reference_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		}, []string{"cache"}),
		Entries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nagoya_reference_entries",
			Help: "Number of entries in the current snapshot, when countable",
		}, []string{"cache"}),
		RefreshLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nagoya_reference_refresh_duration_seconds",
			Help:    "Duration of reference data fetches",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"cache"}),
	}
}

func (m *Metrics) IncrementRefresh(cache, result string) {
	if m != nil {
		m.Refreshes.WithLabelValues(cache, result).Inc()
	}
}

func (m *Metrics) IncrementStaleServed(cache string) {
	if m != nil {
		m.StaleServed.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) IncrementHit(cache string) {
	if m != nil {
		m.Hits.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) SetLastSuccess(cache string, t time.Time) {
	if m != nil {
		m.LastSuccess.WithLabelValues(cache).Set(float64(t.Unix()))
	}
}

func (m *Metrics) SetEntries(cache string, n int) {
	if m != nil {
		m.Entries.WithLabelValues(cache).Set(float64(n))
	}
}

func (m *Metrics) ObserveRefreshLatency(cache string, d time.Duration) {
	if m != nil {
		m.RefreshLatency.WithLabelValues(cache).Observe(d.Seconds())
	}
}
