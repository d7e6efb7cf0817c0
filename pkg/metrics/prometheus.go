package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchedTotal  *prometheus.CounterVec
	rejectedTotal *prometheus.CounterVec
	mergedTotal   *prometheus.CounterVec
	alertsFired   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandipulse_records_fetched_total",
				Help: "Raw records fetched per source",
			},
			[]string{"source"},
		),
		rejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandipulse_records_rejected_total",
				Help: "Raw records rejected during reconciliation per source",
			},
			[]string{"source"},
		),
		mergedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandipulse_points_merged_total",
				Help: "Canonical points written per series",
			},
			[]string{"series"},
		),
		alertsFired: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandipulse_alerts_fired_total",
				Help: "Price alerts triggered per series",
			},
			[]string{"series"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandipulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mandipulse_last_price",
				Help: "Last observed average price for a series",
			},
			[]string{"series"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mandipulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetched records raw records fetched from a source.
func (r *Recorder) RecordFetched(source string, n int) {
	r.fetchedTotal.WithLabelValues(source).Add(float64(n))
}

// RecordRejected records raw records rejected for a source.
func (r *Recorder) RecordRejected(source string, n int) {
	r.rejectedTotal.WithLabelValues(source).Add(float64(n))
}

// RecordMerged records canonical points written for a series.
func (r *Recorder) RecordMerged(series string, n int) {
	r.mergedTotal.WithLabelValues(series).Add(float64(n))
}

// RecordAlertFired records a triggered alert.
func (r *Recorder) RecordAlertFired(series string) {
	r.alertsFired.WithLabelValues(series).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last average price for a series.
func (r *Recorder) RecordLastPrice(series string, price float64) {
	r.lastPrice.WithLabelValues(series).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
