package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pairsAnalyzed  *prometheus.CounterVec
	signalsEmitted *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		pairsAnalyzed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelscan_pairs_analyzed_total",
				Help: "Total number of pairs scored by the sweep",
			},
			[]string{"timeframe"},
		),
		signalsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelscan_signals_emitted_total",
				Help: "Total number of signals persisted",
			},
			[]string{"timeframe", "signal_type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levelscan_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "levelscan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPairAnalyzed counts one scored pair.
func (r *Recorder) RecordPairAnalyzed(tf string) {
	r.pairsAnalyzed.WithLabelValues(tf).Inc()
}

// RecordSignalEmitted counts one persisted signal.
func (r *Recorder) RecordSignalEmitted(tf, signalType string) {
	r.signalsEmitted.WithLabelValues(tf, signalType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
