package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	votesTotal    *prometheus.CounterVec
	signalsTotal  *prometheus.CounterVec
	triggersTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		votesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyswarm_model_votes_total",
				Help: "Total number of model votes by outcome",
			},
			[]string{"model", "outcome"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyswarm_signals_total",
				Help: "Total number of signals created or merged",
			},
			[]string{"market", "action"},
		),
		triggersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyswarm_triggers_total",
				Help: "Total number of anomaly triggers created",
			},
			[]string{"type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyswarm_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "polyswarm_last_price",
				Help: "Last observed YES price for a market",
			},
			[]string{"market"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polyswarm_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordVote records a model vote outcome.
func (r *Recorder) RecordVote(modelID string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.votesTotal.WithLabelValues(modelID, outcome).Inc()
}

// RecordSignal records a signal creation or merge.
func (r *Recorder) RecordSignal(marketID string, created bool) {
	action := "merged"
	if created {
		action = "created"
	}
	r.signalsTotal.WithLabelValues(marketID, action).Inc()
}

// RecordTrigger records an anomaly trigger creation.
func (r *Recorder) RecordTrigger(typ string) {
	r.triggersTotal.WithLabelValues(typ).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a market.
func (r *Recorder) RecordLastPrice(marketID string, price float64) {
	r.lastPrice.WithLabelValues(marketID).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
