package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/leadflow/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered on first use, so constructing one that is
// never exercised leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	moveAttempts *prometheus.CounterVec
	moveLatency  *prometheus.HistogramVec
	moveBackoff  prometheus.Histogram
	moveOutcomes *prometheus.CounterVec
	movesTracked prometheus.Gauge
	agentPicks   *prometheus.CounterVec
	ingested     *prometheus.CounterVec
	kvOpLatency  *prometheus.HistogramVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "leadflow" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "leadflow"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.moveAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "movement",
			Name:      "attempts_total",
			Help:      "Persistence attempts for stage movements by result (success, error, connectivity).",
		}, []string{"result"})

		p.moveLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "movement",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of stage persistence attempts in seconds by result.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms .. ~2.5s
		}, []string{"result"})

		p.moveBackoff = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "movement",
			Name:      "retry_backoff_seconds",
			Help:      "Backoff delays scheduled before movement retries.",
			Buckets:   []float64{0.5, 1, 2, 4, 8},
		})

		p.moveOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "movement",
			Name:      "outcomes_total",
			Help:      "Movement outcomes (succeeded, failed, cancelled, cleared, dropped).",
		}, []string{"outcome"})

		p.movesTracked = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "movement",
			Name:      "tracked",
			Help:      "Current number of movements in progress or failed.",
		})

		p.agentPicks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "distribution",
			Name:      "picks_total",
			Help:      "Distribution decisions by path (rules, round_robin, zero_total, none).",
		}, []string{"path"})

		p.ingested = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "ingest",
			Name:      "contacts_total",
			Help:      "Contacts received from intake channels by source and result.",
		}, []string{"source", "result"})

		p.kvOpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "kv_operation_duration_seconds",
			Help:      "NATS KV operation latency in seconds by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"operation"})

		p.reg.MustRegister(
			p.moveAttempts,
			p.moveLatency,
			p.moveBackoff,
			p.moveOutcomes,
			p.movesTracked,
			p.agentPicks,
			p.ingested,
			p.kvOpLatency,
		)
	})
}

// RecordMoveAttempt counts an attempt and observes its latency.
func (p *PrometheusCollector) RecordMoveAttempt(result string, duration float64) {
	p.ensureRegistered()
	p.moveAttempts.WithLabelValues(result).Inc()
	p.moveLatency.WithLabelValues(result).Observe(duration)
}

// RecordMoveRetry observes a retry backoff delay.
func (p *PrometheusCollector) RecordMoveRetry(backoff float64) {
	p.ensureRegistered()
	p.moveBackoff.Observe(backoff)
}

// RecordMoveOutcome increments the outcome counter.
func (p *PrometheusCollector) RecordMoveOutcome(outcome string) {
	p.ensureRegistered()
	p.moveOutcomes.WithLabelValues(outcome).Inc()
}

// RecordMovesTracked sets the tracked movements gauge.
func (p *PrometheusCollector) RecordMovesTracked(count int) {
	p.ensureRegistered()
	p.movesTracked.Set(float64(count))
}

// RecordAgentPick increments the distribution path counter.
func (p *PrometheusCollector) RecordAgentPick(path string) {
	p.ensureRegistered()
	p.agentPicks.WithLabelValues(path).Inc()
}

// RecordContactIngested increments the intake counter.
func (p *PrometheusCollector) RecordContactIngested(source, result string) {
	p.ensureRegistered()
	p.ingested.WithLabelValues(source, result).Inc()
}

// RecordKVOperationDuration observes KV operation latency.
func (p *PrometheusCollector) RecordKVOperationDuration(operation string, duration float64) {
	p.ensureRegistered()
	p.kvOpLatency.WithLabelValues(operation).Observe(duration)
}
