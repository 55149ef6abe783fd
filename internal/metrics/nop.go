// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/leadflow/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. It is the default collector of every component.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	svc, err := leadflow.NewService(&cfg, js, strategy, leadflow.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// MovementMetrics implementation

// RecordMoveAttempt discards the attempt metric.
func (n *NopMetrics) RecordMoveAttempt(_ /* result */ string, _ /* duration */ float64) {}

// RecordMoveRetry discards the retry metric.
func (n *NopMetrics) RecordMoveRetry(_ /* backoff */ float64) {}

// RecordMoveOutcome discards the outcome metric.
func (n *NopMetrics) RecordMoveOutcome(_ /* outcome */ string) {}

// RecordMovesTracked discards the tracked movements gauge.
func (n *NopMetrics) RecordMovesTracked(_ /* count */ int) {}

// DistributionMetrics implementation

// RecordAgentPick discards the distribution metric.
func (n *NopMetrics) RecordAgentPick(_ /* path */ string) {}

// IngestMetrics implementation

// RecordContactIngested discards the intake metric.
func (n *NopMetrics) RecordContactIngested(_ /* source */, _ /* result */ string) {}

// StoreMetrics implementation

// RecordKVOperationDuration discards the KV latency metric.
func (n *NopMetrics) RecordKVOperationDuration(_ /* operation */ string, _ /* duration */ float64) {}
