package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	MovementMetrics
	DistributionMetrics
	IngestMetrics
	StoreMetrics
}

// MovementMetrics defines metrics for contact stage movements.
type MovementMetrics interface {
	// RecordMoveAttempt records one persistence attempt.
	//
	// Parameters:
	//   - result: "success", "error" or "connectivity"
	//   - duration: Time taken in seconds
	RecordMoveAttempt(result string, duration float64)

	// RecordMoveRetry records a scheduled retry and its backoff delay.
	//
	// Parameters:
	//   - backoff: Delay before the retry in seconds
	RecordMoveRetry(backoff float64)

	// RecordMoveOutcome records how a movement ended.
	//
	// Parameters:
	//   - outcome: "succeeded", "failed", "cancelled", "cleared" or "dropped"
	RecordMoveOutcome(outcome string)

	// RecordMovesTracked sets the number of tracked movements (gauge metric).
	RecordMovesTracked(count int)
}

// DistributionMetrics defines metrics for agent distribution.
type DistributionMetrics interface {
	// RecordAgentPick records a distribution decision.
	//
	// Parameters:
	//   - path: "rules", "round_robin", "zero_total" or "none"
	RecordAgentPick(path string)
}

// IngestMetrics defines metrics for contact intake (webhook and CSV import).
type IngestMetrics interface {
	// RecordContactIngested records one intake result.
	//
	// Parameters:
	//   - source: "webhook" or "csv"
	//   - result: "created", "updated", "rejected" or "error"
	RecordContactIngested(source, result string)
}

// StoreMetrics defines metrics for the KV-backed store.
type StoreMetrics interface {
	// RecordKVOperationDuration records NATS KV operation latency.
	//
	// Parameters:
	//   - operation: Operation type ("get", "put", "create", "update", "delete", "keys")
	//   - duration: Time taken in seconds
	RecordKVOperationDuration(operation string, duration float64)
}
