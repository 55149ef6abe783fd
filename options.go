package leadflow

import "github.com/jonboulle/clockwork"

// Option configures a Service with optional dependencies.
type Option func(*serviceOptions)

// serviceOptions holds optional Service configuration.
type serviceOptions struct {
	hooks   *MovementHooks
	metrics MetricsCollector
	logger  Logger
	clock   clockwork.Clock
}

// WithMovementHooks sets the optimistic-update and revert callbacks of stage moves.
//
// Parameters:
//   - hooks: Callbacks; nil fields are replaced by no-ops
//
// Returns:
//   - Option: Functional option for NewService
//
// Example:
//
//	hooks := &leadflow.MovementHooks{
//	    OnOptimisticUpdate: func(contactID, stageID string) { board.Move(contactID, stageID) },
//	    OnRevertUpdate:     func(contactID, stageID string) { board.Move(contactID, stageID) },
//	}
//	svc, _ := leadflow.NewService(&cfg, js, strat, leadflow.WithMovementHooks(hooks))
func WithMovementHooks(hooks *MovementHooks) Option {
	return func(o *serviceOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewService
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "leadflow")
//	svc, _ := leadflow.NewService(&cfg, js, strat, leadflow.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *serviceOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation taking key-value pairs
//
// Returns:
//   - Option: Functional option for NewService
//
// Example:
//
//	svc, _ := leadflow.NewService(&cfg, js, strat, leadflow.WithLogger(appLogger))
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithClock sets the clock driving retry timers and record timestamps.
//
// Tests pass a clockwork.FakeClock to step through retry backoff deterministically.
func WithClock(clock clockwork.Clock) Option {
	return func(o *serviceOptions) {
		o.clock = clock
	}
}
