package movement

import (
	"fmt"
	"time"

	"github.com/arloliu/leadflow/types"
)

// Config holds the retry policy of a Coordinator.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// RetryDelays is indexed by attempt number; attempts past the end reuse the last value.
	RetryDelays []time.Duration
	// FailureDisplay is how long a failed movement stays visible before it is cleared.
	FailureDisplay time.Duration
	// OperationTimeout bounds each persistence call.
	OperationTimeout time.Duration
}

// DefaultConfig returns the standard policy: 3 retries after 1s, 2s and 4s, and a
// failure indicator shown for 5s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		RetryDelays:      []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		FailureDisplay:   5 * time.Second,
		OperationTimeout: 10 * time.Second,
	}
}

// Validate checks the policy for values the coordinator cannot run with.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: MaxRetries must be >= 0, got %d", types.ErrInvalidConfig, c.MaxRetries)
	}
	if c.MaxRetries > 0 && len(c.RetryDelays) == 0 {
		return fmt.Errorf("%w: RetryDelays must not be empty when MaxRetries > 0", types.ErrInvalidConfig)
	}
	for i, d := range c.RetryDelays {
		if d <= 0 {
			return fmt.Errorf("%w: RetryDelays[%d] must be positive, got %v", types.ErrInvalidConfig, i, d)
		}
	}
	if c.FailureDisplay <= 0 {
		return fmt.Errorf("%w: FailureDisplay must be positive, got %v", types.ErrInvalidConfig, c.FailureDisplay)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("%w: OperationTimeout must be positive, got %v", types.ErrInvalidConfig, c.OperationTimeout)
	}

	return nil
}

// delay returns the backoff before the retry that follows attempt.
func (c Config) delay(attempt int) time.Duration {
	if attempt >= len(c.RetryDelays) {
		return c.RetryDelays[len(c.RetryDelays)-1]
	}

	return c.RetryDelays[attempt]
}
