package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the leadflow library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Service errors - Public API errors returned by the Service.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrJetStreamRequired is returned when the JetStream context is nil.
	ErrJetStreamRequired = errors.New("JetStream context is required")

	// ErrDistributionStrategyRequired is returned when the distribution strategy is nil.
	ErrDistributionStrategyRequired = errors.New("distribution strategy is required")

	// ErrAlreadyStarted is returned when Start is called on an already running service.
	ErrAlreadyStarted = errors.New("service already started")

	// ErrNotStarted is returned when operations require a started service.
	ErrNotStarted = errors.New("service not started")
)

// Store errors - Persistence layer errors.
var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput is returned when an entity fails validation before a write.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a write keeps losing revision races.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrConnectivity indicates a NATS/KV connectivity issue.
	ErrConnectivity = errors.New("connectivity issue")
)

// Coordinator errors - Movement coordinator errors.
var (
	// ErrCoordinatorClosed is returned by Close when the coordinator was already closed.
	ErrCoordinatorClosed = errors.New("movement coordinator closed")
)

// Common errors - Shared errors used across multiple components.
var (
	// ErrNoKeysFound is returned when NATS KV returns no keys (expected condition).
	ErrNoKeysFound = errors.New("no keys found")
)

// IsNoKeysFoundError checks if an error indicates that no keys were found in NATS KV.
//
// This function handles NATS-specific "no keys found" errors which may come as:
//   - Direct error: "nats: no keys found"
//   - Wrapped error: "failed to list KV keys: nats: no keys found"
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates no keys were found, false otherwise
func IsNoKeysFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoKeysFound) {
		return true
	}

	return strings.Contains(err.Error(), "no keys found")
}
