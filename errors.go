package leadflow

import "github.com/arloliu/leadflow/types"

// Sentinel errors returned by the Service, re-exported from the types package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrJetStreamRequired is returned when the JetStream context is nil.
	ErrJetStreamRequired = types.ErrJetStreamRequired

	// ErrDistributionStrategyRequired is returned when the distribution strategy is nil.
	ErrDistributionStrategyRequired = types.ErrDistributionStrategyRequired

	// ErrAlreadyStarted is returned when Start is called on an already running service.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when the service is used before Start or after Stop.
	ErrNotStarted = types.ErrNotStarted

	// ErrNotFound is returned when a contact, list, agent, stage, tag or field does not exist.
	ErrNotFound = types.ErrNotFound

	// ErrInvalidInput is returned when a record fails validation.
	ErrInvalidInput = types.ErrInvalidInput

	// ErrConflict is returned when a write keeps losing revision races.
	ErrConflict = types.ErrConflict
)
