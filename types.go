package leadflow

import (
	"github.com/arloliu/leadflow/internal/csvio"
	"github.com/arloliu/leadflow/types"
)

// Re-export types from the types package.
//
// Internal packages depend on `types` rather than on the root package, which
// avoids import cycles while still giving users `leadflow.Contact`,
// `leadflow.Logger` and friends.
type (
	Contact           = types.Contact
	ContactInput      = types.ContactInput
	List              = types.List
	DistributionRule  = types.DistributionRule
	Agent             = types.Agent
	PipelineStage     = types.PipelineStage
	Tag               = types.Tag
	CustomField       = types.CustomField
	MovementPhase     = types.MovementPhase
	MovementState     = types.MovementState
	MovementEvent     = types.MovementEvent
	MovementEventKind = types.MovementEventKind
)

// Re-export interfaces from the types package for convenience.
type (
	DistributionStrategy = types.DistributionStrategy
	ContactStore         = types.ContactStore
	StageUpdater         = types.StageUpdater
	MetricsCollector     = types.MetricsCollector
	Logger               = types.Logger
	MovementHooks        = types.MovementHooks
)

// Re-export movement constants from the types package.
const (
	MovementIdle   = types.MovementIdle
	MovementMoving = types.MovementMoving
	MovementFailed = types.MovementFailed

	MoveStarted   = types.MoveStarted
	MoveRetrying  = types.MoveRetrying
	MoveSucceeded = types.MoveSucceeded
	MoveFailed    = types.MoveFailed
	MoveCancelled = types.MoveCancelled
	MoveCleared   = types.MoveCleared
	MoveDropped   = types.MoveDropped
)

// CSV import types.
type (
	ImportOptions = csvio.ImportOptions
	ImportReport  = csvio.ImportReport
	RowError      = csvio.RowError
)
