package types

import "time"

// MovementPhase is the state of a contact's stage movement.
//
// Each contact follows its own state machine:
//
//	Idle → Moving → Idle (persisted)
//	Moving → Moving (retry after backoff)
//	Moving → Failed (retries exhausted, optimistic change reverted)
//	Failed → Moving (manual retry) | Idle (cancel or auto-clear)
type MovementPhase int

const (
	// MovementIdle indicates no movement is tracked for the contact.
	MovementIdle MovementPhase = iota

	// MovementMoving indicates a persistence attempt is in flight or a retry is scheduled.
	MovementMoving

	// MovementFailed indicates retries were exhausted and the move was reverted.
	MovementFailed
)

// String returns the string representation of the phase.
func (p MovementPhase) String() string {
	switch p {
	case MovementIdle:
		return "Idle"
	case MovementMoving:
		return "Moving"
	case MovementFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MovementState describes one tracked stage movement.
type MovementState struct {
	ContactID   string        `json:"contactId"`
	FromStageID string        `json:"fromStageId"`
	ToStageID   string        `json:"toStageId"`
	Attempt     int           `json:"attempt"`
	Timestamp   time.Time     `json:"timestamp"`
	Phase       MovementPhase `json:"phase"`
}

// MovementEventKind classifies movement notifications.
type MovementEventKind int

const (
	// MoveStarted is emitted when a movement enters Moving (new move or manual retry).
	MoveStarted MovementEventKind = iota
	// MoveRetrying is emitted when a failed attempt schedules a retry.
	MoveRetrying
	// MoveSucceeded is emitted when the stage change was persisted.
	MoveSucceeded
	// MoveFailed is emitted after retries are exhausted and the move was reverted.
	MoveFailed
	// MoveCancelled is emitted when a tracked movement is cancelled.
	MoveCancelled
	// MoveCleared is emitted when the failure indicator auto-clears.
	MoveCleared
	// MoveDropped is emitted when a move request hits an already tracked contact.
	MoveDropped
)

// String returns the string representation of the event kind.
func (k MovementEventKind) String() string {
	switch k {
	case MoveStarted:
		return "started"
	case MoveRetrying:
		return "retrying"
	case MoveSucceeded:
		return "succeeded"
	case MoveFailed:
		return "failed"
	case MoveCancelled:
		return "cancelled"
	case MoveCleared:
		return "cleared"
	case MoveDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// MovementEvent notifies subscribers about movement progress.
type MovementEvent struct {
	Kind        MovementEventKind
	ContactID   string
	FromStageID string
	ToStageID   string
	Attempt     int
	Err         error
}
