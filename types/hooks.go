package types

// MovementHooks carries the UI callbacks of the movement coordinator.
//
// Unlike the asynchronous lifecycle notifications delivered through
// Coordinator.Subscribe, hooks run synchronously:
//   - OnOptimisticUpdate runs on the goroutine calling MoveContact or
//     RetryFailedMove, before the persistence call is issued
//   - OnRevertUpdate runs before the movement becomes observable as failed,
//     and on cancellation
//
// Hooks are never invoked while the coordinator holds its lock, so they may
// call back into the coordinator (e.g. IsMoving).
type MovementHooks struct {
	// OnOptimisticUpdate applies the target stage to local state.
	OnOptimisticUpdate func(contactID, stageID string)

	// OnRevertUpdate restores the original stage in local state.
	OnRevertUpdate func(contactID, originalStageID string)
}
