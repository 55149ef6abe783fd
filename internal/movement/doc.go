// Package movement coordinates optimistic stage moves of contacts.
//
// Each contact has at most one tracked movement. A movement walks this state machine:
//
//	Idle    -> Moving   MoveContact (optimistic callback fires first)
//	Moving  -> Idle     persistence succeeded, state discarded
//	Moving  -> Moving   persistence failed with retries left, after a backoff delay
//	Moving  -> Failed   retries exhausted, revert callback fired with the original stage
//	Failed  -> Moving   RetryFailedMove, resumes at the stored attempt count
//	Failed  -> Idle     CancelMove, or the failure display timeout
//	Moving  -> Idle     CancelMove, pending retry stopped and optimistic change reverted
//
// Persistence errors never reach the caller. Every error kind takes the same
// retry path, including permanent ones such as a deleted target stage.
package movement
