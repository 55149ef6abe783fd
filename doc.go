// Package leadflow provides the core of a sales CRM backed by NATS JetStream KV.
//
// Leadflow stores contacts, lists, agents, pipeline stages, tags and custom fields,
// assigns new contacts to sales agents according to per-list distribution rules, and
// moves contacts between pipeline stages optimistically with background persistence,
// retry with backoff and automatic revert.
//
// # Quick Start
//
// Basic usage with default settings:
//
//	import (
//	    "github.com/arloliu/leadflow"
//	    "github.com/arloliu/leadflow/strategy"
//	)
//
//	cfg := leadflow.DefaultConfig()
//	svc, err := leadflow.NewService(&cfg, js, strategy.NewProportional())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Stop(context.Background())
//
//	contact, err := svc.CreateContact(ctx, leadflow.ContactInput{
//	    Name:    "Ana Lima",
//	    Email:   "ana@example.com",
//	    ListID:  list.ID,
//	    StageID: stage.ID,
//	})
//
// # Key Features
//
//   - Proportional Distribution: New contacts go to the active agent furthest below its percentage
//   - Optimistic Moves: Stage changes apply locally at once and persist in the background
//   - Retry and Revert: Failed writes retry with backoff, then revert and show a failure for a while
//   - Intake: A JSON webhook and a CSV importer, both refreshing duplicates by email or phone
//   - Export: CSV export with list, stage, agent and tag names resolved
//
// # Stage Movements
//
// Every contact with a tracked move follows a small state machine:
//
//	IDLE → MOVING → IDLE (persisted)
//	MOVING → MOVING (retry after backoff)
//	MOVING → FAILED (retries exhausted, reverted) → IDLE (after FailureDisplay)
//
// Local state is kept in sync through MovementHooks:
//
//	hooks := &leadflow.MovementHooks{
//	    OnOptimisticUpdate: func(contactID, stageID string) { board.Move(contactID, stageID) },
//	    OnRevertUpdate:     func(contactID, stageID string) { board.Move(contactID, stageID) },
//	}
//
//	svc, err := leadflow.NewService(&cfg, js, strategy.NewProportional(),
//	    leadflow.WithMovementHooks(hooks),
//	)
//
// See cmd/leadflow for a complete server with the webhook and Prometheus metrics.
package leadflow
