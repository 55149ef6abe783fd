// Package types provides core type definitions and interfaces for the leadflow library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, we avoid import cycles
// between the root leadflow package and its internal implementations.
//
// Key types:
//   - Contact, List, Agent, PipelineStage: CRM entities
//   - DistributionStrategy: Agent selection for new contacts
//   - MovementPhase, MovementState, MovementEvent: Stage movement tracking
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
