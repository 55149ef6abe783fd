// Package store persists CRM records in a NATS JetStream KV bucket.
//
// Every record is a JSON value under "<kind>.<id>". Contacts additionally maintain a
// duplicate index "dedupe.<listID>.<hash>" mapping a normalized email or phone within
// a list to the contact ID. Read-modify-write paths use the KV revision as a
// compare-and-set guard and retry a bounded number of times on conflicts.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/leadflow/internal/kvutil"
	"github.com/arloliu/leadflow/internal/logging"
	"github.com/arloliu/leadflow/internal/metrics"
	"github.com/arloliu/leadflow/types"
)

const (
	defaultCASRetries  = 5
	defaultBulkWorkers = 8
)

// KVStore implements types.ContactStore on a JetStream KV bucket.
type KVStore struct {
	kv         jetstream.KeyValue
	clock      clockwork.Clock
	logger     types.Logger
	metrics    types.StoreMetrics
	newID      func() string
	casRetries int

	contacts collection[types.Contact]
	lists    collection[types.List]
	agents   collection[types.Agent]
	stages   collection[types.PipelineStage]
	tags     collection[types.Tag]
	fields   collection[types.CustomField]
}

var _ types.ContactStore = (*KVStore)(nil)

// Option configures a KVStore.
type Option func(*KVStore)

// WithLogger sets the store logger.
func WithLogger(logger types.Logger) Option {
	return func(s *KVStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the collector for KV latency.
func WithMetrics(m types.StoreMetrics) Option {
	return func(s *KVStore) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock sets the clock used for record timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *KVStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator replaces the UUIDv4 generator for new record IDs.
func WithIDGenerator(fn func() string) Option {
	return func(s *KVStore) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithCASRetries sets how many times a conflicting update is retried.
func WithCASRetries(n int) Option {
	return func(s *KVStore) {
		if n > 0 {
			s.casRetries = n
		}
	}
}

// New wraps an existing KV bucket.
//
// Parameters:
//   - kv: Bucket holding the CRM records
//   - opts: Optional configuration (WithLogger, WithMetrics, WithClock, WithIDGenerator, WithCASRetries)
//
// Returns:
//   - *KVStore: Store ready for use
func New(kv jetstream.KeyValue, opts ...Option) *KVStore {
	s := &KVStore{
		kv:         kv,
		clock:      clockwork.NewRealClock(),
		logger:     logging.NewNop(),
		metrics:    metrics.NewNop(),
		newID:      uuid.NewString,
		casRetries: defaultCASRetries,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.contacts = collection[types.Contact]{
		store:    s,
		prefix:   "contact",
		id:       func(c *types.Contact) *string { return &c.ID },
		validate: validateContact,
		stamp: func(c *types.Contact, now time.Time, created bool) {
			if created {
				c.CreatedAt = now
			}
			c.UpdatedAt = now
		},
		compare: compareContacts,
	}
	s.lists = collection[types.List]{
		store:    s,
		prefix:   "list",
		id:       func(l *types.List) *string { return &l.ID },
		validate: validateList,
		stamp: func(l *types.List, now time.Time, created bool) {
			if created {
				l.CreatedAt = now
			}
		},
		compare: compareLists,
	}
	s.agents = collection[types.Agent]{
		store:    s,
		prefix:   "agent",
		id:       func(a *types.Agent) *string { return &a.ID },
		validate: validateAgent,
		stamp: func(a *types.Agent, now time.Time, created bool) {
			if created {
				a.CreatedAt = now
			}
		},
		compare: compareAgents,
	}
	s.stages = collection[types.PipelineStage]{
		store:    s,
		prefix:   "stage",
		id:       func(st *types.PipelineStage) *string { return &st.ID },
		validate: validateStage,
		compare:  compareStages,
	}
	s.tags = collection[types.Tag]{
		store:    s,
		prefix:   "tag",
		id:       func(t *types.Tag) *string { return &t.ID },
		validate: validateTag,
		compare:  compareTags,
	}
	s.fields = collection[types.CustomField]{
		store:    s,
		prefix:   "field",
		id:       func(f *types.CustomField) *string { return &f.ID },
		validate: validateCustomField,
		compare:  compareCustomFields,
	}

	return s
}

// Open creates or opens the bucket described by name and replicas and wraps it.
//
// Parameters:
//   - ctx: Context bounding bucket creation
//   - js: JetStream context
//   - name: Bucket name
//   - replicas: Stream replicas
//   - opts: Store options
//
// Returns:
//   - *KVStore: Store over the bucket
//   - error: Bucket creation failure
//
// Example:
//
//	st, err := store.Open(ctx, js, "leadflow-crm", 1, store.WithLogger(logger))
func Open(ctx context.Context, js jetstream.JetStream, name string, replicas int, opts ...Option) (*KVStore, error) {
	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, kvutil.BucketConfig(name, replicas), 3)
	if err != nil {
		return nil, fmt.Errorf("open CRM bucket: %w", err)
	}

	return New(kv, opts...), nil
}

// observe records the latency of one KV operation.
func (s *KVStore) observe(op string, start time.Time) {
	s.metrics.RecordKVOperationDuration(op, time.Since(start).Seconds())
}
