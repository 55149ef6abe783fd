package leadflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/leadflow/internal/csvio"
	"github.com/arloliu/leadflow/internal/hooks"
	"github.com/arloliu/leadflow/internal/ingest"
	"github.com/arloliu/leadflow/internal/logging"
	"github.com/arloliu/leadflow/internal/metrics"
	"github.com/arloliu/leadflow/internal/movement"
	"github.com/arloliu/leadflow/internal/store"
	"github.com/arloliu/leadflow/types"
)

// Service is the entry point of the CRM core.
//
// Service handles:
//   - Persistence of contacts, lists, agents, stages, tags and custom fields in NATS KV
//   - Agent distribution for new contacts through a DistributionStrategy
//   - Optimistic stage moves with retry, revert and failure display
//   - Contact intake from the webhook and from CSV files, and CSV export
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//
// Lifecycle:
//   - Create with NewService()
//   - Call Start() to open the KV bucket and the movement coordinator
//   - Call Stop() to discard pending moves and wait for in-flight writes
//
// A stopped Service cannot be restarted; create a new one instead.
type Service struct {
	cfg      Config
	js       jetstream.JetStream
	strategy DistributionStrategy

	hooks   MovementHooks
	metrics MetricsCollector
	logger  Logger
	clock   clockwork.Clock

	mu          sync.RWMutex
	store       *store.KVStore
	coordinator *movement.Coordinator
	stopped     bool
}

var _ ContactStore = (*Service)(nil)

// NewService creates a new Service with the provided configuration.
//
// Parameters:
//   - cfg: Configuration; missing values are filled with defaults
//   - js: JetStream context used for the KV bucket
//   - strategy: Distribution strategy for new contacts (recommended: strategy.NewProportional())
//   - opts: Optional configuration (WithLogger, WithMetrics, WithMovementHooks, WithClock)
//
// Returns:
//   - *Service: Initialized service, not yet started
//   - error: Validation error if configuration or dependencies are invalid
//
// Example:
//
//	cfg := leadflow.DefaultConfig()
//	svc, err := leadflow.NewService(&cfg, js, strategy.NewProportional())
//	if err != nil {
//	    return err
//	}
//	if err := svc.Start(ctx); err != nil {
//	    return err
//	}
//	defer svc.Stop(context.Background())
func NewService(cfg *Config, js jetstream.JetStream, strategy DistributionStrategy, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if js == nil {
		return nil, ErrJetStreamRequired
	}
	if strategy == nil {
		return nil, ErrDistributionStrategyRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &serviceOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	var loggerInstance Logger = logging.NewNop()
	if options.logger != nil {
		loggerInstance = options.logger
	}

	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := hooks.NewNop()
	if options.hooks != nil {
		hooksInstance = hooks.WithDefaults(*options.hooks)
	}

	clock := options.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Service{
		cfg:      *cfg,
		js:       js,
		strategy: strategy,
		hooks:    hooksInstance,
		metrics:  metricsCollector,
		logger:   loggerInstance,
		clock:    clock,
	}, nil
}

// Start opens (or creates) the KV bucket and starts the movement coordinator.
//
// Parameters:
//   - ctx: Context for cancellation; StartupTimeout is applied on top of it
//
// Returns:
//   - error: ErrAlreadyStarted, or a bucket creation error
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil || s.stopped {
		return ErrAlreadyStarted
	}

	startupCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	st, err := store.Open(startupCtx, s.js, s.cfg.KVBucket.Name, s.cfg.KVBucket.Replicas,
		store.WithLogger(s.logger),
		store.WithMetrics(s.metrics),
		store.WithClock(s.clock),
	)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	coord, err := movement.New(s.cfg.movementConfig(), st,
		movement.WithLogger(s.logger),
		movement.WithMetrics(s.metrics),
		movement.WithHooks(s.hooks),
		movement.WithClock(s.clock),
	)
	if err != nil {
		return fmt.Errorf("failed to create movement coordinator: %w", err)
	}

	s.store = st
	s.coordinator = coord
	s.logger.Info("service started", "bucket", s.cfg.KVBucket.Name)

	return nil
}

// Stop discards pending moves and waits for in-flight stage writes.
//
// Tracked moves are dropped without invoking revert callbacks.
//
// Parameters:
//   - ctx: Context for shutdown; ShutdownTimeout is applied on top of it
//
// Returns:
//   - error: ErrNotStarted if the service is not running, or a shutdown timeout
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.store == nil || s.stopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopped = true
	coord := s.coordinator
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := coord.Close(shutdownCtx); err != nil {
		s.logger.Error("movement coordinator did not stop cleanly", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("service stopped")

	return nil
}

// components returns the running store and coordinator.
func (s *Service) components() (*store.KVStore, *movement.Coordinator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.store == nil || s.stopped {
		return nil, nil, ErrNotStarted
	}

	return s.store, s.coordinator, nil
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// CreateContact stores a new contact, assigning an agent when none is given.
//
// When AssignedAgentID is empty the distribution strategy picks one from the active
// agents, based on the list's rules and the contacts already in the list. If no agent
// is available the contact is stored unassigned.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - in: Contact fields; name, list and stage are required
//
// Returns:
//   - Contact: Stored contact
//   - error: ErrInvalidInput, ErrNotFound for an unknown list, or a store error
func (s *Service) CreateContact(ctx context.Context, in ContactInput) (Contact, error) {
	st, _, err := s.components()
	if err != nil {
		return Contact{}, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if in.AssignedAgentID == "" {
		agentID, err := s.distribute(ctx, st, in)
		if err != nil {
			return Contact{}, err
		}
		in.AssignedAgentID = agentID
	}

	return st.CreateContact(ctx, in)
}

// distribute loads the list, the agents and the list's contacts and asks the strategy.
func (s *Service) distribute(ctx context.Context, st *store.KVStore, in ContactInput) (string, error) {
	if in.ListID == "" {
		return "", fmt.Errorf("%w: contact list is required", ErrInvalidInput)
	}

	var (
		list     List
		agents   []Agent
		contacts []Contact
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = st.GetList(gctx, in.ListID)
		return err
	})
	g.Go(func() error {
		var err error
		agents, err = st.ListAgents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		contacts, err = st.ListContacts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("load distribution inputs: %w", err)
	}

	agentID, ok := s.strategy.PickAgent(in.Contact(), types.ActiveAgents(agents), types.ContactsInList(contacts, list.ID), list)
	if !ok {
		s.logger.Debug("no active agent, contact left unassigned", "list_id", list.ID)
		return "", nil
	}

	return agentID, nil
}

// UpsertContact creates a contact, or refreshes the existing contact of the same list
// with the same email or phone.
//
// A refresh replaces profile fields, custom fields, source and notes; list, stage,
// agent and tags of the existing contact are kept.
//
// Returns:
//   - Contact: Created or updated contact
//   - bool: true when an existing contact was updated
//   - error: Validation or store error
func (s *Service) UpsertContact(ctx context.Context, in ContactInput) (Contact, bool, error) {
	st, _, err := s.components()
	if err != nil {
		return Contact{}, false, err
	}

	lookupCtx, cancel := s.opContext(ctx)
	dup, err := st.FindDuplicate(lookupCtx, in.ListID, in.Email, in.Phone)
	if err == nil {
		updated, err := st.UpdateContact(lookupCtx, in.MergeInto(dup))
		cancel()

		return updated, err == nil, err
	}
	cancel()
	if !errors.Is(err, ErrNotFound) {
		return Contact{}, false, err
	}

	created, err := s.CreateContact(ctx, in)

	return created, false, err
}

// UpdateContactStage writes a stage directly, bypassing the movement coordinator.
//
// Interactive moves should use MoveContact instead.
func (s *Service) UpdateContactStage(ctx context.Context, contactID, stageID string) error {
	return withStoreErr(s, ctx, func(ctx context.Context, st *store.KVStore) error {
		return st.UpdateContactStage(ctx, contactID, stageID)
	})
}

// MoveContact optimistically moves a contact to another stage and persists the
// change in the background, retrying with backoff.
//
// Returns false when the contact already has a tracked move or the service is not running.
func (s *Service) MoveContact(contactID, toStageID, fromStageID string) bool {
	_, coord, err := s.components()
	if err != nil {
		return false
	}

	return coord.MoveContact(contactID, toStageID, fromStageID)
}

// RetryFailedMove re-issues a move whose retries were exhausted.
func (s *Service) RetryFailedMove(contactID string) bool {
	_, coord, err := s.components()
	if err != nil {
		return false
	}

	return coord.RetryFailedMove(contactID)
}

// CancelMove abandons a tracked move and reverts the contact to its original stage.
func (s *Service) CancelMove(contactID string) bool {
	_, coord, err := s.components()
	if err != nil {
		return false
	}

	return coord.CancelMove(contactID)
}

// IsMoving reports whether a move of the contact is in flight or waiting to retry.
func (s *Service) IsMoving(contactID string) bool {
	_, coord, err := s.components()
	if err != nil {
		return false
	}

	return coord.IsMoving(contactID)
}

// HasFailed reports whether the last move of the contact failed and is still displayed.
func (s *Service) HasFailed(contactID string) bool {
	_, coord, err := s.components()
	if err != nil {
		return false
	}

	return coord.HasFailed(contactID)
}

// MovementSnapshot returns the tracked move of a contact, if any.
func (s *Service) MovementSnapshot(contactID string) (MovementState, bool) {
	_, coord, err := s.components()
	if err != nil {
		return MovementState{}, false
	}

	return coord.Snapshot(contactID)
}

// SubscribeMovements streams movement lifecycle events.
//
// Returns:
//   - <-chan MovementEvent: Event stream, closed by the returned cancel func or on Stop
//   - func(): Unsubscribe function
//   - error: ErrNotStarted if the service is not running
func (s *Service) SubscribeMovements() (<-chan MovementEvent, func(), error) {
	_, coord, err := s.components()
	if err != nil {
		return nil, nil, err
	}

	ch, unsubscribe := coord.Subscribe()

	return ch, unsubscribe, nil
}

// ImportContacts reads a CSV file and upserts one contact per row.
//
// Rows failing validation or storage are reported in ImportReport.Errors; the
// import continues with the next row.
//
// Parameters:
//   - ctx: Context for cancellation
//   - r: CSV content with a header row
//   - opts: Target list/stage, tags and column mapping (nil mapping auto-detects columns)
//
// Returns:
//   - ImportReport: Per-row outcome
//   - error: Parse error or cancellation
func (s *Service) ImportContacts(ctx context.Context, r io.Reader, opts ImportOptions) (ImportReport, error) {
	if _, _, err := s.components(); err != nil {
		return ImportReport{}, err
	}

	importer := csvio.NewImporter(s, csvio.WithLogger(s.logger), csvio.WithMetrics(s.metrics))

	return importer.Import(ctx, r, opts)
}

// ExportContacts writes every contact as CSV with list, stage, agent and tag names resolved.
func (s *Service) ExportContacts(ctx context.Context, w io.Writer) error {
	st, _, err := s.components()
	if err != nil {
		return err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var (
		contacts []Contact
		catalog  csvio.Catalog
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { contacts, err = st.ListContacts(gctx); return err })
	g.Go(func() (err error) { catalog.Lists, err = st.ListLists(gctx); return err })
	g.Go(func() (err error) { catalog.Stages, err = st.ListStages(gctx); return err })
	g.Go(func() (err error) { catalog.Agents, err = st.ListAgents(gctx); return err })
	g.Go(func() (err error) { catalog.Tags, err = st.ListTags(gctx); return err })
	g.Go(func() (err error) { catalog.CustomFields, err = st.ListCustomFields(gctx); return err })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load export data: %w", err)
	}

	return csvio.Export(w, contacts, catalog)
}

// WebhookHandler returns the HTTP handler for contact intake.
//
// The handler accepts POST requests with a JSON contact and answers CORS preflight
// requests. Mount it at Config.Webhook.Path.
func (s *Service) WebhookHandler() http.Handler {
	return ingest.NewHandler(s, ingest.WithLogger(s.logger), ingest.WithMetrics(s.metrics))
}
