package movement

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/leadflow/internal/hooks"
	"github.com/arloliu/leadflow/internal/logging"
	"github.com/arloliu/leadflow/internal/metrics"
	"github.com/arloliu/leadflow/internal/natsutil"
	"github.com/arloliu/leadflow/types"
)

// Outcome labels reported to metrics.
const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
	outcomeCleared   = "cleared"
	outcomeDropped   = "dropped"
	resultSuccess    = "success"
)

// movement is the tracked state of one contact. Guarded by Coordinator.mu.
type movement struct {
	state types.MovementState
	// gen changes whenever the movement re-enters Moving from Failed, so timers
	// armed for an earlier phase can tell they are stale.
	gen        uint64
	retryTimer clockwork.Timer
	clearTimer clockwork.Timer
	// optimistic is set while OnOptimisticUpdate runs. A cancel landing in that
	// window sets revertOwed and leaves the revert to the optimistic caller.
	optimistic bool
	revertOwed bool
}

func (m *movement) stopTimers() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.clearTimer != nil {
		m.clearTimer.Stop()
		m.clearTimer = nil
	}
}

// Coordinator tracks optimistic stage moves and retries their persistence.
//
// All methods are safe for concurrent use. Callbacks and the StageUpdater are
// never invoked while the internal lock is held, so callbacks may call back into
// the coordinator.
type Coordinator struct {
	cfg     Config
	updater types.StageUpdater
	hooks   types.MovementHooks
	clock   clockwork.Clock
	logger  types.Logger
	metrics types.MovementMetrics

	mu        sync.Mutex
	movements map[string]*movement
	closed    bool

	// ctx bounds in-flight persistence calls and is cancelled by Close.
	ctx    context.Context //nolint:containedctx // lifetime context of the coordinator
	cancel context.CancelFunc
	wg     sync.WaitGroup

	subscribers      *xsync.Map[uint64, *subscriber]
	nextSubscriberID atomic.Uint64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger types.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the collector for movement metrics.
func WithMetrics(m types.MovementMetrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithHooks sets the optimistic and revert callbacks. Nil callbacks are ignored.
func WithHooks(h types.MovementHooks) Option {
	return func(c *Coordinator) {
		c.hooks = hooks.WithDefaults(h)
	}
}

// WithClock replaces the real clock, typically with a clockwork.FakeClock in tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New creates a coordinator that persists moves through updater.
//
// Parameters:
//   - cfg: Retry policy (see DefaultConfig)
//   - updater: Persistence collaborator
//   - opts: Optional configuration (WithLogger, WithMetrics, WithHooks, WithClock)
//
// Returns:
//   - *Coordinator: Ready coordinator; call Close to release timers and goroutines
//   - error: types.ErrInvalidConfig when cfg is invalid or updater is nil
func New(cfg Config, updater types.StageUpdater, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if updater == nil {
		return nil, fmt.Errorf("%w: stage updater is required", types.ErrInvalidConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:         cfg,
		updater:     updater,
		hooks:       hooks.NewNop(),
		clock:       clockwork.NewRealClock(),
		logger:      logging.NewNop(),
		metrics:     metrics.NewNop(),
		movements:   make(map[string]*movement),
		ctx:         ctx,
		cancel:      cancel,
		subscribers: xsync.NewMap[uint64, *subscriber](),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// MoveContact starts moving a contact to toStageID.
//
// The optimistic callback fires on the calling goroutine before persistence starts.
// A CancelMove issued while it runs reverts only after it returns, and no persistence
// attempt is made. The call is dropped when the contact already has a tracked movement (Moving or
// Failed), or when the coordinator is closed.
//
// Parameters:
//   - contactID: Contact to move
//   - toStageID: Target stage
//   - fromStageID: Current stage, restored by the revert callback on failure
//
// Returns:
//   - bool: true if the move was accepted
func (c *Coordinator) MoveContact(contactID, toStageID, fromStageID string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("move rejected, coordinator closed", "contact_id", contactID)

		return false
	}

	if existing, ok := c.movements[contactID]; ok {
		phase := existing.state.Phase
		c.mu.Unlock()

		c.logger.Debug("move dropped, contact already tracked",
			"contact_id", contactID,
			"phase", phase.String(),
			"to_stage_id", toStageID,
		)
		c.metrics.RecordMoveOutcome(outcomeDropped)
		c.emit(types.MovementEvent{Kind: types.MoveDropped, ContactID: contactID, FromStageID: fromStageID, ToStageID: toStageID})

		return false
	}

	m := &movement{state: types.MovementState{
		ContactID:   contactID,
		FromStageID: fromStageID,
		ToStageID:   toStageID,
		Timestamp:   c.clock.Now(),
		Phase:       types.MovementMoving,
	}, optimistic: true}
	c.movements[contactID] = m
	tracked := len(c.movements)
	gen := m.gen
	c.mu.Unlock()

	c.metrics.RecordMovesTracked(tracked)
	c.logger.Debug("move started", "contact_id", contactID, "from_stage_id", fromStageID, "to_stage_id", toStageID)
	c.emit(types.MovementEvent{Kind: types.MoveStarted, ContactID: contactID, FromStageID: fromStageID, ToStageID: toStageID})
	c.hooks.OnOptimisticUpdate(contactID, toStageID)
	c.endOptimistic(m, gen)

	return true
}

// RetryFailedMove resumes a failed movement at its stored attempt count.
//
// The optimistic callback fires again and exactly one more attempt is issued. If it
// fails the movement goes straight back to Failed.
//
// Returns:
//   - bool: true if the contact was in the Failed phase
func (c *Coordinator) RetryFailedMove(contactID string) bool {
	c.mu.Lock()
	m, ok := c.movements[contactID]
	if !ok || c.closed || m.state.Phase != types.MovementFailed {
		c.mu.Unlock()
		return false
	}

	m.stopTimers()
	m.gen++
	gen := m.gen
	m.state.Phase = types.MovementMoving
	m.state.Timestamp = c.clock.Now()
	m.optimistic = true
	state := m.state
	c.mu.Unlock()

	c.logger.Info("retrying failed move", "contact_id", contactID, "attempt", state.Attempt)
	c.emit(eventFor(types.MoveStarted, state, nil))
	c.hooks.OnOptimisticUpdate(contactID, state.ToStageID)
	c.endOptimistic(m, gen)

	return true
}

// endOptimistic closes the optimistic window of m. It starts the persistence attempt,
// or fires the revert owed to a cancel that arrived while the callback ran.
func (c *Coordinator) endOptimistic(m *movement, gen uint64) {
	c.mu.Lock()
	m.optimistic = false
	if !m.revertOwed {
		c.startAttemptLocked(m, gen)
		c.mu.Unlock()

		return
	}
	m.revertOwed = false
	contactID, from := m.state.ContactID, m.state.FromStageID
	c.mu.Unlock()

	c.hooks.OnRevertUpdate(contactID, from)
}

// CancelMove stops a tracked movement and reverts the contact to its original stage.
//
// A pending retry is stopped. An in-flight persistence call cannot be aborted; its
// result is ignored once it resolves. Cancelling an untracked contact does nothing.
// When the optimistic callback of the movement is still running, the revert callback
// fires on that goroutine right after it returns.
//
// Returns:
//   - bool: true if a movement was cancelled
func (c *Coordinator) CancelMove(contactID string) bool {
	c.mu.Lock()
	m, ok := c.movements[contactID]
	if !ok {
		c.mu.Unlock()
		return false
	}

	m.stopTimers()
	delete(c.movements, contactID)
	tracked := len(c.movements)
	state := m.state
	deferred := m.optimistic
	if deferred {
		m.revertOwed = true
	}
	c.mu.Unlock()

	c.metrics.RecordMovesTracked(tracked)
	if !deferred {
		c.hooks.OnRevertUpdate(contactID, state.FromStageID)
	}
	c.metrics.RecordMoveOutcome(outcomeCancelled)
	c.logger.Info("move cancelled", "contact_id", contactID, "phase", state.Phase.String())
	c.emit(eventFor(types.MoveCancelled, state, nil))

	return true
}

// IsMoving reports whether the contact has a movement in the Moving phase.
func (c *Coordinator) IsMoving(contactID string) bool {
	return c.phase(contactID) == types.MovementMoving
}

// HasFailed reports whether the contact's last movement failed and is still displayed.
func (c *Coordinator) HasFailed(contactID string) bool {
	return c.phase(contactID) == types.MovementFailed
}

// Snapshot returns a copy of the contact's movement state.
func (c *Coordinator) Snapshot(contactID string) (types.MovementState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.movements[contactID]
	if !ok {
		return types.MovementState{ContactID: contactID, Phase: types.MovementIdle}, false
	}

	return m.state, true
}

func (c *Coordinator) phase(contactID string) types.MovementPhase {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.movements[contactID]; ok {
		return m.state.Phase
	}

	return types.MovementIdle
}

// Subscribe returns a channel of movement events.
//
// Delivery never blocks the coordinator: events are dropped for subscribers whose
// buffer is full. The channel is closed by the returned unsubscribe function or by Close.
//
// Example:
//
//	events, unsubscribe := coord.Subscribe()
//	defer unsubscribe()
//	for ev := range events {
//	    fmt.Println(ev.Kind, ev.ContactID)
//	}
func (c *Coordinator) Subscribe() (<-chan types.MovementEvent, func()) {
	id := c.nextSubscriberID.Add(1)
	sub := &subscriber{ch: make(chan types.MovementEvent, subscriberBuffer)}

	c.mu.Lock()
	closed := c.closed
	if !closed {
		c.subscribers.Store(id, sub)
	}
	c.mu.Unlock()

	if closed {
		sub.close()
		return sub.ch, func() {}
	}

	return sub.ch, func() {
		if s, ok := c.subscribers.LoadAndDelete(id); ok {
			s.close()
		}
	}
}

// Close stops every timer, discards all movements without firing callbacks and
// waits for in-flight persistence calls to return.
//
// Returns:
//   - error: types.ErrCoordinatorClosed on a second call, or ctx.Err() if the wait times out
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.ErrCoordinatorClosed
	}
	c.closed = true
	discarded := len(c.movements)
	for _, m := range c.movements {
		m.stopTimers()
	}
	clear(c.movements)
	c.mu.Unlock()

	c.cancel()
	c.metrics.RecordMovesTracked(0)
	c.logger.Debug("coordinator closing", "discarded_movements", discarded)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for in-flight moves: %w", ctx.Err())
	}

	c.subscribers.Range(func(id uint64, s *subscriber) bool {
		c.subscribers.Delete(id)
		s.close()

		return true
	})

	return err
}

// current reports whether m is still the tracked movement for its contact at gen.
func (c *Coordinator) current(m *movement, gen uint64) bool {
	return c.movements[m.state.ContactID] == m && m.gen == gen
}

// startAttemptLocked launches one persistence attempt. Caller must hold c.mu.
func (c *Coordinator) startAttemptLocked(m *movement, gen uint64) {
	if c.closed || !c.current(m, gen) {
		return
	}

	contactID := m.state.ContactID
	toStageID := m.state.ToStageID
	attempt := m.state.Attempt

	c.wg.Go(func() {
		c.logger.Debug("persisting move", "contact_id", contactID, "to_stage_id", toStageID, "attempt", attempt)

		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.OperationTimeout)
		start := time.Now()
		err := c.updater.UpdateContactStage(ctx, contactID, toStageID)
		elapsed := time.Since(start).Seconds()
		cancel()

		if err == nil {
			c.metrics.RecordMoveAttempt(resultSuccess, elapsed)
		} else {
			c.metrics.RecordMoveAttempt(natsutil.Classify(err), elapsed)
		}

		c.resolve(m, gen, err)
	})
}

// resolve applies the result of one attempt.
func (c *Coordinator) resolve(m *movement, gen uint64, err error) {
	c.mu.Lock()
	if !c.current(m, gen) {
		c.mu.Unlock()
		c.logger.Debug("stale move result ignored", "contact_id", m.state.ContactID, "error", err)

		return
	}

	if err == nil {
		delete(c.movements, m.state.ContactID)
		tracked := len(c.movements)
		state := m.state
		c.mu.Unlock()

		c.metrics.RecordMovesTracked(tracked)
		c.metrics.RecordMoveOutcome(outcomeSucceeded)
		c.logger.Info("contact moved", "contact_id", state.ContactID, "to_stage_id", state.ToStageID, "attempt", state.Attempt)
		c.emit(eventFor(types.MoveSucceeded, state, nil))

		return
	}

	if m.state.Attempt < c.cfg.MaxRetries {
		delay := c.cfg.delay(m.state.Attempt)
		m.state.Attempt++
		m.state.Timestamp = c.clock.Now()
		m.retryTimer = c.clock.AfterFunc(delay, func() { c.fireRetry(m, gen) })
		state := m.state
		c.mu.Unlock()

		c.metrics.RecordMoveRetry(delay.Seconds())
		c.logger.Warn("move failed, retry scheduled",
			"contact_id", state.ContactID,
			"retry", state.Attempt,
			"max_retries", c.cfg.MaxRetries,
			"delay", delay,
			"error", err,
		)
		c.emit(eventFor(types.MoveRetrying, state, err))

		return
	}

	contactID, from := m.state.ContactID, m.state.FromStageID
	c.mu.Unlock()

	// Revert before the movement turns Failed, so observers of HasFailed always see
	// the original stage restored.
	c.hooks.OnRevertUpdate(contactID, from)

	c.mu.Lock()
	if !c.current(m, gen) {
		c.mu.Unlock()
		return
	}
	m.state.Phase = types.MovementFailed
	m.state.Timestamp = c.clock.Now()
	m.clearTimer = c.clock.AfterFunc(c.cfg.FailureDisplay, func() { c.clearFailure(m, gen) })
	state := m.state
	c.mu.Unlock()

	c.metrics.RecordMoveOutcome(outcomeFailed)
	c.logger.Error("move failed, retries exhausted, reverted",
		"contact_id", state.ContactID,
		"from_stage_id", state.FromStageID,
		"to_stage_id", state.ToStageID,
		"attempts", state.Attempt+1,
		"error", err,
	)
	c.emit(eventFor(types.MoveFailed, state, err))
}

func (c *Coordinator) fireRetry(m *movement, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.current(m, gen) || m.state.Phase != types.MovementMoving {
		return
	}
	m.retryTimer = nil
	c.startAttemptLocked(m, gen)
}

func (c *Coordinator) clearFailure(m *movement, gen uint64) {
	c.mu.Lock()
	if !c.current(m, gen) || m.state.Phase != types.MovementFailed {
		c.mu.Unlock()
		return
	}
	delete(c.movements, m.state.ContactID)
	tracked := len(c.movements)
	state := m.state
	c.mu.Unlock()

	c.metrics.RecordMovesTracked(tracked)
	c.metrics.RecordMoveOutcome(outcomeCleared)
	c.logger.Debug("failure indicator cleared", "contact_id", state.ContactID)
	c.emit(eventFor(types.MoveCleared, state, nil))
}

func (c *Coordinator) emit(ev types.MovementEvent) {
	c.subscribers.Range(func(_ uint64, s *subscriber) bool {
		if !s.trySend(ev) {
			c.logger.Warn("movement event dropped for slow subscriber", "kind", ev.Kind.String(), "contact_id", ev.ContactID)
		}

		return true
	})
}

func eventFor(kind types.MovementEventKind, s types.MovementState, err error) types.MovementEvent {
	return types.MovementEvent{
		Kind:        kind,
		ContactID:   s.ContactID,
		FromStageID: s.FromStageID,
		ToStageID:   s.ToStageID,
		Attempt:     s.Attempt,
		Err:         err,
	}
}
