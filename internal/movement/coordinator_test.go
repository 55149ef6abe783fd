package movement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	leadflowtest "github.com/arloliu/leadflow/testing"
	"github.com/arloliu/leadflow/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errPersist = errors.New("update contact failed")

type updateCall struct {
	contactID string
	stageID   string
	at        time.Time
}

// stubUpdater records calls with the fake clock time and answers from a script.
type stubUpdater struct {
	clock  *clockwork.FakeClock
	script func(call int) error
	gate   chan struct{}

	mu    sync.Mutex
	calls []updateCall
}

func (s *stubUpdater) UpdateContactStage(ctx context.Context, contactID, stageID string) error {
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, updateCall{contactID: contactID, stageID: stageID, at: s.clock.Now()})
	s.mu.Unlock()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.script == nil {
		return nil
	}

	return s.script(n)
}

func (s *stubUpdater) Calls() []updateCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]updateCall(nil), s.calls...)
}

func (s *stubUpdater) waitCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(s.Calls()) == n }, 2*time.Second, time.Millisecond,
		"expected %d persistence calls", n)
}

func failTimes(n int) func(int) error {
	return func(call int) error {
		if call < n {
			return fmt.Errorf("attempt %d: %w", call, errPersist)
		}

		return nil
	}
}

func alwaysFail(int) error { return errPersist }

// hookRecorder captures callbacks in order.
type hookRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *hookRecorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *hookRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

func (r *hookRecorder) hooks() types.MovementHooks {
	return types.MovementHooks{
		OnOptimisticUpdate: func(id, stage string) { r.add("optimistic:" + id + ":" + stage) },
		OnRevertUpdate:     func(id, stage string) { r.add("revert:" + id + ":" + stage) },
	}
}

type fixture struct {
	coord   *Coordinator
	clock   *clockwork.FakeClock
	updater *stubUpdater
	hooks   *hookRecorder
}

func newFixture(t *testing.T, updater *stubUpdater, opts ...Option) *fixture {
	t.Helper()

	return newFixtureWithConfig(t, DefaultConfig(), updater, opts...)
}

func noRetries() Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 0

	return cfg
}

func newFixtureWithConfig(t *testing.T, cfg Config, updater *stubUpdater, opts ...Option) *fixture {
	t.Helper()

	fc := clockwork.NewFakeClock()
	updater.clock = fc
	rec := &hookRecorder{}

	opts = append([]Option{
		WithClock(fc),
		WithHooks(rec.hooks()),
		WithLogger(leadflowtest.NewTestLogger(t)),
	}, opts...)

	coord, err := New(cfg, updater, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = coord.Close(ctx)
	})

	return &fixture{coord: coord, clock: fc, updater: updater, hooks: rec}
}

// advance waits for a pending timer and moves the fake clock forward by d.
func (f *fixture) advance(t *testing.T, d time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(d)
}

func waitEvent(t *testing.T, events <-chan types.MovementEvent, kind types.MovementEventKind) types.MovementEvent {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event channel closed before %s", kind)
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for event", "kind=%s", kind)
		}
	}
}

func TestCoordinator_SuccessFirstAttempt(t *testing.T) {
	f := newFixture(t, &stubUpdater{})
	events, unsubscribe := f.coord.Subscribe()
	defer unsubscribe()

	require.True(t, f.coord.MoveContact("c1", "s2", "s1"))

	ev := waitEvent(t, events, types.MoveSucceeded)
	require.Equal(t, "s2", ev.ToStageID)
	require.Equal(t, 0, ev.Attempt)

	require.Equal(t, []string{"optimistic:c1:s2"}, f.hooks.Calls())
	require.False(t, f.coord.IsMoving("c1"))
	require.False(t, f.coord.HasFailed("c1"))
	_, tracked := f.coord.Snapshot("c1")
	require.False(t, tracked)

	calls := f.updater.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "c1", calls[0].contactID)
	require.Equal(t, "s2", calls[0].stageID)
}

func TestCoordinator_OptimisticUpdateIsSynchronous(t *testing.T) {
	f := newFixture(t, &stubUpdater{gate: make(chan struct{})})

	f.coord.MoveContact("c1", "s2", "s1")

	// The callback already ran even though persistence is still blocked.
	require.Equal(t, []string{"optimistic:c1:s2"}, f.hooks.Calls())
	require.True(t, f.coord.IsMoving("c1"))

	state, ok := f.coord.Snapshot("c1")
	require.True(t, ok)
	require.Equal(t, types.MovementMoving, state.Phase)
	require.Equal(t, "s1", state.FromStageID)
	require.Equal(t, f.clock.Now(), state.Timestamp)

	close(f.updater.gate)
	require.Eventually(t, func() bool { return !f.coord.IsMoving("c1") }, 2*time.Second, time.Millisecond)
}

func TestCoordinator_AtMostOneInFlight(t *testing.T) {
	f := newFixture(t, &stubUpdater{gate: make(chan struct{})})
	events, unsubscribe := f.coord.Subscribe()
	defer unsubscribe()

	require.True(t, f.coord.MoveContact("c1", "s2", "s1"))
	require.False(t, f.coord.MoveContact("c1", "s3", "s1"))

	ev := waitEvent(t, events, types.MoveDropped)
	require.Equal(t, "s3", ev.ToStageID)

	close(f.updater.gate)
	waitEvent(t, events, types.MoveSucceeded)

	calls := f.updater.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "s2", calls[0].stageID)
	require.Equal(t, []string{"optimistic:c1:s2"}, f.hooks.Calls())
}

func TestCoordinator_IndependentContacts(t *testing.T) {
	f := newFixture(t, &stubUpdater{gate: make(chan struct{})})

	require.True(t, f.coord.MoveContact("c1", "s2", "s1"))
	require.True(t, f.coord.MoveContact("c2", "s3", "s1"))
	f.updater.waitCalls(t, 2)

	require.True(t, f.coord.IsMoving("c1"))
	require.True(t, f.coord.IsMoving("c2"))

	close(f.updater.gate)
	require.Eventually(t, func() bool {
		return !f.coord.IsMoving("c1") && !f.coord.IsMoving("c2")
	}, 2*time.Second, time.Millisecond)
}

func TestCoordinator_RetryBackoffSequence(t *testing.T) {
	f := newFixture(t, &stubUpdater{script: failTimes(3)})
	events, unsubscribe := f.coord.Subscribe()
	defer unsubscribe()

	f.coord.MoveContact("c1", "s2", "s1")

	f.updater.waitCalls(t, 1)
	require.Equal(t, 1, waitEvent(t, events, types.MoveRetrying).Attempt)
	f.advance(t, 1*time.Second)

	f.updater.waitCalls(t, 2)
	require.Equal(t, 2, waitEvent(t, events, types.MoveRetrying).Attempt)
	f.advance(t, 2*time.Second)

	f.updater.waitCalls(t, 3)
	retry := waitEvent(t, events, types.MoveRetrying)
	require.Equal(t, 3, retry.Attempt)
	require.ErrorIs(t, retry.Err, errPersist)
	f.advance(t, 4*time.Second)

	success := waitEvent(t, events, types.MoveSucceeded)
	require.Equal(t, 3, success.Attempt)

	calls := f.updater.Calls()
	require.Len(t, calls, 4)
	var gaps []time.Duration
	for i := 1; i < len(calls); i++ {
		gaps = append(gaps, calls[i].at.Sub(calls[i-1].at))
	}
	require.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, gaps)

	// Never reverted.
	require.Equal(t, []string{"optimistic:c1:s2"}, f.hooks.Calls())
	require.False(t, f.coord.HasFailed("c1"))
}

func TestCoordinator_NoEarlyRetry(t *testing.T) {
	f := newFixture(t, &stubUpdater{script: failTimes(1)})

	f.coord.MoveContact("c1", "s2", "s1")
	f.updater.waitCalls(t, 1)

	f.advance(t, 999*time.Millisecond)
	require.Never(t, func() bool { return len(f.updater.Calls()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	require.True(t, f.coord.IsMoving("c1"))

	f.clock.Advance(time.Millisecond)
	f.updater.waitCalls(t, 2)
}

func TestCoordinator_ExhaustionReverts(t *testing.T) {
	updater := &stubUpdater{script: alwaysFail}
	f := newFixture(t, updater)
	events, unsubscribe := f.coord.Subscribe()
	defer unsubscribe()

	var failedSeenAtRevert bool
	var mu sync.Mutex
	f.coord.hooks.OnRevertUpdate = func(id, stage string) {
		mu.Lock()
		defer mu.Unlock()
		failedSeenAtRevert = f.coord.HasFailed(id)
		f.hooks.add("revert:" + id + ":" + stage)
	}

	f.coord.MoveContact("c1", "s2", "s1")
	for _, d := range []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second} {
		waitEvent(t, events, types.MoveRetrying)
		f.advance(t, d)
	}

	failed := waitEvent(t, events, types.MoveFailed)
	require.ErrorIs(t, failed.Err, errPersist)
	require.Equal(t, "s1", failed.FromStageID)

	require.Len(t, updater.Calls(), 4, "one initial attempt plus three retries")
	require.Equal(t, []string{"optimistic:c1:s2", "revert:c1:s1"}, f.hooks.Calls())
	require.True(t, f.coord.HasFailed("c1"))
	require.False(t, f.coord.IsMoving("c1"))

	mu.Lock()
	require.False(t, failedSeenAtRevert, "revert must happen before the movement turns failed")
	mu.Unlock()

	state, ok := f.coord.Snapshot("c1")
	require.True(t, ok)
	require.Equal(t, types.MovementFailed, state.Phase)
	require.Equal(t, 3, state.Attempt)

	// Failure indicator clears after 5s.
	f.advance(t, 4999*time.Millisecond)
	require.True(t, f.coord.HasFailed("c1"))
	f.clock.Advance(time.Millisecond)

	waitEvent(t, events, types.MoveCleared)
	require.False(t, f.coord.HasFailed("c1"))
	require.Len(t, updater.Calls(), 4)
	require.Len(t, f.hooks.Calls(), 2, "auto-clear does not revert again")
}

func TestCoordinator_CancelUntrackedIsNoop(t *testing.T) {
	f := newFixture(t, &stubUpdater{})

	require.NotPanics(t, func() {
		require.False(t, f.coord.CancelMove("nobody"))
	})
	require.Empty(t, f.hooks.Calls())
}

func TestCoordinator_CancelDuringBackoff(t *testing.T) {
	f := newFixture(t, &stubUpdater{script: alwaysFail})
	events, unsubscribe := f.coord.Subscribe()
	defer unsubscribe()

	f.coord.MoveContact("c1", "s2", "s1")
	waitEvent(t, events, types.MoveRetrying)

	require.True(t, f.coord.CancelMove("c1"))
	waitEvent(t, events, types.MoveCancelled)

	require.Equal(t, []string{"optimistic:c1:s2", "revert:c1:s1"}, f.hooks.Calls())
	require.False(t, f.coord.IsMoving("c1"))

	// The retry timer is gone.
	f.clock.Advance(10 * time.Second)
	require.Never(t, func() bool { return len(f.updater.Calls()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	// Cancel twice is harmless.
	require.False(t, f.coord.CancelMove("c1"))
}

func TestCoordinator_CancelDuringInFlightIgnoresResult(t *testing.T) {
	f := newFixture(t, &stubUpdater{gate: make(chan struct{})})
	events, unsubscribe := f.coord.Subscribe()
	defer unsubscribe()

	f.coord.MoveContact("c1", "s2", "s1")
	f.updater.waitCalls(t, 1)

	require.True(t, f.coord.CancelMove("c1"))
	close(f.updater.gate)

	waitEvent(t, events, types.MoveCancelled)
	require.Never(t, func() bool {
		select {
		case ev := <-events:
			return ev.Kind == types.MoveSucceeded
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	require.Equal(t, []string{"optimistic:c1:s2", "revert:c1:s1"}, f.hooks.Calls())

	// A new move after cancel is accepted.
	require.True(t, f.coord.MoveContact("c1", "s3", "s1"))
	f.updater.waitCalls(t, 2)
}

func TestCoordinator_CancelDuringOptimisticUpdate(t *testing.T) {
	t.Run("from another goroutine", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		rec := &hookRecorder{}
		hooks := rec.hooks()
		optimistic := hooks.OnOptimisticUpdate
		hooks.OnOptimisticUpdate = func(id, stage string) {
			close(entered)
			<-release
			optimistic(id, stage)
		}
		f := newFixture(t, &stubUpdater{}, WithHooks(hooks))

		done := make(chan bool)
		go func() { done <- f.coord.MoveContact("c1", "s2", "s1") }()

		<-entered
		require.True(t, f.coord.CancelMove("c1"))
		require.Empty(t, rec.Calls(), "revert must wait for the optimistic callback")

		close(release)
		require.True(t, <-done)
		require.Equal(t, []string{"optimistic:c1:s2", "revert:c1:s1"}, rec.Calls())
		require.False(t, f.coord.IsMoving("c1"))
		require.Never(t, func() bool { return len(f.updater.Calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("from inside the callback", func(t *testing.T) {
		rec := &hookRecorder{}
		hooks := rec.hooks()
		var f *fixture
		hooks.OnOptimisticUpdate = func(id, stage string) {
			rec.add("optimistic:" + id + ":" + stage)
			require.True(t, f.coord.CancelMove(id))
		}
		f = newFixture(t, &stubUpdater{}, WithHooks(hooks))

		require.True(t, f.coord.MoveContact("c1", "s2", "s1"))
		require.Equal(t, []string{"optimistic:c1:s2", "revert:c1:s1"}, rec.Calls())
		_, tracked := f.coord.Snapshot("c1")
		require.False(t, tracked)
		require.Empty(t, f.updater.Calls())
	})
}

func TestCoordinator_CancelFailedMove(t *testing.T) {
	f := newFixtureWithConfig(t, noRetries(), &stubUpdater{script: alwaysFail})

	f.coord.MoveContact("c1", "s2", "s1")
	require.Eventually(t, func() bool { return f.coord.HasFailed("c1") }, 2*time.Second, time.Millisecond)

	require.True(t, f.coord.CancelMove("c1"))
	require.False(t, f.coord.HasFailed("c1"))
	require.Equal(t, []string{"optimistic:c1:s2", "revert:c1:s1", "revert:c1:s1"}, f.hooks.Calls())

	// The auto-clear timer was stopped with the movement.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, f.clock.BlockUntilContext(ctx, 1))
}

func TestCoordinator_RetryFailedMove(t *testing.T) {
	t.Run("resumes at stored attempt and succeeds", func(t *testing.T) {
		updater := &stubUpdater{script: failTimes(4)}
		f := newFixture(t, updater)
		events, unsubscribe := f.coord.Subscribe()
		defer unsubscribe()

		f.coord.MoveContact("c1", "s2", "s1")
		for _, d := range []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second} {
			waitEvent(t, events, types.MoveRetrying)
			f.advance(t, d)
		}
		waitEvent(t, events, types.MoveFailed)

		require.True(t, f.coord.RetryFailedMove("c1"))
		started := waitEvent(t, events, types.MoveStarted)
		require.Equal(t, 3, started.Attempt)

		waitEvent(t, events, types.MoveSucceeded)
		require.Len(t, updater.Calls(), 5)
		require.Equal(t, []string{"optimistic:c1:s2", "revert:c1:s1", "optimistic:c1:s2"}, f.hooks.Calls())
		require.False(t, f.coord.HasFailed("c1"))
		require.False(t, f.coord.IsMoving("c1"))
	})

	t.Run("one more failure returns to failed without new retries", func(t *testing.T) {
		f := newFixtureWithConfig(t, noRetries(), &stubUpdater{script: alwaysFail})
		events, unsubscribe := f.coord.Subscribe()
		defer unsubscribe()

		f.coord.MoveContact("c1", "s2", "s1")
		waitEvent(t, events, types.MoveFailed)

		require.True(t, f.coord.RetryFailedMove("c1"))
		waitEvent(t, events, types.MoveFailed)

		require.Len(t, f.updater.Calls(), 2)
		require.True(t, f.coord.HasFailed("c1"))
		require.Equal(t, []string{
			"optimistic:c1:s2", "revert:c1:s1",
			"optimistic:c1:s2", "revert:c1:s1",
		}, f.hooks.Calls())

		// Only the latest failure's clear timer is armed.
		f.advance(t, 5*time.Second)
		waitEvent(t, events, types.MoveCleared)
	})

	t.Run("rejected unless failed", func(t *testing.T) {
		f := newFixture(t, &stubUpdater{gate: make(chan struct{})})

		require.False(t, f.coord.RetryFailedMove("c1"))

		f.coord.MoveContact("c1", "s2", "s1")
		require.False(t, f.coord.RetryFailedMove("c1"))

		close(f.updater.gate)
	})
}

func TestCoordinator_MoveWhileFailedIsDropped(t *testing.T) {
	f := newFixtureWithConfig(t, noRetries(), &stubUpdater{script: alwaysFail})

	f.coord.MoveContact("c1", "s2", "s1")
	require.Eventually(t, func() bool { return f.coord.HasFailed("c1") }, 2*time.Second, time.Millisecond)

	require.False(t, f.coord.MoveContact("c1", "s3", "s1"))
	require.Len(t, f.updater.Calls(), 1)
}

func TestCoordinator_OperationTimeout(t *testing.T) {
	cfg := noRetries()
	cfg.OperationTimeout = 20 * time.Millisecond
	f := newFixtureWithConfig(t, cfg, &stubUpdater{gate: make(chan struct{})})
	events, unsubscribe := f.coord.Subscribe()
	defer unsubscribe()

	f.coord.MoveContact("c1", "s2", "s1")

	failed := waitEvent(t, events, types.MoveFailed)
	require.ErrorIs(t, failed.Err, context.DeadlineExceeded)
}

func TestCoordinator_Close(t *testing.T) {
	f := newFixture(t, &stubUpdater{script: alwaysFail})
	events, _ := f.coord.Subscribe()

	f.coord.MoveContact("c1", "s2", "s1")
	waitEvent(t, events, types.MoveRetrying)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.coord.Close(ctx))

	// States discarded without callbacks, timers stopped.
	require.False(t, f.coord.IsMoving("c1"))
	require.Equal(t, []string{"optimistic:c1:s2"}, f.hooks.Calls())
	f.clock.Advance(time.Minute)
	require.Len(t, f.updater.Calls(), 1)

	// Subscriber channel is closed after draining.
	for range events {
	}

	require.False(t, f.coord.MoveContact("c2", "s2", "s1"))
	require.ErrorIs(t, f.coord.Close(ctx), types.ErrCoordinatorClosed)

	late, _ := f.coord.Subscribe()
	_, open := <-late
	require.False(t, open)
}

func TestCoordinator_CloseAbortsInFlightCalls(t *testing.T) {
	updater := &stubUpdater{gate: make(chan struct{})}
	f := newFixture(t, updater)

	f.coord.MoveContact("c1", "s2", "s1")
	updater.waitCalls(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.coord.Close(ctx))
	require.Equal(t, []string{"optimistic:c1:s2"}, f.hooks.Calls())
}

func TestCoordinator_DropLogsAtDebug(t *testing.T) {
	logger := leadflowtest.NewRecordingLogger()
	f := newFixture(t, &stubUpdater{gate: make(chan struct{})}, WithLogger(logger))

	f.coord.MoveContact("c1", "s2", "s1")
	f.coord.MoveContact("c1", "s2", "s1")

	require.True(t, logger.Has("DEBUG", "move dropped, contact already tracked"))
	close(f.updater.gate)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(DefaultConfig(), nil)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	cfg := DefaultConfig()
	cfg.RetryDelays = nil
	_, err = New(cfg, &stubUpdater{})
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}
