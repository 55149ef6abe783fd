package movement

import (
	"sync"

	"github.com/arloliu/leadflow/types"
)

const subscriberBuffer = 32

// subscriber receives movement events without ever blocking the coordinator.
type subscriber struct {
	ch     chan types.MovementEvent
	mu     sync.Mutex
	closed bool
}

// trySend delivers ev if there is buffer room. It reports false when the event was dropped.
func (s *subscriber) trySend(ev types.MovementEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}

	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
