package hub

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionClosed is returned by Next once the session has been closed.
var ErrSessionClosed = errors.New("session closed")

// Disconnect reasons.
const (
	ReasonNormal   = "normal"
	ReasonOverflow = "overflow"
	ReasonShutdown = "shutdown"
	ReasonError    = "error"
)

// Session is one viewer's outbound queue. The queue is bounded; what happens
// on overflow depends on the hub's policy.
type Session struct {
	ID          string
	ConnectedAt time.Time

	dropOldest bool
	capacity   int
	onDrop     func()

	mu  sync.Mutex
	buf [][]byte
	// preloaded counts the undelivered welcome and snapshot messages at the
	// head of buf. They are never evicted and do not count toward capacity.
	preloaded int
	closed    bool
	reason  string
	dropped int

	notify chan struct{}
	done   chan struct{}
}

func newSession(id string, capacity int, dropOldest bool, onDrop func()) *Session {
	return &Session{
		ID:          id,
		ConnectedAt: time.Now(),
		dropOldest:  dropOldest,
		capacity:    capacity,
		onDrop:      onDrop,
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// preload queues the welcome and snapshot ahead of any live event. It is not
// subject to the capacity bound. Called once, before any enqueue.
func (s *Session) preload(msgs [][]byte) {
	s.mu.Lock()
	s.buf = append(s.buf, msgs...)
	s.preloaded += len(msgs)
	s.mu.Unlock()
	s.signal()
}

// enqueue adds msg without blocking. It reports false when the session is
// closed, including when this call closed it on overflow.
func (s *Session) enqueue(msg []byte) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if len(s.buf)-s.preloaded >= s.capacity {
		if !s.dropOldest {
			s.closeLocked(ReasonOverflow)
			s.mu.Unlock()
			return false
		}
		s.buf = append(s.buf[:s.preloaded], s.buf[s.preloaded+1:]...)
		s.dropped++
		if s.onDrop != nil {
			s.onDrop()
		}
	}
	s.buf = append(s.buf, msg)
	s.mu.Unlock()
	s.signal()
	return true
}

func (s *Session) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a message is queued, the session closes or ctx ends.
func (s *Session) Next(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrSessionClosed
		}
		if len(s.buf) > 0 {
			msg := s.buf[0]
			s.buf[0] = nil
			s.buf = s.buf[1:]
			if s.preloaded > 0 {
				s.preloaded--
			}
			s.mu.Unlock()
			return msg, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.done }

// Reason reports why the session closed, or "" while open.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Dropped reports how many messages were discarded on overflow.
func (s *Session) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Pending reports the number of queued messages.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

func (s *Session) close(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(reason)
}

func (s *Session) closeLocked(reason string) bool {
	if s.closed {
		return false
	}
	s.closed = true
	s.reason = reason
	s.buf = nil
	s.preloaded = 0
	close(s.done)
	return true
}
