package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"castellan/internal/auth/models"
	"castellan/internal/proto"
)

// terminalRetention keeps resolved sessions around long enough for stragglers
// to observe "invalid session state" instead of "unknown session" before the
// sweeper removes them.
const terminalRetention = 10 * time.Minute

// InMemory keeps negotiation sessions in memory, keyed by session identifier.
// Many negotiations may run concurrently; each session serializes its own
// transitions so at most one step is in flight per identifier. A second
// submission racing an identifier observes the terminal state and fails with
// InvalidSessionState rather than double-issuing.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*slot
	window   time.Duration
	now      func() time.Time
}

type slot struct {
	mu   sync.Mutex
	sess models.Session
}

// Option configures the store.
type Option func(*InMemory)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *InMemory) {
		s.now = now
	}
}

// NewInMemory creates a session store with the given inactivity window.
func NewInMemory(window time.Duration, opts ...Option) *InMemory {
	s := &InMemory{
		sessions: make(map[uuid.UUID]*slot),
		window:   window,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a freshly opened negotiation.
func (s *InMemory) Create(_ context.Context, sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return proto.NewOperationError(proto.OpInvalidSessionState)
	}
	s.sessions[sess.ID] = &slot{sess: sess}
	return nil
}

// Advance runs one state transition under the session's lock and returns a
// snapshot of the resulting state. It fails with InvalidSessionState when the
// identifier is unknown, the session already resolved, or the inactivity
// window elapsed; expiry transitions the record to an implicit Denied first
// so it is never retrievable as live again.
func (s *InMemory) Advance(_ context.Context, id uuid.UUID, fn func(*models.Session) error) (models.Session, error) {
	s.mu.RLock()
	sl, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return models.Session{}, proto.NewOperationError(proto.OpInvalidSessionState)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := s.now()
	if sl.sess.ExpiredAt(now, s.window) {
		sl.sess.Deny("session expired")
		return models.Session{}, proto.NewOperationError(proto.OpInvalidSessionState)
	}
	if sl.sess.IsTerminal() {
		return models.Session{}, proto.NewOperationError(proto.OpInvalidSessionState)
	}

	if err := fn(&sl.sess); err != nil {
		return models.Session{}, err
	}
	sl.sess.LastStepAt = now
	return snapshot(&sl.sess), nil
}

// Get returns a snapshot of the session state.
func (s *InMemory) Get(_ context.Context, id uuid.UUID) (models.Session, error) {
	s.mu.RLock()
	sl, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return models.Session{}, proto.NewOperationError(proto.OpInvalidSessionState)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.sess.ExpiredAt(s.now(), s.window) {
		sl.sess.Deny("session expired")
	}
	return snapshot(&sl.sess), nil
}

// Count returns the number of unresolved negotiations.
func (s *InMemory) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sl := range s.sessions {
		sl.mu.Lock()
		if sl.sess.Status == models.StatusInProgress {
			n++
		}
		sl.mu.Unlock()
	}
	return n
}

// Sweep expires idle negotiations and drops terminal records past retention.
// Returns the number of sessions expired by this pass.
func (s *InMemory) Sweep(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired := 0
	for id, sl := range s.sessions {
		sl.mu.Lock()
		if sl.sess.ExpiredAt(now, s.window) {
			sl.sess.Deny("session expired")
			expired++
		}
		drop := sl.sess.IsTerminal() && now.After(sl.sess.LastStepAt.Add(terminalRetention))
		sl.mu.Unlock()
		if drop {
			delete(s.sessions, id)
		}
	}
	return expired
}

// snapshot deep-copies the parts of a session that callers may retain.
func snapshot(sess *models.Session) models.Session {
	out := *sess
	out.Remaining = append([]proto.AuthAllowed(nil), sess.Remaining...)
	out.Satisfied = append([]proto.AuthAllowed(nil), sess.Satisfied...)
	if sess.Token != nil {
		tok := *sess.Token
		out.Token = &tok
	}
	return out
}
