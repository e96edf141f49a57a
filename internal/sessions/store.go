package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/laminate-navigator/api/internal/domain"
)

// DefaultTTL bounds how long an idle session survives between sweeps.
const DefaultTTL = 30 * time.Minute

// ErrSessionNotFound indicates the requested session does not exist or expired.
var ErrSessionNotFound = errors.New("sessions: not found")

// Options parameterise the in-memory store.
type Options struct {
	// TTL is the idle lifetime of a session; zero selects DefaultTTL.
	TTL time.Duration
	// MaxColors caps the number of page cursors kept per session. When the
	// cap is exceeded the least recently accessed color is evicted, except
	// the session's current color. Zero disables eviction.
	MaxColors int
	Clock     func() time.Time
}

type session struct {
	mu       sync.Mutex
	state    *domain.ConversationState
	lastSeen time.Time
}

// Store keeps conversation state in memory for the lifetime of a session.
// Turns for the same session are serialised through a per-session mutex, so
// page cursors are never advanced concurrently.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session

	ttl       time.Duration
	maxColors int
	clock     func() time.Time
}

// NewStore constructs an empty session store.
func NewStore(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		sessions:  make(map[string]*session),
		ttl:       ttl,
		maxColors: opts.MaxColors,
		clock:     func() time.Time { return clock().UTC() },
	}
}

// Create registers a new empty session and returns its identifier.
func (s *Store) Create() string {
	id := ulid.Make().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &session{
		state:    domain.NewConversationState(),
		lastSeen: s.clock(),
	}
	return id
}

// Turn runs fn against the session's state under the per-session lock. The
// callback owns the state for the duration of the call; no other turn for the
// same session can interleave with it. After fn returns, stale page cursors
// beyond the configured cap are evicted.
func (s *Store) Turn(ctx context.Context, sessionID string, fn func(state *domain.ConversationState) error) error {
	if fn == nil {
		return errors.New("sessions: turn callback is required")
	}
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	sess.lastSeen = s.clock()

	if err := fn(sess.state); err != nil {
		return err
	}

	s.evictPages(sess.state)
	return nil
}

// Reset clears all state for the session unconditionally.
func (s *Store) Reset(sessionID string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.state.Reset()
	sess.lastSeen = s.clock()
	return nil
}

// Delete removes the session entirely.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// CleanupExpired removes sessions idle past the TTL and reports how many were
// dropped. It is intended to be driven by a janitor loop in the host process.
func (s *Store) CleanupExpired(now time.Time) int {
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) < s.ttl {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	return removed
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) lookup(sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// evictPages drops the least recently accessed page cursors once the session
// exceeds the color cap. The current color is never evicted: the next
// "show more" turn must keep its position.
func (s *Store) evictPages(state *domain.ConversationState) {
	if s.maxColors <= 0 || state == nil {
		return
	}
	for len(state.Pages) > s.maxColors {
		oldestKey := ""
		var oldestAccess time.Time
		for key, page := range state.Pages {
			if key == state.LastColorKey {
				continue
			}
			if oldestKey == "" || page.LastAccess.Before(oldestAccess) {
				oldestKey = key
				oldestAccess = page.LastAccess
			}
		}
		if oldestKey == "" {
			return
		}
		delete(state.Pages, oldestKey)
	}
}
