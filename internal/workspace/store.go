package workspace

import (
	"errors"
	"log/slog"
	"time"

	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

const (
	DefaultMaxSessions = 256
	DefaultSessionTTL  = 2 * time.Hour
)

// Store keeps sessions in memory. The least recently used session is
// evicted when the store is full; idle sessions expire after the TTL.
type Store struct {
	engine   *core.Engine
	sessions *expirable.LRU[string, *Session]
}

// NewStore creates a store. Non-positive limits take the defaults.
func NewStore(engine *core.Engine, maxSessions int, ttl time.Duration) *Store {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	onEvict := func(id string, s *Session) {
		slog.Debug("session evicted", "session_id", id, "created_at", s.CreatedAt)
	}

	return &Store{
		engine:   engine,
		sessions: expirable.NewLRU[string, *Session](maxSessions, onEvict, ttl),
	}
}

// Create starts a new empty session.
func (st *Store) Create() *Session {
	s := NewSession(uuid.NewString(), st.engine)
	st.sessions.Add(s.ID, s)
	return s
}

// Get returns the session for id and refreshes its expiry.
func (st *Store) Get(id string) (*Session, error) {
	s, ok := st.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	// Re-adding resets the TTL.
	st.sessions.Add(id, s)
	return s, nil
}

// Delete removes the session for id.
func (st *Store) Delete(id string) error {
	if !st.sessions.Remove(id) {
		return ErrSessionNotFound
	}
	return nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	return st.sessions.Len()
}

// Purge removes every session.
func (st *Store) Purge() {
	st.sessions.Purge()
}
