package auth

import (
	"sync"
	"time"
)

// SessionStore abstracts session persistence so sessions can live in
// process memory (default) or in shared backing storage. Implementations
// must be safe for concurrent use.
type SessionStore interface {
	// Get retrieves a session by id. The bool is false when the session
	// does not exist or has expired.
	Get(id string) (*Session, bool)
	// Put creates or replaces the session under its id.
	Put(session *Session)
	// Delete removes a session. Deleting an absent session is a no-op.
	Delete(id string)
}

// MemorySessionStore keeps sessions in a mutex-guarded map. Expired
// entries are dropped lazily on read.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemorySessionStore returns an empty in-process store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (m *MemorySessionStore) WithClock(clock func() time.Time) *MemorySessionStore {
	if clock != nil {
		m.now = clock
	}
	return m
}

func (m *MemorySessionStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if !session.ExpiresAt.IsZero() && !m.now().Before(session.ExpiresAt) {
		m.Delete(id)
		return nil, false
	}

	return session.clone(), true
}

func (m *MemorySessionStore) Put(session *Session) {
	if session == nil || session.ID == "" {
		return
	}
	m.mu.Lock()
	m.sessions[session.ID] = session.clone()
	m.mu.Unlock()
}

func (m *MemorySessionStore) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

var _ SessionStore = (*MemorySessionStore)(nil)
