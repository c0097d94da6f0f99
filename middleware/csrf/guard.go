package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"time"
)

var (
	ErrTokenMismatch = errors.New("CSRF token mismatch")
	ErrTokenMissing  = errors.New("CSRF token missing")
	ErrNoSession     = errors.New("CSRF token requires a session")
)

// DefaultTokenLength is the default length for CSRF tokens
const DefaultTokenLength = 32

// Storage interface for storing and retrieving CSRF tokens
type Storage interface {
	Get(key string) (string, error)
	Set(key string, value string, expiration time.Duration) error
	Delete(key string) error
}

// Guard hands out one CSRF token per session and verifies submissions
// against it. TokenFor is idempotent: every call for the same live session
// returns the same token, so multiple forms on one page all carry the same
// value.
type Guard struct {
	storage     Storage
	tokenLength int
	expiration  time.Duration
}

// GuardOption customizes guard construction.
type GuardOption func(*Guard)

// WithStorage swaps the token store, e.g. for shared backing storage.
func WithStorage(s Storage) GuardOption {
	return func(g *Guard) {
		if s != nil {
			g.storage = s
		}
	}
}

// WithExpiration bounds how long an issued token stays valid.
func WithExpiration(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.expiration = d
		}
	}
}

// NewGuard returns a guard over an in-process store by default.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		storage:     NewMemoryStorage(),
		tokenLength: DefaultTokenLength,
		expiration:  24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// TokenFor returns the session's token, minting one on first use.
func (g *Guard) TokenFor(sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrNoSession
	}

	key := storageKey(sessionID)
	if token, err := g.storage.Get(key); err == nil && token != "" {
		return token, nil
	}

	token, err := generateToken(g.tokenLength)
	if err != nil {
		return "", err
	}

	if err := g.storage.Set(key, token, g.expiration); err != nil {
		return "", err
	}

	return token, nil
}

// Verify reports whether presented matches the session's token. Empty
// submissions never match, and the comparison is constant time. A token
// never verifies against any other session.
func (g *Guard) Verify(sessionID, presented string) bool {
	if sessionID == "" || presented == "" {
		return false
	}

	expected, err := g.storage.Get(storageKey(sessionID))
	if err != nil || expected == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// Drop discards the session's token, e.g. on logout.
func (g *Guard) Drop(sessionID string) {
	if sessionID == "" {
		return
	}
	_ = g.storage.Delete(storageKey(sessionID))
}

func storageKey(sessionID string) string {
	return "csrf_" + sessionID
}

// generateToken generates a cryptographically secure random token
func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStorage is a mutex-guarded in-process token store. Expired entries
// are dropped lazily on read.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", nil
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		_ = m.Delete(key)
		return "", nil
	}

	return entry.value, nil
}

func (m *MemoryStorage) Set(key, value string, expiration time.Duration) error {
	entry := memoryEntry{value: value}
	if expiration > 0 {
		entry.expiresAt = time.Now().Add(expiration)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

var _ Storage = (*MemoryStorage)(nil)
