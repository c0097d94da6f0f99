package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL bounds how long a session may go unused before the
// store drops it.
const DefaultSessionTTL = 12 * time.Hour

// SessionManager tracks the authenticated principal for each session and
// owns the impersonation overlay. All mutating operations go through the
// configured SessionStore so the manager itself stays stateless.
type SessionManager struct {
	store        SessionStore
	ttl          time.Duration
	now          func() time.Time
	logger       Logger
	activitySink ActivitySink
}

// SessionManagerOption customizes manager construction.
type SessionManagerOption func(*SessionManager)

// WithSessionTTL overrides the default session lifetime.
func WithSessionTTL(ttl time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithSessionLogger overrides the logger.
func WithSessionLogger(logger Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSessionActivitySink sets the sink used to publish session events.
func WithSessionActivitySink(sink ActivitySink) SessionManagerOption {
	return func(m *SessionManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// NewSessionManager returns a manager over the given store.
func NewSessionManager(store SessionStore, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		store:        store,
		ttl:          DefaultSessionTTL,
		now:          time.Now,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Login establishes a fresh session for the principal. Any overlay state
// from a previous life of the session id is gone by construction since the
// id is newly minted.
func (m *SessionManager) Login(ctx context.Context, principal PrincipalRef) (*Session, error) {
	if principal.IsZero() {
		return nil, ErrUnknownPrincipal
	}

	now := m.now()
	session := &Session{
		ID:        uuid.New().String(),
		Principal: principal,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.store.Put(session)

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: principal.ID.String(), Type: "user"},
		UserID:    principal.ID.String(),
	})

	return session.clone(), nil
}

// Logout destroys all session state unconditionally, including any
// impersonation overlay. It is idempotent: logging out an unknown session
// succeeds quietly.
func (m *SessionManager) Logout(ctx context.Context, sessionID string) error {
	session, ok := m.store.Get(sessionID)
	m.store.Delete(sessionID)

	if ok {
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLogout,
			Actor:     ActorRef{ID: session.Principal.ID.String(), Type: "user"},
			UserID:    session.Principal.ID.String(),
		})
	}

	return nil
}

// Current returns the live session or ErrNotAuthenticated.
func (m *SessionManager) Current(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotAuthenticated
	}

	session, ok := m.store.Get(sessionID)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	return session, nil
}

// BeginImpersonation applies an overlay. On the first overlay the current
// principal is snapshotted into Original; later overlays replace only the
// acting principal, so the way back always leads to the pre-first-overlay
// identity.
func (m *SessionManager) BeginImpersonation(ctx context.Context, sessionID string, target PrincipalRef) (*Session, error) {
	if target.IsZero() {
		return nil, ErrUnknownPrincipal
	}

	session, ok := m.store.Get(sessionID)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if session.Original == nil {
		original := session.Principal
		session.Original = &original
	}
	session.Principal = target

	m.store.Put(session)

	m.recordActivity(ctx, ActivityEvent{
		EventType:    ActivityEventImpersonationStarted,
		Actor:        ActorRef{ID: session.Original.ID.String(), Type: "admin"},
		UserID:       target.ID.String(),
		RelatedTable: "users",
		RelatedID:    target.ID.String(),
	})

	return session.clone(), nil
}

// EndImpersonation restores the original principal and clears the
// overlay. It is a no-op for sessions that are not impersonating.
func (m *SessionManager) EndImpersonation(ctx context.Context, sessionID string) (*Session, error) {
	session, ok := m.store.Get(sessionID)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if session.Original == nil {
		return session, nil
	}

	impersonated := session.Principal
	session.Principal = *session.Original
	session.Original = nil

	m.store.Put(session)

	m.recordActivity(ctx, ActivityEvent{
		EventType:    ActivityEventImpersonationEnded,
		Actor:        ActorRef{ID: session.Principal.ID.String(), Type: "admin"},
		UserID:       impersonated.ID.String(),
		RelatedTable: "users",
		RelatedID:    impersonated.ID.String(),
	})

	return session.clone(), nil
}

func (m *SessionManager) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}

	sink := normalizeActivitySink(m.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("session manager activity sink error: %v", err)
	}
}
