package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventLogout               ActivityEventType = "auth.logout"
	ActivityEventResetRequested       ActivityEventType = "auth.password.reset_requested"
	ActivityEventResetCompleted       ActivityEventType = "auth.password.reset_completed"
	ActivityEventImpersonationIssued  ActivityEventType = "auth.impersonation.issued"
	ActivityEventImpersonationStarted ActivityEventType = "auth.impersonation.started"
	ActivityEventImpersonationEnded   ActivityEventType = "auth.impersonation.ended"
	ActivityEventImpersonationFailure ActivityEventType = "auth.impersonation.failure"
)

// ActorRef identifies who or what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
// RelatedTable/RelatedID point at the row the action touched, mirroring the
// portal's append-only activity_log schema.
type ActivityEvent struct {
	EventType    ActivityEventType
	Actor        ActorRef
	UserID       string
	Description  string
	RelatedTable string
	RelatedID    string
	Metadata     map[string]any
	OccurredAt   time.Time
}

// ActivitySink consumes activity events for auditing purposes. Sinks are
// best-effort: callers log failures and carry on.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
