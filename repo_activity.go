package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunActivitySink appends activity events to the portal's activity_log
// table. Failures surface as errors to the caller, who is expected to log
// and move on; an audit hiccup never aborts the action it describes.
type BunActivitySink struct {
	db     *bun.DB
	logger Logger
}

// NewBunActivitySink returns a sink writing to db.
func NewBunActivitySink(db *bun.DB, logger Logger) *BunActivitySink {
	if logger == nil {
		logger = defLogger{}
	}
	return &BunActivitySink{db: db, logger: logger}
}

// Record implements ActivitySink.
func (s *BunActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	record := &ActivityRecord{
		ID:           uuid.New(),
		ActorID:      event.Actor.ID,
		Action:       string(event.EventType),
		Description:  event.Description,
		RelatedTable: event.RelatedTable,
		RelatedID:    event.RelatedID,
	}

	if record.Description == "" {
		record.Description = describeActivity(event)
	}

	if !event.OccurredAt.IsZero() {
		occurredAt := event.OccurredAt
		record.CreatedAt = &occurredAt
	}

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return wrapStoreErr(err, "failed to append activity record")
	}

	return nil
}

func describeActivity(event ActivityEvent) string {
	switch event.EventType {
	case ActivityEventLoginSuccess:
		return "signed in"
	case ActivityEventLoginFailure:
		return "failed sign in attempt"
	case ActivityEventLogout:
		return "signed out"
	case ActivityEventResetRequested:
		return "requested a password reset link"
	case ActivityEventResetCompleted:
		return "completed a password reset"
	case ActivityEventImpersonationIssued:
		return "issued an impersonation link"
	case ActivityEventImpersonationStarted:
		return "opened the portal as another user"
	case ActivityEventImpersonationEnded:
		return "returned to their own account"
	case ActivityEventImpersonationFailure:
		return "failed to redeem an impersonation link"
	default:
		return string(event.EventType)
	}
}

var _ ActivitySink = (*BunActivitySink)(nil)
