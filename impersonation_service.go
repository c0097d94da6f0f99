package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ImpersonationGrant is what a redeemed token resolves to: the account to
// act as plus the admin who minted the link, so the session overlay can
// attribute the takeover.
type ImpersonationGrant struct {
	Target  PrincipalRef
	AdminID uuid.UUID
}

// ImpersonationService mints and redeems the single-use tokens behind the
// admin "open portal as user" flow. Tokens live for a few minutes at most;
// they cross from the admin UI to a new browser context and nothing else.
type ImpersonationService struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewImpersonationService creates a service with sane defaults.
func NewImpersonationService(repo RepositoryManager) *ImpersonationService {
	return &ImpersonationService{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		ttl:      ImpersonationTokenTTL,
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit impersonation events.
func (s *ImpersonationService) WithActivitySink(sink ActivitySink) *ImpersonationService {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithLogger overrides the logger.
func (s *ImpersonationService) WithLogger(logger Logger) *ImpersonationService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTTL overrides the token lifetime.
func (s *ImpersonationService) WithTTL(ttl time.Duration) *ImpersonationService {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *ImpersonationService) WithClock(clock func() time.Time) *ImpersonationService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Issue mints a token that lets admin open the portal as target. Only
// admins may mint, and the target must be a live account.
func (s *ImpersonationService) Issue(ctx context.Context, admin PrincipalRef, targetID uuid.UUID) (*ImpersonationToken, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if admin.IsZero() || admin.Role != RoleAdmin {
		return nil, ErrForbidden
	}

	target, err := s.repo.Users().GetByID(ctx, targetID.String())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUnknownPrincipal
		}
		return nil, wrapStoreErr(err, "failed to look up impersonation target")
	}

	value, err := GenerateOpaqueToken()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate impersonation token")
	}

	record := &ImpersonationToken{
		Token:     value,
		TargetID:  target.ID,
		AdminID:   admin.ID,
		ExpiresAt: s.now().Add(s.ttl),
	}

	token := &ImpersonationToken{}
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.ImpersonationTokens().CreateTx(ctx, tx, record)
		if err != nil {
			return wrapStoreErr(err, "failed to store impersonation token")
		}
		token = created
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType:    ActivityEventImpersonationIssued,
		Actor:        ActorRef{ID: admin.ID.String(), Type: "admin"},
		UserID:       target.ID.String(),
		RelatedTable: "users",
		RelatedID:    target.ID.String(),
	})

	return token, nil
}

// Redeem exchanges a token for an impersonation grant, exactly once.
// Unknown, expired, and used tokens all come back as ErrInvalidToken; this
// path never retries because a retry could double-spend.
func (s *ImpersonationService) Redeem(ctx context.Context, token string) (*ImpersonationGrant, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	grant := &ImpersonationGrant{}
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.repo.ImpersonationTokens().RedeemTx(ctx, tx, token, s.now())
		if err != nil {
			return err
		}

		target, err := s.repo.Users().GetByID(ctx, record.TargetID.String())
		if err != nil {
			if goerrors.IsNotFound(err) {
				// target vanished between issue and redeem
				return ErrInvalidToken
			}
			return wrapStoreErr(err, "failed to load impersonation target")
		}

		grant.Target = target.Ref()
		grant.AdminID = record.AdminID
		return nil
	})

	if err != nil {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventImpersonationFailure,
			Actor:     ActorRef{Type: "system"},
		})

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem impersonation token")
	}

	// the session layer records the "started" event once the overlay is
	// actually applied
	return grant, nil
}

func (s *ImpersonationService) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error during impersonation: %v", err)
	}
}
