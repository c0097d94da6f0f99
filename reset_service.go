package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// PasswordResetService owns the forgot-password token lifecycle: issue a
// single-use link, validate it for the form render, and consume it together
// with the credential update in one transaction.
type PasswordResetService struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewPasswordResetService creates a service with sane defaults.
func NewPasswordResetService(repo RepositoryManager) *PasswordResetService {
	return &PasswordResetService{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		ttl:      ResetTokenTTL,
		now:      time.Now,
	}
}

// WithNotifier sets the channel used to deliver reset links.
func (s *PasswordResetService) WithNotifier(n Notifier) *PasswordResetService {
	s.notifier = normalizeNotifier(n)
	return s
}

// WithActivitySink sets the sink used to emit reset events.
func (s *PasswordResetService) WithActivitySink(sink ActivitySink) *PasswordResetService {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithLogger overrides the logger.
func (s *PasswordResetService) WithLogger(logger Logger) *PasswordResetService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTTL overrides the token lifetime.
func (s *PasswordResetService) WithTTL(ttl time.Duration) *PasswordResetService {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *PasswordResetService) WithClock(clock func() time.Time) *PasswordResetService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Issue mints a reset token for the account behind email and hands the
// link to the notifier. An unknown email returns ErrUnknownPrincipal; the
// boundary decides whether to surface that or answer uniformly.
func (s *PasswordResetService) Issue(ctx context.Context, email string) (*ResetToken, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	value, err := GenerateOpaqueToken()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
	}

	record := &ResetToken{
		Token:     value,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: s.now().Add(s.ttl),
	}

	token := &ResetToken{}
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.ResetTokens().CreateTx(ctx, tx, record)
		if err != nil {
			return wrapStoreErr(err, "failed to store reset token")
		}
		token = created
		return nil
	})

	if err != nil {
		return nil, err
	}

	if err := s.notifier.Notify(ctx, Notification{
		Kind:    NotificationPasswordReset,
		To:      user.Email,
		Name:    user.DisplayName,
		Token:   token.Token,
		Expires: token.ExpiresAt,
	}); err != nil {
		s.logger.Warn("reset notifier error: %v", err)
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventResetRequested,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
	})

	return token, nil
}

// Validate checks a token without consuming it, so the boundary can decide
// whether to render the new-password form. Unknown, expired, and used all
// collapse into ErrInvalidToken. Transient store failures are retried once;
// this path is read-only so the retry is safe.
func (s *PasswordResetService) Validate(ctx context.Context, token string) (*ResetToken, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	record, err := s.repo.ResetTokens().GetByToken(ctx, token)
	if IsStoreUnavailable(err) {
		s.logger.Warn("reset token lookup retry: %v", err)
		record, err = s.repo.ResetTokens().GetByToken(ctx, token)
	}
	if err != nil {
		return nil, err
	}

	if ResolveTokenState(record.Used, record.ExpiresAt, s.now()) != TokenStateValid {
		return nil, ErrInvalidToken
	}

	return record, nil
}

// Consume atomically marks the token used and rewrites the account's
// credential in the same transaction. Exactly one caller wins a race; the
// rest get ErrInvalidToken. This path never retries.
func (s *PasswordResetService) Consume(ctx context.Context, token, newPassword string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	passwordHash, err := HashCredential(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	consumed := &ResetToken{}
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.repo.ResetTokens().ConsumeTx(ctx, tx, token, s.now())
		if err != nil {
			return err
		}

		if err := s.repo.Users().UpdateCredentialTx(ctx, tx, record.UserID, passwordHash); err != nil {
			return err
		}

		consumed = record
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType:    ActivityEventResetCompleted,
		Actor:        ActorRef{ID: consumed.UserID.String(), Type: "user"},
		UserID:       consumed.UserID.String(),
		RelatedTable: "users",
		RelatedID:    consumed.UserID.String(),
	})

	return nil
}

func (s *PasswordResetService) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error during password reset: %v", err)
	}
}
