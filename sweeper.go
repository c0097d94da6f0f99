package auth

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often the sweeper purges dead token rows.
const DefaultSweepInterval = 15 * time.Minute

// TokenSweeper periodically deletes expired and spent token rows. Purging
// is pure hygiene: validity never depends on it, since every read and
// consume checks used/expires_at itself.
type TokenSweeper struct {
	repo     RepositoryManager
	interval time.Duration
	logger   Logger
	now      func() time.Time
}

// NewTokenSweeper creates a sweeper over the token repositories.
func NewTokenSweeper(repo RepositoryManager) *TokenSweeper {
	return &TokenSweeper{
		repo:     repo,
		interval: DefaultSweepInterval,
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithInterval overrides the sweep cadence.
func (s *TokenSweeper) WithInterval(interval time.Duration) *TokenSweeper {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// WithLogger overrides the logger.
func (s *TokenSweeper) WithLogger(logger Logger) *TokenSweeper {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Start runs the sweep loop until ctx is cancelled. Call it from its own
// goroutine.
func (s *TokenSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce purges both token tables a single time.
func (s *TokenSweeper) SweepOnce(ctx context.Context) {
	now := s.now()

	if n, err := s.repo.ResetTokens().PurgeStale(ctx, now); err != nil {
		s.logger.Warn("reset token sweep failed: %v", err)
	} else if n > 0 {
		s.logger.Debug("swept %d reset tokens", n)
	}

	if n, err := s.repo.ImpersonationTokens().PurgeStale(ctx, now); err != nil {
		s.logger.Warn("impersonation token sweep failed: %v", err)
	} else if n > 0 {
		s.logger.Debug("swept %d impersonation tokens", n)
	}
}
