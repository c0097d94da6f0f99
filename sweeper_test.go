package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/classpad/portal-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepOncePurgesDeadRows(t *testing.T) {
	repo, db := setupRepo(t)
	user := seedPrincipal(t, repo, auth.RoleStudent, "Sam Student", "sam@classpad.test", "super-secret-study")
	ctx := context.Background()

	now := time.Now().UTC()

	seedReset := func(token string, expiresAt time.Time, used bool) {
		t.Helper()
		_, err := repo.ResetTokens().Create(ctx, &auth.ResetToken{
			Token:     token,
			UserID:    user.ID,
			Email:     user.Email,
			ExpiresAt: expiresAt,
			Used:      used,
		})
		require.NoError(t, err)
	}

	seedReset("fresh", now.Add(time.Hour), false)
	seedReset("expired", now.Add(-time.Hour), false)
	seedReset("spent", now.Add(time.Hour), true)

	_, err := repo.ImpersonationTokens().Create(ctx, &auth.ImpersonationToken{
		Token:     "stale-grant",
		TargetID:  user.ID,
		AdminID:   user.ID,
		ExpiresAt: now.Add(-time.Minute),
	})
	require.NoError(t, err)

	auth.NewTokenSweeper(repo).SweepOnce(ctx)

	// only the live reset token survives
	count, err := db.NewSelect().Model((*auth.ResetToken)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	survivor, err := repo.ResetTokens().GetByToken(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", survivor.Token)

	count, err = db.NewSelect().Model((*auth.ImpersonationToken)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSweepOnceOnEmptyTables(t *testing.T) {
	repo, _ := setupRepo(t)

	// nothing to purge must be a quiet no-op
	auth.NewTokenSweeper(repo).SweepOnce(context.Background())
}
