package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/classpad/portal-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImpersonationFixture(t *testing.T) (*auth.ImpersonationService, auth.RepositoryManager, *auth.Principal, *auth.Principal, *time.Time) {
	t.Helper()

	repo, _ := setupRepo(t)
	admin := seedPrincipal(t, repo, auth.RoleAdmin, "Pat Principal", "admin@classpad.test", "super-secret-admin")
	student := seedPrincipal(t, repo, auth.RoleStudent, "Sam Student", "sam@classpad.test", "super-secret-study")

	now := time.Now().UTC()
	service := auth.NewImpersonationService(repo).
		WithClock(func() time.Time { return now })

	return service, repo, admin, student, &now
}

func TestImpersonationIssue(t *testing.T) {
	service, _, admin, student, now := newImpersonationFixture(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, admin.Ref(), student.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)
	assert.Equal(t, student.ID, token.TargetID)
	assert.Equal(t, admin.ID, token.AdminID)
	assert.WithinDuration(t, now.Add(auth.ImpersonationTokenTTL), token.ExpiresAt, time.Second)
}

func TestImpersonationIssueRequiresAdmin(t *testing.T) {
	service, _, _, student, _ := newImpersonationFixture(t)
	ctx := context.Background()

	_, err := service.Issue(ctx, student.Ref(), student.ID)
	require.Error(t, err)

	_, err = service.Issue(ctx, auth.PrincipalRef{}, student.ID)
	require.Error(t, err)
}

func TestImpersonationIssueUnknownTarget(t *testing.T) {
	service, _, admin, _, _ := newImpersonationFixture(t)

	_, err := service.Issue(context.Background(), admin.Ref(), uuid.New())
	require.Error(t, err)
}

func TestImpersonationRedeem(t *testing.T) {
	service, _, admin, student, _ := newImpersonationFixture(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, admin.Ref(), student.ID)
	require.NoError(t, err)

	grant, err := service.Redeem(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, student.ID, grant.Target.ID)
	assert.Equal(t, student.Ref(), grant.Target)
	assert.Equal(t, admin.ID, grant.AdminID)
}

func TestImpersonationRedeemExactlyOnce(t *testing.T) {
	service, _, admin, student, _ := newImpersonationFixture(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, admin.Ref(), student.ID)
	require.NoError(t, err)

	_, err = service.Redeem(ctx, token.Token)
	require.NoError(t, err)

	_, err = service.Redeem(ctx, token.Token)
	assert.True(t, auth.IsInvalidToken(err))
}

func TestImpersonationRedeemExpired(t *testing.T) {
	service, _, admin, student, now := newImpersonationFixture(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, admin.Ref(), student.ID)
	require.NoError(t, err)

	*now = now.Add(auth.ImpersonationTokenTTL + time.Second)

	_, err = service.Redeem(ctx, token.Token)
	assert.True(t, auth.IsInvalidToken(err))
}

func TestImpersonationRedeemUnknownToken(t *testing.T) {
	service, _, _, _, _ := newImpersonationFixture(t)

	_, err := service.Redeem(context.Background(), "no-such-token")
	assert.True(t, auth.IsInvalidToken(err))

	_, err = service.Redeem(context.Background(), "")
	assert.True(t, auth.IsInvalidToken(err))
}

func TestImpersonationConcurrentRedeem(t *testing.T) {
	service, _, admin, student, _ := newImpersonationFixture(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, admin.Ref(), student.ID)
	require.NoError(t, err)

	const racers = 8

	var wg sync.WaitGroup
	results := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Redeem(ctx, token.Token)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		}
	}

	assert.Equal(t, 1, wins, "exactly one redeemer may win")
}

// Full admin takeover scenario: the admin signs in, mints a link for the
// student, redeems it, acts as the student, and steps back out.
func TestImpersonationEndToEnd(t *testing.T) {
	service, _, admin, student, _ := newImpersonationFixture(t)
	ctx := context.Background()

	manager := auth.NewSessionManager(auth.NewMemorySessionStore())

	session, err := manager.Login(ctx, admin.Ref())
	require.NoError(t, err)

	token, err := service.Issue(ctx, admin.Ref(), student.ID)
	require.NoError(t, err)

	grant, err := service.Redeem(ctx, token.Token)
	require.NoError(t, err)

	overlaid, err := manager.BeginImpersonation(ctx, session.ID, grant.Target)
	require.NoError(t, err)
	assert.Equal(t, student.Ref(), overlaid.CurrentPrincipal())
	require.NotNil(t, overlaid.Original)
	assert.Equal(t, admin.Ref(), *overlaid.Original)

	restored, err := manager.EndImpersonation(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.Ref(), restored.CurrentPrincipal())
	assert.False(t, restored.IsImpersonating())
}
