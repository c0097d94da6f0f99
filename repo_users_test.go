package auth_test

import (
	"context"
	"testing"

	auth "github.com/classpad/portal-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersGetByEmail(t *testing.T) {
	repo, _ := setupRepo(t)
	user := seedPrincipal(t, repo, auth.RoleInstructor, "Ines Instructor", "ines@classpad.test", "super-secret-teach")
	ctx := context.Background()

	found, err := repo.Users().GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, auth.RoleInstructor, found.Role)

	// surrounding whitespace is tolerated
	found, err = repo.Users().GetByEmail(ctx, "  ines@classpad.test ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestUsersGetByEmailUnknown(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	_, err := repo.Users().GetByEmail(ctx, "nobody@classpad.test")
	assert.ErrorIs(t, err, auth.ErrUnknownPrincipal)

	// malformed addresses never reach the database
	_, err = repo.Users().GetByEmail(ctx, "not-an-address")
	assert.ErrorIs(t, err, auth.ErrUnknownPrincipal)

	_, err = repo.Users().GetByEmail(ctx, "")
	assert.ErrorIs(t, err, auth.ErrUnknownPrincipal)
}

func TestUsersUpdateCredential(t *testing.T) {
	repo, _ := setupRepo(t)
	user := seedPrincipal(t, repo, auth.RoleStudent, "Sam Student", "sam@classpad.test", "super-secret-study")
	ctx := context.Background()

	hash, err := auth.HashCredential("a-brand-new-password")
	require.NoError(t, err)

	require.NoError(t, repo.Users().UpdateCredential(ctx, user.ID, hash))

	updated, err := repo.Users().GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.NoError(t, auth.CompareCredentialAndHash("a-brand-new-password", updated.PasswordHash))
}

func TestUsersUpdateCredentialUnknownID(t *testing.T) {
	repo, _ := setupRepo(t)

	hash, err := auth.HashCredential("whatever-password")
	require.NoError(t, err)

	err = repo.Users().UpdateCredential(context.Background(), uuid.New(), hash)
	assert.ErrorIs(t, err, auth.ErrUnknownPrincipal)
}
