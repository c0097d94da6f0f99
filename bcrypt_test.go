package auth_test

import (
	"testing"

	auth "github.com/classpad/portal-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashCredentialAndCompare(t *testing.T) {
	hash, err := auth.HashCredential("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, auth.CompareCredentialAndHash("correct horse battery staple", hash))

	err = auth.CompareCredentialAndHash("wrong password", hash)
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
}

func TestHashCredentialRejectsEmpty(t *testing.T) {
	_, err := auth.HashCredential("")
	assert.ErrorIs(t, err, auth.ErrNoEmptyString)
}

func TestCompareCredentialAndHashGarbageHash(t *testing.T) {
	err := auth.CompareCredentialAndHash("anything", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
}
