package auth_test

import (
	"testing"
	"time"

	auth "github.com/classpad/portal-auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key-for-session-cookies")

func newTokenService() *auth.SessionTokenService {
	return auth.NewSessionTokenService(
		testSigningKey,
		time.Hour,
		"classpad-portal",
		jwt.ClaimStrings{"classpad-portal"},
		nil,
	)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	service := newTokenService()

	session := &auth.Session{ID: "session-123"}

	raw, err := service.Mint(session)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	id, err := service.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "session-123", id)
}

func TestSessionTokenMintRequiresSession(t *testing.T) {
	service := newTokenService()

	_, err := service.Mint(nil)
	require.Error(t, err)

	_, err = service.Mint(&auth.Session{})
	require.Error(t, err)
}

func TestSessionTokenParseFailuresCollapse(t *testing.T) {
	service := newTokenService()

	session := &auth.Session{ID: "session-123"}
	raw, err := service.Mint(session)
	require.NoError(t, err)

	t.Run("empty cookie", func(t *testing.T) {
		_, err := service.Parse("")
		assert.True(t, auth.IsNotAuthenticated(err))
	})

	t.Run("garbage cookie", func(t *testing.T) {
		_, err := service.Parse("not-a-jwt")
		assert.True(t, auth.IsNotAuthenticated(err))
	})

	t.Run("tampered cookie", func(t *testing.T) {
		_, err := service.Parse(raw + "x")
		assert.True(t, auth.IsNotAuthenticated(err))
	})

	t.Run("wrong key", func(t *testing.T) {
		other := auth.NewSessionTokenService(
			[]byte("a-completely-different-signing-key"),
			time.Hour,
			"classpad-portal",
			jwt.ClaimStrings{"classpad-portal"},
			nil,
		)
		minted, err := other.Mint(session)
		require.NoError(t, err)

		_, err = service.Parse(minted)
		assert.True(t, auth.IsNotAuthenticated(err))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := auth.NewSessionTokenService(
			testSigningKey,
			time.Hour,
			"someone-else",
			jwt.ClaimStrings{"classpad-portal"},
			nil,
		)
		minted, err := other.Mint(session)
		require.NoError(t, err)

		_, err = service.Parse(minted)
		assert.True(t, auth.IsNotAuthenticated(err))
	})

	t.Run("expired cookie", func(t *testing.T) {
		claims := &jwt.RegisteredClaims{
			Issuer:    "classpad-portal",
			Subject:   "session-123",
			Audience:  jwt.ClaimStrings{"classpad-portal"},
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}
		minted, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
		require.NoError(t, err)

		_, err = service.Parse(minted)
		assert.True(t, auth.IsNotAuthenticated(err))
	})

	t.Run("missing subject", func(t *testing.T) {
		claims := &jwt.RegisteredClaims{
			Issuer:    "classpad-portal",
			Audience:  jwt.ClaimStrings{"classpad-portal"},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		minted, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
		require.NoError(t, err)

		_, err = service.Parse(minted)
		assert.True(t, auth.IsNotAuthenticated(err))
	})
}
