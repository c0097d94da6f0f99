package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// SessionTokenService signs and parses the cookie value that carries a
// session id across requests. The cookie holds a JWT whose subject is the
// session id; all session state stays server side.
type SessionTokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

// NewSessionTokenService creates a new SessionTokenService instance.
func NewSessionTokenService(signingKey []byte, ttl time.Duration, issuer string, audience jwt.ClaimStrings, logger Logger) *SessionTokenService {
	if logger == nil {
		logger = defLogger{}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionTokenService{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
	}
}

// Mint creates the signed cookie value for a session.
func (ts *SessionTokenService) Mint(session *Session) (string, error) {
	if session == nil || session.ID == "" {
		return "", goerrors.New("session must not be nil", goerrors.CategoryInternal)
	}

	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Issuer:    ts.issuer,
		Subject:   session.ID,
		Audience:  ts.audience,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session cookie")
	}

	return signedString, nil
}

// Parse validates a cookie value and returns the session id it carries.
// Every failure mode collapses into ErrNotAuthenticated: a bad cookie and
// a missing cookie look the same to handlers.
func (ts *SessionTokenService) Parse(raw string) (string, error) {
	if raw == "" {
		return "", ErrNotAuthenticated
	}

	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("session cookie with unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		ts.logger.Debug("session cookie rejected: %v", err)
		return "", ErrNotAuthenticated
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrNotAuthenticated
	}

	return claims.Subject, nil
}
