package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeNotAuthenticated marks operations against an absent session.
	TextCodeNotAuthenticated = "NOT_AUTHENTICATED"
	// TextCodeForbidden marks role mismatches.
	TextCodeForbidden = "FORBIDDEN"
	// TextCodeInvalidToken is the collapsed not-found/expired/used outcome.
	TextCodeInvalidToken = "INVALID_TOKEN"
	// TextCodeUnknownPrincipal marks lookups for emails/ids nobody owns.
	TextCodeUnknownPrincipal = "UNKNOWN_PRINCIPAL"
	// TextCodeStoreUnavailable marks transient data-store failures.
	TextCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// ErrNotAuthenticated is returned for any session operation against a
// destroyed or absent session. Page handlers treat it as "redirect to
// login", never as a fatal error.
var ErrNotAuthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the caller's role does not allow the action.
var ErrForbidden = goerrors.New("insufficient role for this action", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidToken is the single outcome for a token that is unknown,
// expired, or already used. The collapsing is deliberate; callers must not
// be able to tell which invariant failed.
var ErrInvalidToken = goerrors.New("this link is invalid or has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrUnknownPrincipal is returned by the user directory when no principal
// owns the given email or id. Whether to surface it or report uniform
// success is the boundary's policy, not the store's.
var ErrUnknownPrincipal = goerrors.New("no account matches that identifier", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUnknownPrincipal).
	WithCode(goerrors.CodeNotFound)

// ErrStoreUnavailable wraps transient infrastructure failures. Read-only
// checks may retry once; mutating consume/redeem paths never retry.
var ErrStoreUnavailable = goerrors.New("data store unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrMismatchedHashAndPassword is the uniform bad-credentials outcome.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while the cooldown window is active.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts, try again later", goerrors.CategoryAuth).
	WithTextCode("TOO_MANY_ATTEMPTS").
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty secrets before they reach bcrypt.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// IsInvalidToken reports whether err is the collapsed invalid-token outcome.
func IsInvalidToken(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeInvalidToken
}

// IsNotAuthenticated reports whether err means the session is gone.
func IsNotAuthenticated(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeNotAuthenticated
}

// IsStoreUnavailable reports whether err is a transient store failure.
func IsStoreUnavailable(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeStoreUnavailable
}

// wrapStoreErr tags a raw driver error as a transient store failure while
// keeping the cause for logs.
func wrapStoreErr(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeStoreUnavailable).
		WithCode(goerrors.CodeInternal)
}
