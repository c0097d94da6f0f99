package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// UserTracker is the slice of the user directory the provider needs.
type UserTracker interface {
	GetByEmail(ctx context.Context, email string) (*Principal, error)
	TrackAttemptedLogin(ctx context.Context, user *Principal) error
	TrackSuccessfulLogin(ctx context.Context, user *Principal) error
}

// MaxLoginAttempts is the maximum number of attempts a user gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// UserProvider verifies login credentials against the user directory and
// enforces the attempt cooldown window.
type UserProvider struct {
	store     UserTracker
	Validator func(*Principal) error
	logger    Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker) *UserProvider {
	return &UserProvider{
		store:     store,
		logger:    defLogger{},
		Validator: defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

func (u *UserProvider) validate(user *Principal) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity finds the account, compares the password, and returns the
// identity snapshot. Unknown email and wrong password are the same error so
// the login form leaks nothing.
func (u UserProvider) VerifyIdentity(ctx context.Context, email, password string) (PrincipalRef, error) {
	user, err := u.store.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return PrincipalRef{}, ErrMismatchedHashAndPassword
		}
		return PrincipalRef{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if user.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*user.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return PrincipalRef{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			user.LoginAttempts = 0
		}
	}

	// if we have too many attempts in the given window, cool off!
	if user.LoginAttempts > MaxLoginAttempts {
		return PrincipalRef{}, ErrTooManyLoginAttempts
	}

	if err := CompareCredentialAndHash(password, user.PasswordHash); err != nil {
		// increment the login_attempts counter and login_attempt_at
		if err2 := u.store.TrackAttemptedLogin(ctx, user); err2 != nil {
			return PrincipalRef{}, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}

		return PrincipalRef{}, ErrMismatchedHashAndPassword
	}

	// reset the login_attempts counter and login_attempt_at
	if err := u.store.TrackSuccessfulLogin(ctx, user); err != nil {
		u.logger.Error("failed to track successful login: %v", err)
	}

	if err := u.validate(user); err != nil {
		return PrincipalRef{}, err
	}

	return user.Ref(), nil
}

// FindIdentityByEmail resolves an identity snapshot without verifying a
// credential. Used by admin tooling that already trusts the caller.
func (u UserProvider) FindIdentityByEmail(ctx context.Context, email string) (PrincipalRef, error) {
	user, err := u.store.GetByEmail(ctx, email)
	if err != nil {
		return PrincipalRef{}, err
	}

	if err := u.validate(user); err != nil {
		return PrincipalRef{}, err
	}

	return user.Ref(), nil
}

func defaultValidator(u *Principal) error {
	switch u.Role {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return nil
	default:
		return goerrors.New("user has an unknown or invalid role", goerrors.CategoryAuth).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": u.Role, "user_id": u.ID.String()})
	}
}

// IsOutsideThresholdPeriod reports whether now is past t plus the given
// duration string, e.g. "24h".
func IsOutsideThresholdPeriod(t time.Time, period string) (bool, error) {
	window, err := time.ParseDuration(period)
	if err != nil {
		return false, err
	}
	return time.Since(t) > window, nil
}
