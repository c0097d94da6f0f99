package auth

import "time"

// TokenState is the observable lifecycle state of a single-use token.
type TokenState string

const (
	// TokenStateIssued means the token exists and has not yet been checked
	// against the clock.
	TokenStateIssued TokenState = "issued"
	// TokenStateValid means the token can still be consumed.
	TokenStateValid TokenState = "valid"
	// TokenStateUsed is terminal; a used token never becomes valid again.
	TokenStateUsed TokenState = "used"
	// TokenStateExpired is terminal. A revoked token, if a deployment adds
	// revocation, must be reported as expired here.
	TokenStateExpired TokenState = "expired"
)

// tokenTransitions is the allowed lifecycle graph. Used and Expired are
// terminal; in particular an expired token never transitions to used.
var tokenTransitions = map[TokenState]map[TokenState]struct{}{
	TokenStateIssued: {
		TokenStateValid:   {},
		TokenStateExpired: {},
	},
	TokenStateValid: {
		TokenStateUsed:    {},
		TokenStateExpired: {},
	},
}

// CanTransition reports whether the lifecycle graph allows from -> to.
func CanTransition(from, to TokenState) bool {
	allowed, ok := tokenTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// ResolveTokenState computes the state of a token row at a given instant.
// The used flag wins over the clock: a consumed token reports used even
// after its expiry passes.
func ResolveTokenState(used bool, expiresAt time.Time, now time.Time) TokenState {
	if used {
		return TokenStateUsed
	}
	if !now.Before(expiresAt) {
		return TokenStateExpired
	}
	return TokenStateValid
}
