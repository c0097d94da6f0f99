package auth

import (
	"fmt"
	"time"
)

// Session holds the server-side state for one authenticated browser
// session. Original is set only while an impersonation overlay is active
// and always points at the principal who initiated the first overlay.
type Session struct {
	ID        string        `json:"id"`
	Principal PrincipalRef  `json:"principal"`
	Original  *PrincipalRef `json:"original,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// CurrentPrincipal returns the identity the session currently acts as.
func (s *Session) CurrentPrincipal() PrincipalRef {
	if s == nil {
		return PrincipalRef{}
	}
	return s.Principal
}

// IsImpersonating reports whether an overlay is active.
func (s *Session) IsImpersonating() bool {
	return s != nil && s.Original != nil
}

// clone returns a copy safe to hand to callers; the store keeps its own.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Original != nil {
		orig := *s.Original
		out.Original = &orig
	}
	return &out
}

func (s Session) String() string {
	acting := "-"
	if s.Original != nil {
		acting = s.Original.ID.String()
	}
	return fmt.Sprintf(
		"session=%s principal=%s role=%s original=%s",
		s.ID,
		s.Principal.ID,
		s.Principal.Role,
		acting,
	)
}
