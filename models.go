package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is a portal role
type Role = string

const (
	// RoleStudent can view their own records and materials
	RoleStudent Role = "student"
	// RoleInstructor can manage materials and announcements for their courses
	RoleInstructor Role = "instructor"
	// RoleAdmin can manage every account, including impersonation
	RoleAdmin Role = "admin"
)

// ParseRole returns the role for a raw string and whether it is known.
func ParseRole(raw string) (Role, bool) {
	switch raw {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return raw, true
	default:
		return "", false
	}
}

// Principal is the user model as the auth core sees it. Rows are owned by
// the user-management collaborator; this package only reads them and
// updates password_hash through consume.
type Principal struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           Role       `bun:"user_role,notnull" json:"user_role,omitempty"`
	DisplayName    string     `bun:"display_name,notnull" json:"display_name,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"password_hash,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Ref returns the immutable identity snapshot carried by sessions.
func (p *Principal) Ref() PrincipalRef {
	if p == nil {
		return PrincipalRef{}
	}
	return PrincipalRef{
		ID:          p.ID,
		Role:        p.Role,
		DisplayName: p.DisplayName,
		Email:       p.Email,
	}
}

// PrincipalRef is the read-only identity snapshot stored in a session.
// Sessions never hold the full row; credential fields stay in the store.
type PrincipalRef struct {
	ID          uuid.UUID `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
}

// IsZero reports whether the ref identifies nobody.
func (r PrincipalRef) IsZero() bool {
	return r.ID == uuid.Nil
}

// ResetToken is a single-use, time-limited credential binding an email
// address to a password change. Valid iff used=false and now<expires_at.
type ResetToken struct {
	bun.BaseModel `bun:"table:password_reset_tokens,alias:prt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Used          bool       `bun:"used,notnull,default:false" json:"used"`
	UsedAt        *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ImpersonationToken is a single-use token minted by an admin and exchanged
// for a session overlay. Same validity rule as ResetToken.
type ImpersonationToken struct {
	bun.BaseModel `bun:"table:impersonation_tokens,alias:imt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	TargetID      uuid.UUID  `bun:"target_id,notnull,type:uuid" json:"target_id,omitempty"`
	AdminID       uuid.UUID  `bun:"admin_id,notnull,type:uuid" json:"admin_id,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Used          bool       `bun:"used,notnull,default:false" json:"used"`
	UsedAt        *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ActivityRecord is an append-only audit row. Writes are best-effort and
// must never block or fail the primary operation.
type ActivityRecord struct {
	bun.BaseModel `bun:"table:activity_log,alias:act"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ActorID       string     `bun:"actor_id" json:"actor_id,omitempty"`
	Action        string     `bun:"action,notnull" json:"action,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	RelatedTable  string     `bun:"related_table" json:"related_table,omitempty"`
	RelatedID     string     `bun:"related_id" json:"related_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
