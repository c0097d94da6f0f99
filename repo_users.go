package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var updateCredentialSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the user directory as the auth core consumes it. Principal rows
// are created elsewhere; this package reads them and rewrites the
// credential hash during reset consumption.
type Users interface {
	repository.Repository[*Principal]

	GetByEmail(ctx context.Context, email string) (*Principal, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Principal, error)

	UpdateCredential(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateCredentialTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	TrackAttemptedLogin(ctx context.Context, user *Principal) error
	TrackSuccessfulLogin(ctx context.Context, user *Principal) error
}

type users struct {
	repository.Repository[*Principal]
	db *bun.DB
}

var (
	_ Users                             = (*users)(nil)
	_ repository.Repository[*Principal] = (*users)(nil)
)

// NewUsersRepository wires the directory over a bun database handle.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*Principal](db, repository.ModelHandlers[*Principal]{
		NewRecord: func() *Principal { return &Principal{} },
		GetID: func(p *Principal) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Principal, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Principal, error) {
	trimmed := strings.TrimSpace(email)
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return nil, ErrUnknownPrincipal
	}

	record := &Principal{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", trimmed).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnknownPrincipal
		}
		return nil, wrapStoreErr(err, "failed to look up principal by email")
	}

	return record, nil
}

func (a *users) UpdateCredential(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.UpdateCredentialTx(ctx, a.db, id, passwordHash)
}

func (a *users) UpdateCredentialTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, updateCredentialSQL, passwordHash, id.String())
	if err != nil {
		return wrapStoreErr(err, "failed to update credential")
	}

	if len(res) == 0 {
		return ErrUnknownPrincipal
	}

	return nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *Principal) error {
	// NOTE: raw update so login_attempt_at actually resets to NULL; the
	// ORM skips zero-valued fields on update.
	loggedInAt := time.Now()
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, loggedInAt, user.ID).Exec(ctx)

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *Principal) error {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(user.ID.String()),
	}

	record := &Principal{}
	record.ID = user.ID
	record.LoginAttempts = user.LoginAttempts + 1
	now := time.Now()
	record.LoginAttemptAt = &now

	_, err := a.Repository.UpdateTx(ctx, a.db, record, criteria...)

	return err
}
