package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// consumeResetTokenSQL flips the used flag only while the token is still
// live. The WHERE clause is the whole consistency story: two racing
// consumers both run it, the row matches exactly once, and the loser gets
// zero rows back.
var consumeResetTokenSQL = `UPDATE "password_reset_tokens" AS "prt"
SET
	"used" = TRUE,
	"used_at" = ?
WHERE
	"prt"."token" = ?
AND "prt"."used" = FALSE
AND "prt"."expires_at" > ?
RETURNING *;`

var redeemImpersonationTokenSQL = `UPDATE "impersonation_tokens" AS "imt"
SET
	"used" = TRUE,
	"used_at" = ?
WHERE
	"imt"."token" = ?
AND "imt"."used" = FALSE
AND "imt"."expires_at" > ?
RETURNING *;`

// ResetTokens stores password reset tokens.
type ResetTokens interface {
	repository.Repository[*ResetToken]

	GetByToken(ctx context.Context, token string) (*ResetToken, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*ResetToken, error)
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

// ImpersonationTokens stores admin "open as user" tokens.
type ImpersonationTokens interface {
	repository.Repository[*ImpersonationToken]

	GetByToken(ctx context.Context, token string) (*ImpersonationToken, error)
	RedeemTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*ImpersonationToken, error)
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

type resetTokens struct {
	repository.Repository[*ResetToken]
	db *bun.DB
}

var _ ResetTokens = (*resetTokens)(nil)

// NewResetTokensRepository wires the reset token store over a bun handle.
func NewResetTokensRepository(db *bun.DB) ResetTokens {
	handlers := repository.ModelHandlers[*ResetToken]{
		NewRecord: func() *ResetToken {
			return &ResetToken{}
		},
		GetID: func(record *ResetToken) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ResetToken, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "token"
		},
	}
	return &resetTokens{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (r *resetTokens) GetByToken(ctx context.Context, token string) (*ResetToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	record, err := r.Repository.GetByIdentifier(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, wrapStoreErr(err, "failed to look up reset token")
	}

	return record, nil
}

func (r *resetTokens) ConsumeTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*ResetToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	res, err := r.Repository.RawTx(ctx, tx, consumeResetTokenSQL, now, token, now)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to consume reset token")
	}

	if len(res) == 0 {
		return nil, ErrInvalidToken
	}

	return res[0], nil
}

func (r *resetTokens) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*ResetToken)(nil)).
		Where("expires_at <= ? OR used = TRUE", before).
		Exec(ctx)
	if err != nil {
		return 0, wrapStoreErr(err, "failed to purge stale reset tokens")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

type impersonationTokens struct {
	repository.Repository[*ImpersonationToken]
	db *bun.DB
}

var _ ImpersonationTokens = (*impersonationTokens)(nil)

// NewImpersonationTokensRepository wires the impersonation token store.
func NewImpersonationTokensRepository(db *bun.DB) ImpersonationTokens {
	handlers := repository.ModelHandlers[*ImpersonationToken]{
		NewRecord: func() *ImpersonationToken {
			return &ImpersonationToken{}
		},
		GetID: func(record *ImpersonationToken) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ImpersonationToken, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "token"
		},
	}
	return &impersonationTokens{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (r *impersonationTokens) GetByToken(ctx context.Context, token string) (*ImpersonationToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	record, err := r.Repository.GetByIdentifier(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, wrapStoreErr(err, "failed to look up impersonation token")
	}

	return record, nil
}

func (r *impersonationTokens) RedeemTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*ImpersonationToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	res, err := r.Repository.RawTx(ctx, tx, redeemImpersonationTokenSQL, now, token, now)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to redeem impersonation token")
	}

	if len(res) == 0 {
		return nil, ErrInvalidToken
	}

	return res[0], nil
}

func (r *impersonationTokens) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*ImpersonationToken)(nil)).
		Where("expires_at <= ? OR used = TRUE", before).
		Exec(ctx)
	if err != nil {
		return 0, wrapStoreErr(err, "failed to purge stale impersonation tokens")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}
