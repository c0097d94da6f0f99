package auth_test

import (
	"context"
	"database/sql"
	"testing"

	auth "github.com/classpad/portal-auth"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
	id TEXT NOT NULL PRIMARY KEY,
	user_role TEXT NOT NULL DEFAULT 'student',
	display_name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT,
	login_attempts INTEGER DEFAULT 0,
	login_attempt_at TIMESTAMP,
	loggedin_at TIMESTAMP,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP,
	deleted_at TIMESTAMP
);`

	sqliteCreateResetTokens = `CREATE TABLE password_reset_tokens (
	id TEXT NOT NULL PRIMARY KEY,
	token TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	email TEXT NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	used BOOLEAN NOT NULL DEFAULT FALSE,
	used_at TIMESTAMP,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

	sqliteCreateImpersonationTokens = `CREATE TABLE impersonation_tokens (
	id TEXT NOT NULL PRIMARY KEY,
	token TEXT NOT NULL UNIQUE,
	target_id TEXT NOT NULL,
	admin_id TEXT NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	used BOOLEAN NOT NULL DEFAULT FALSE,
	used_at TIMESTAMP,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

	sqliteCreateActivityLog = `CREATE TABLE activity_log (
	id TEXT NOT NULL PRIMARY KEY,
	actor_id TEXT,
	action TEXT NOT NULL,
	description TEXT,
	related_table TEXT,
	related_id TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
)

func setupRepo(t *testing.T) (auth.RepositoryManager, *bun.DB) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	for _, stmt := range []string{
		sqliteCreateUsers,
		sqliteCreateResetTokens,
		sqliteCreateImpersonationTokens,
		sqliteCreateActivityLog,
	} {
		_, err = bunDB.Exec(stmt)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	return auth.NewRepositoryManager(bunDB), bunDB
}

func seedPrincipal(t *testing.T, repo auth.RepositoryManager, role auth.Role, name, email, password string) *auth.Principal {
	t.Helper()

	hash, err := auth.HashCredential(password)
	require.NoError(t, err)

	record := &auth.Principal{
		Role:         role,
		DisplayName:  name,
		Email:        email,
		PasswordHash: hash,
	}

	created, err := repo.Users().Create(context.Background(), record)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	return created
}
