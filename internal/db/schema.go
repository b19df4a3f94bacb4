package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id                 UUID PRIMARY KEY,
	username           TEXT NOT NULL,
	email              TEXT NOT NULL,
	full_name          TEXT NOT NULL,
	password_hash      TEXT NOT NULL,
	avatar_url         TEXT NOT NULL,
	cover_image_url    TEXT NOT NULL DEFAULT '',
	refresh_token_hash TEXT NOT NULL DEFAULT '',
	role               TEXT NOT NULL DEFAULT 'user',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email);
`

// EnsureSchema applies the users table idempotently on startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, usersSchema)
	return err
}
