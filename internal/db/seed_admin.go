package db

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/accounthub/internal/config"
	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/geocoder89/accounthub/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Username:     user.NormalizeUsername(cfg.AdminUsername),
		Email:        user.NormalizeEmail(cfg.AdminEmail),
		FullName:     cfg.AdminName,
		PasswordHash: hash,
		// seed admins get a placeholder avatar; real users must upload one
		AvatarURL: "https://ui-avatars.com/api/?name=Admin",
		Role:      "admin",
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token_hash, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,'','',$7,$8,$9)
		`,
		u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, u.AvatarURL, u.Role, u.CreatedAt, u.UpdatedAt,
	)

	return err
}
