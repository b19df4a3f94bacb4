package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username or email already taken")

	// Returned by RotateRefreshToken when the stored hash no longer matches
	// the presented one: the token was already rotated (or forged).
	ErrStaleRefreshToken = errors.New("refresh token does not match stored value")
)

const userColumns = `id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token_hash, role, created_at, updated_at`

// DBObserver wraps a logical store operation (latency metrics, error
// classification). Nil means no instrumentation.
type DBObserver func(op string, fn func() error) error

type UsersRepo struct {
	pool *pgxpool.Pool
	obs  DBObserver
}

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

func (r *UsersRepo) WithObserver(obs DBObserver) *UsersRepo {
	r.obs = obs
	return r
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.obs == nil {
		return fn()
	}

	return r.obs(op, fn)
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.AvatarURL,
		&u.CoverImageURL,
		&u.RefreshTokenHash,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		))
		return err
	})

	return u, err
}

// GetByUsernameOrEmail resolves a login identifier. Either argument may be
// empty; a row matches when its username or email equals a non-empty one.
func (r *UsersRepo) GetByUsernameOrEmail(ctx context.Context, username, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_username_or_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+`
             FROM users
             WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
             LIMIT 1`,
			username, email,
		))
		return err
	})

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			u.ID, u.Username, u.Email, u.FullName, u.PasswordHash,
			u.AvatarURL, u.CoverImageURL, u.RefreshTokenHash, u.Role,
			u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, ErrUserExists
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) UpdateAccountDetails(ctx context.Context, id, fullName, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.update_account_details", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users
             SET full_name = $2, email = $3, updated_at = NOW()
             WHERE id = $1
             RETURNING `+userColumns,
			id, fullName, email,
		))
		return err
	})

	if err != nil && isUniqueViolation(err) {
		return user.User{}, ErrUserExists
	}

	return u, err
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.observe("users.update_password", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			id, passwordHash,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}

		return nil
	})
}

func (r *UsersRepo) UpdateAvatarURL(ctx context.Context, id, url string) (user.User, error) {
	var u user.User

	err := r.observe("users.update_avatar", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users SET avatar_url = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns,
			id, url,
		))
		return err
	})

	return u, err
}

func (r *UsersRepo) UpdateCoverImageURL(ctx context.Context, id, url string) (user.User, error) {
	var u user.User

	err := r.observe("users.update_cover_image", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users SET cover_image_url = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns,
			id, url,
		))
		return err
	})

	return u, err
}

// SetRefreshToken unconditionally replaces the stored refresh token hash.
// Used by login, which starts a fresh chain regardless of prior state.
func (r *UsersRepo) SetRefreshToken(ctx context.Context, id, tokenHash string) error {
	return r.observe("users.set_refresh_token", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET refresh_token_hash = $2, updated_at = NOW() WHERE id = $1`,
			id, tokenHash,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}

		return nil
	})
}

// RotateRefreshToken swaps oldHash for newHash in a single compare-and-swap
// update. Zero rows affected means the stored hash changed between read and
// write (concurrent refresh, or reuse of a consumed token).
func (r *UsersRepo) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string) error {
	return r.observe("users.rotate_refresh_token", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users
             SET refresh_token_hash = $3, updated_at = NOW()
             WHERE id = $1 AND refresh_token_hash = $2`,
			id, oldHash, newHash,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return ErrStaleRefreshToken
		}

		return nil
	})
}

func (r *UsersRepo) ClearRefreshToken(ctx context.Context, id string) error {
	return r.observe("users.clear_refresh_token", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE users SET refresh_token_hash = '', updated_at = NOW() WHERE id = $1`,
			id,
		)

		return err
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
