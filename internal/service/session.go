package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/accounthub/internal/auth"
	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/geocoder89/accounthub/internal/repo/postgres"
	"github.com/geocoder89/accounthub/internal/security"
)

// Store surface the session manager needs. Kept small so tests can
// fake it easily.
type SessionUserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (user.User, error)
	SetRefreshToken(ctx context.Context, id, tokenHash string) error
	RotateRefreshToken(ctx context.Context, id, oldHash, newHash string) error
	ClearRefreshToken(ctx context.Context, id string) error
}

// SessionService owns the (user, refreshToken) state machine: login
// moves a user to LoggedIn with a fresh token, refresh rotates the
// token in place, logout clears it.
type SessionService struct {
	users SessionUserStore
	jwt   *auth.Manager
	log   *slog.Logger
}

func NewSessionService(users SessionUserStore, jwt *auth.Manager, log *slog.Logger) *SessionService {
	return &SessionService{users: users, jwt: jwt, log: log}
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type SessionResult struct {
	User             user.Public
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

func (s *SessionService) Login(ctx context.Context, in LoginInput) (*SessionResult, *Error) {
	username := user.NormalizeUsername(in.Username)
	email := user.NormalizeEmail(in.Email)

	if username == "" && email == "" {
		return nil, BadRequest("username or email is required")
	}

	u, err := s.users.GetByUsernameOrEmail(ctx, username, email)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return nil, NotFound("No user found for the given identifier")
		}

		s.log.Error("login lookup failed", "err", err)
		return nil, Internal("Could not log in")
	}

	if err := security.CheckPassword(u.PasswordHash, in.Password); err != nil {
		return nil, Unauthorized(CodeInvalidCredentials, "Invalid credentials")
	}

	return s.issueSession(ctx, u)
}

// issueSession mints a fresh access/refresh pair and persists the new
// refresh hash, replacing whatever chain was live before.
func (s *SessionService) issueSession(ctx context.Context, u user.User) (*SessionResult, *Error) {
	accessToken, err := s.jwt.IssueAccessToken(u.ID, u.Username, u.Email)

	if err != nil {
		s.log.Error("access token issue failed", "err", err)
		return nil, Internal("Could not create session")
	}

	rawRefresh, expiresAt, err := s.jwt.IssueRefreshToken(u.ID)

	if err != nil {
		s.log.Error("refresh token issue failed", "err", err)
		return nil, Internal("Could not create session")
	}

	if err := s.users.SetRefreshToken(ctx, u.ID, s.jwt.HashRefreshToken(rawRefresh)); err != nil {
		s.log.Error("refresh token persist failed", "err", err, "user_id", u.ID)
		return nil, Internal("Could not create session")
	}

	return &SessionResult{
		User:             u.Public(),
		AccessToken:      accessToken,
		RefreshToken:     rawRefresh,
		RefreshExpiresAt: expiresAt,
	}, nil
}

// Refresh rotates a presented refresh token. The presented token must
// hash-equal the single stored value; a consumed token fails the swap
// even though its signature is still valid.
func (s *SessionService) Refresh(ctx context.Context, rawToken string) (*SessionResult, *Error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, Unauthorized(CodeMissingToken, "Missing refresh token")
	}

	claims, err := s.jwt.VerifyRefreshToken(rawToken)

	if err != nil {
		return nil, Unauthorized(CodeInvalidToken, "Invalid refresh token")
	}

	u, err := s.users.GetByID(ctx, claims.UserID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return nil, NotFound("No user found for the given token")
		}

		s.log.Error("refresh lookup failed", "err", err)
		return nil, Internal("Could not refresh session")
	}

	oldHash := s.jwt.HashRefreshToken(rawToken)

	if u.RefreshTokenHash == "" || u.RefreshTokenHash != oldHash {
		return nil, Unauthorized(CodeTokenReuse, "Refresh token already rotated or revoked")
	}

	accessToken, err := s.jwt.IssueAccessToken(u.ID, u.Username, u.Email)

	if err != nil {
		s.log.Error("access token issue failed", "err", err)
		return nil, Internal("Could not refresh session")
	}

	newRaw, expiresAt, err := s.jwt.IssueRefreshToken(u.ID)

	if err != nil {
		s.log.Error("refresh token issue failed", "err", err)
		return nil, Internal("Could not refresh session")
	}

	// compare-and-swap: if another refresh won the race between our read
	// and this write, the old hash no longer matches and we reject.
	err = s.users.RotateRefreshToken(ctx, u.ID, oldHash, s.jwt.HashRefreshToken(newRaw))

	if err != nil {
		if errors.Is(err, postgres.ErrStaleRefreshToken) {
			return nil, Unauthorized(CodeTokenReuse, "Refresh token already rotated or revoked")
		}

		s.log.Error("refresh rotation failed", "err", err, "user_id", u.ID)
		return nil, Internal("Could not refresh session")
	}

	return &SessionResult{
		User:             u.Public(),
		AccessToken:      accessToken,
		RefreshToken:     newRaw,
		RefreshExpiresAt: expiresAt,
	}, nil
}

// Logout clears the stored refresh token. It succeeds for any
// authenticated caller; a store failure is logged, not surfaced.
func (s *SessionService) Logout(ctx context.Context, userID string) {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		s.log.Error("logout clear failed", "err", err, "user_id", userID)
	}
}
