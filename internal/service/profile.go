package service

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"os"
	"strings"

	"github.com/geocoder89/accounthub/internal/cache"
	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/geocoder89/accounthub/internal/media"
	"github.com/geocoder89/accounthub/internal/repo/postgres"
	"github.com/geocoder89/accounthub/internal/security"
	"github.com/google/uuid"
)

type ProfileUserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	UpdateAccountDetails(ctx context.Context, id, fullName, email string) (user.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAvatarURL(ctx context.Context, id, url string) (user.User, error)
	UpdateCoverImageURL(ctx context.Context, id, url string) (user.User, error)
}

// ProfileService orchestrates registration and profile mutations:
// validation, media uploads, store writes, cache invalidation.
type ProfileService struct {
	users     ProfileUserStore
	uploader  media.Uploader
	userCache *cache.Users
	tempDir   string
	log       *slog.Logger
}

func NewProfileService(users ProfileUserStore, uploader media.Uploader, userCache *cache.Users, tempDir string, log *slog.Logger) *ProfileService {
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return &ProfileService{
		users:     users,
		uploader:  uploader,
		userCache: userCache,
		tempDir:   tempDir,
		log:       log,
	}
}

type RegisterInput struct {
	FullName string
	Email    string
	Username string
	Password string

	Avatar     *multipart.FileHeader
	CoverImage *multipart.FileHeader
}

func (s *ProfileService) Register(ctx context.Context, in RegisterInput) (*user.Public, *Error) {
	// Trimmed-length validation: a whitespace-only value is still missing.
	fields := []struct {
		name  string
		value string
	}{
		{"fullName", in.FullName},
		{"email", in.Email},
		{"username", in.Username},
		{"password", in.Password},
	}

	missing := []string{}

	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name+" is required")
		}
	}

	if len(missing) > 0 {
		return nil, BadRequest("All fields are required", missing...)
	}

	username := user.NormalizeUsername(in.Username)
	email := user.NormalizeEmail(in.Email)

	_, err := s.users.GetByUsernameOrEmail(ctx, username, email)

	if err == nil {
		// no write happens past this point for a duplicate
		return nil, Conflict("User with this username or email already exists")
	}

	if !errors.Is(err, postgres.ErrUserNotFound) {
		s.log.Error("register lookup failed", "err", err)
		return nil, Internal("Could not register user")
	}

	if in.Avatar == nil {
		return nil, BadRequest("Avatar file is required")
	}

	avatarURL, upErr := s.uploadStaged(ctx, in.Avatar)

	if upErr != nil {
		return nil, UploadFailed("Failed to upload avatar")
	}

	// cover image is optional and its upload failure is tolerated
	coverImageURL := ""

	if in.CoverImage != nil {
		url, err := s.uploadStaged(ctx, in.CoverImage)
		if err != nil {
			s.log.Warn("cover image upload failed", "err", err)
		} else {
			coverImageURL = url
		}
	}

	hash, err := security.HashPassword(in.Password)

	if err != nil {
		s.log.Error("password hash failed", "err", err)
		return nil, Internal("Could not register user")
	}

	created, err := s.users.Create(ctx, user.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      strings.TrimSpace(in.FullName),
		PasswordHash:  hash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
		Role:          "user",
	})

	if err != nil {
		if errors.Is(err, postgres.ErrUserExists) {
			return nil, Conflict("User with this username or email already exists")
		}

		s.log.Error("register create failed", "err", err)
		return nil, Internal("Could not register user")
	}

	// re-read what was persisted; the stored row is the source of truth
	fresh, err := s.users.GetByID(ctx, created.ID)

	if err != nil {
		s.log.Error("register re-read failed", "err", err, "user_id", created.ID)
		return nil, Internal("Could not read back created user")
	}

	p := fresh.Public()

	return &p, nil
}

func (s *ProfileService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) *Error {
	if strings.TrimSpace(newPassword) == "" {
		return BadRequest("New password is required")
	}

	u, err := s.users.GetByID(ctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return NotFound("User not found")
		}

		s.log.Error("change password lookup failed", "err", err)
		return Internal("Could not change password")
	}

	if err := security.CheckPassword(u.PasswordHash, oldPassword); err != nil {
		return Unauthorized(CodeInvalidCredentials, "Current password is incorrect")
	}

	hash, err := security.HashPassword(newPassword)

	if err != nil {
		s.log.Error("password hash failed", "err", err)
		return Internal("Could not change password")
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		s.log.Error("change password persist failed", "err", err)
		return Internal("Could not change password")
	}

	return nil
}

// CurrentUser returns the freshly fetched record, cache-aside.
func (s *ProfileService) CurrentUser(ctx context.Context, userID string) (*user.Public, *Error) {
	if s.userCache != nil {
		if p, ok := s.userCache.Get(ctx, userID); ok {
			return &p, nil
		}
	}

	u, err := s.users.GetByID(ctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return nil, NotFound("User not found")
		}

		s.log.Error("current user lookup failed", "err", err)
		return nil, Internal("Could not fetch user")
	}

	p := u.Public()

	if s.userCache != nil {
		s.userCache.Set(ctx, p)
	}

	return &p, nil
}

func (s *ProfileService) UpdateAccount(ctx context.Context, userID, fullName, email string) (*user.Public, *Error) {
	if strings.TrimSpace(fullName) == "" || strings.TrimSpace(email) == "" {
		return nil, BadRequest("fullName and email are required")
	}

	u, err := s.users.UpdateAccountDetails(ctx, userID, strings.TrimSpace(fullName), user.NormalizeEmail(email))

	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrUserNotFound):
			return nil, NotFound("User not found")
		case errors.Is(err, postgres.ErrUserExists):
			return nil, Conflict("Email already in use")
		}

		s.log.Error("account update failed", "err", err)
		return nil, Internal("Could not update account details")
	}

	s.invalidate(ctx, userID)

	p := u.Public()

	return &p, nil
}

func (s *ProfileService) UpdateAvatar(ctx context.Context, userID string, fh *multipart.FileHeader) (*user.Public, *Error) {
	return s.updateImage(ctx, userID, fh, "Avatar", s.users.UpdateAvatarURL)
}

func (s *ProfileService) UpdateCoverImage(ctx context.Context, userID string, fh *multipart.FileHeader) (*user.Public, *Error) {
	return s.updateImage(ctx, userID, fh, "Cover image", s.users.UpdateCoverImageURL)
}

func (s *ProfileService) updateImage(
	ctx context.Context,
	userID string,
	fh *multipart.FileHeader,
	label string,
	persist func(ctx context.Context, id, url string) (user.User, error),
) (*user.Public, *Error) {
	if fh == nil {
		return nil, BadRequest(label + " file is required")
	}

	url, err := s.uploadStaged(ctx, fh)

	if err != nil {
		return nil, UploadFailed("Failed to upload " + strings.ToLower(label))
	}

	u, err := persist(ctx, userID, url)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return nil, NotFound("User not found")
		}

		s.log.Error("image update failed", "err", err, "user_id", userID)
		return nil, Internal("Could not update " + strings.ToLower(label))
	}

	s.invalidate(ctx, userID)

	p := u.Public()

	return &p, nil
}

// uploadStaged writes the multipart file to local disk, pushes it to
// media storage, and removes the staged copy either way.
func (s *ProfileService) uploadStaged(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	path, err := media.StageFile(fh, s.tempDir)

	if err != nil {
		s.log.Error("file staging failed", "err", err, "filename", fh.Filename)
		return "", err
	}

	defer func() { _ = os.Remove(path) }()

	url, err := s.uploader.Upload(ctx, path)

	if err != nil {
		s.log.Error("media upload failed", "err", err, "filename", fh.Filename)
		return "", err
	}

	return url, nil
}

func (s *ProfileService) invalidate(ctx context.Context, userID string) {
	if s.userCache != nil {
		s.userCache.Invalidate(ctx, userID)
	}
}
