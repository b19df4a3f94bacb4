package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/accounthub/internal/auth"
	"github.com/geocoder89/accounthub/internal/config"
	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/geocoder89/accounthub/internal/http/middlewares"
	"github.com/geocoder89/accounthub/internal/repo/postgres"
	"github.com/geocoder89/accounthub/internal/security"
	"github.com/geocoder89/accounthub/internal/service"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore is a single-user store satisfying both the session and the
// profile store interfaces.
type fakeStore struct {
	u       user.User
	hasUser bool
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (user.User, error) {
	if !f.hasUser || f.u.ID != id {
		return user.User{}, postgres.ErrUserNotFound
	}
	return f.u, nil
}

func (f *fakeStore) GetByUsernameOrEmail(ctx context.Context, username, email string) (user.User, error) {
	if !f.hasUser {
		return user.User{}, postgres.ErrUserNotFound
	}
	if (username != "" && f.u.Username == username) || (email != "" && f.u.Email == email) {
		return f.u, nil
	}
	return user.User{}, postgres.ErrUserNotFound
}

func (f *fakeStore) Create(ctx context.Context, u user.User) (user.User, error) {
	if f.hasUser && (f.u.Username == u.Username || f.u.Email == u.Email) {
		return user.User{}, postgres.ErrUserExists
	}
	f.u = u
	f.hasUser = true
	return u, nil
}

func (f *fakeStore) UpdateAccountDetails(ctx context.Context, id, fullName, email string) (user.User, error) {
	if !f.hasUser || f.u.ID != id {
		return user.User{}, postgres.ErrUserNotFound
	}
	f.u.FullName = fullName
	f.u.Email = email
	return f.u, nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if !f.hasUser || f.u.ID != id {
		return postgres.ErrUserNotFound
	}
	f.u.PasswordHash = passwordHash
	return nil
}

func (f *fakeStore) UpdateAvatarURL(ctx context.Context, id, url string) (user.User, error) {
	if !f.hasUser || f.u.ID != id {
		return user.User{}, postgres.ErrUserNotFound
	}
	f.u.AvatarURL = url
	return f.u, nil
}

func (f *fakeStore) UpdateCoverImageURL(ctx context.Context, id, url string) (user.User, error) {
	if !f.hasUser || f.u.ID != id {
		return user.User{}, postgres.ErrUserNotFound
	}
	f.u.CoverImageURL = url
	return f.u, nil
}

func (f *fakeStore) SetRefreshToken(ctx context.Context, id, tokenHash string) error {
	if !f.hasUser || f.u.ID != id {
		return postgres.ErrUserNotFound
	}
	f.u.RefreshTokenHash = tokenHash
	return nil
}

func (f *fakeStore) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string) error {
	if !f.hasUser || f.u.ID != id {
		return postgres.ErrUserNotFound
	}
	if f.u.RefreshTokenHash != oldHash {
		return postgres.ErrStaleRefreshToken
	}
	f.u.RefreshTokenHash = newHash
	return nil
}

func (f *fakeStore) ClearRefreshToken(ctx context.Context, id string) error {
	if !f.hasUser || f.u.ID != id {
		return postgres.ErrUserNotFound
	}
	f.u.RefreshTokenHash = ""
	return nil
}

type stubUploader struct {
	url string
}

func (s *stubUploader) Upload(ctx context.Context, localPath string) (string, error) {
	return s.url, nil
}

type testEnv struct {
	router *gin.Engine
	store  *fakeStore
	jwt    *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &fakeStore{}
	jwtm := auth.NewManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)

	cfg := config.Config{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}

	sessions := service.NewSessionService(store, jwtm, log)
	profiles := service.NewProfileService(store, &stubUploader{url: "https://cdn.example/file.png"}, nil, t.TempDir(), log)

	sh := NewSessionHandler(sessions, cfg)
	uh := NewUsersHandler(profiles)

	authmw := middlewares.NewAuthMiddleware(jwtm)

	r := gin.New()

	users := r.Group("/api/v1/users")
	users.POST("/register", uh.Register)
	users.POST("/login", sh.Login)
	users.POST("/refresh-token", sh.Refresh)

	secured := users.Group("", authmw.RequireAuth())
	secured.POST("/logout", sh.Logout)
	secured.POST("/change-password", uh.ChangePassword)
	secured.GET("/current-user", uh.CurrentUser)
	secured.PATCH("/account-details", uh.UpdateAccountDetails)
	secured.PATCH("/avatar", uh.UpdateAvatar)
	secured.PATCH("/cover-image", uh.UpdateCoverImage)

	return &testEnv{router: r, store: store, jwt: jwtm}
}

func (e *testEnv) seedUser(t *testing.T, password string) user.User {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	e.store.u = user.User{
		ID:           "user-1",
		Username:     "alice",
		Email:        "alice@x.com",
		FullName:     "Alice Li",
		PasswordHash: hash,
		AvatarURL:    "https://cdn.example/avatar.png",
		Role:         "user",
	}
	e.store.hasUser = true

	return e.store.u
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, mutate func(*http.Request)) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer

	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	if mutate != nil {
		mutate(req)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v\nbody: %s", err, rec.Body.String())
		}
	}

	return rec, env
}

func cookieValue(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}

	return nil
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "correct horse")

	rec, body := doJSON(t, env.router, http.MethodPost, "/api/v1/users/login", gin.H{
		"username": "alice",
		"password": "correct horse",
	}, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	if !body.Success || body.StatusCode != http.StatusCreated {
		t.Errorf("bad envelope: %+v", body)
	}

	var data struct {
		User         user.Public `json:"user"`
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}

	if data.User.Username != "alice" {
		t.Errorf("got user %q", data.User.Username)
	}
	if data.AccessToken == "" || data.RefreshToken == "" {
		t.Error("token pair missing from response body")
	}
	if strings.Contains(rec.Body.String(), "passwordHash") {
		t.Error("password material leaked into the response")
	}

	for _, name := range []string{"accessToken", "refreshToken"} {
		c := cookieValue(t, rec, name)
		if c == nil {
			t.Fatalf("cookie %q not set", name)
		}
		if !c.HttpOnly || !c.Secure {
			t.Errorf("cookie %q must be HttpOnly and Secure", name)
		}
	}

	// the stored hash must correspond to the returned refresh token
	if env.store.u.RefreshTokenHash != env.jwt.HashRefreshToken(data.RefreshToken) {
		t.Error("stored refresh hash does not match the issued token")
	}
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       gin.H
		wantStatus int
	}{
		{
			name:       "wrong_password",
			body:       gin.H{"username": "alice", "password": "nope"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown_user",
			body:       gin.H{"username": "bob", "password": "correct horse"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing_password",
			body:       gin.H{"username": "alice"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no_identifier",
			body:       gin.H{"password": "correct horse"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.seedUser(t, "correct horse")

			rec, body := doJSON(t, env.router, http.MethodPost, "/api/v1/users/login", tt.body, nil)

			if rec.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if body.Success {
				t.Error("success must be false on failure")
			}
			if cookieValue(t, rec, "refreshToken") != nil {
				t.Error("refresh cookie set on failed login")
			}
		})
	}
}

func login(t *testing.T, env *testEnv) (accessToken, refreshToken string) {
	t.Helper()

	rec, body := doJSON(t, env.router, http.MethodPost, "/api/v1/users/login", gin.H{
		"username": "alice",
		"password": "correct horse",
	}, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}

	return data.AccessToken, data.RefreshToken
}

func TestRefreshFromCookie(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "correct horse")

	_, refresh := login(t, env)

	rec, body := doJSON(t, env.router, http.MethodPost, "/api/v1/users/refresh-token", nil, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}

	var data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}

	if data.RefreshToken == "" || data.RefreshToken == refresh {
		t.Error("refresh must rotate to a new token")
	}
	if cookieValue(t, rec, "refreshToken") == nil {
		t.Error("rotated refresh cookie not set")
	}
}

func TestRefreshFromBody(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "correct horse")

	_, refresh := login(t, env)

	rec, _ := doJSON(t, env.router, http.MethodPost, "/api/v1/users/refresh-token", gin.H{
		"refreshToken": refresh,
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshReuseRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "correct horse")

	_, refresh := login(t, env)

	rec, _ := doJSON(t, env.router, http.MethodPost, "/api/v1/users/refresh-token", gin.H{
		"refreshToken": refresh,
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("first refresh failed: %d %s", rec.Code, rec.Body.String())
	}

	// replaying the consumed token must be rejected
	rec, body := doJSON(t, env.router, http.MethodPost, "/api/v1/users/refresh-token", gin.H{
		"refreshToken": refresh,
	}, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401, body %s", rec.Code, rec.Body.String())
	}
	if body.Success {
		t.Error("success must be false on reuse")
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "correct horse")

	rec, _ := doJSON(t, env.router, http.MethodPost, "/api/v1/users/refresh-token", nil, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401, body %s", rec.Code, rec.Body.String())
	}
}

func TestLogoutEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "correct horse")

	access, _ := login(t, env)

	if env.store.u.RefreshTokenHash == "" {
		t.Fatal("login did not persist a refresh hash")
	}

	rec, body := doJSON(t, env.router, http.MethodPost, "/api/v1/users/logout", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+access)
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	if !body.Success {
		t.Error("success must be true")
	}
	if env.store.u.RefreshTokenHash != "" {
		t.Error("refresh hash not cleared on logout")
	}

	for _, name := range []string{"accessToken", "refreshToken"} {
		c := cookieValue(t, rec, name)
		if c == nil || c.MaxAge >= 0 {
			t.Errorf("cookie %q not cleared", name)
		}
	}
}

func TestLogoutRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := doJSON(t, env.router, http.MethodPost, "/api/v1/users/logout", nil, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestAuthViaAccessCookie(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "correct horse")

	access, _ := login(t, env)

	rec, _ := doJSON(t, env.router, http.MethodGet, "/api/v1/users/current-user", nil, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: access})
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
}
