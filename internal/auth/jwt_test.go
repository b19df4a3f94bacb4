package auth

import (
	"testing"
	"time"
)

func newTestManager() *Manager {
	return NewManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	raw, err := m.IssueAccessToken("user-1", "alice", "alice@x.com")

	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)

	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("got user id %q, want user-1", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Errorf("got username %q, want alice", claims.Username)
	}
	if claims.Email != "alice@x.com" {
		t.Errorf("got email %q, want alice@x.com", claims.Email)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	raw, expiresAt, err := m.IssueRefreshToken("user-1")

	if err != nil {
		t.Fatalf("issue refresh token: %v", err)
	}

	if !expiresAt.After(time.Now().Add(6 * 24 * time.Hour)) {
		t.Errorf("refresh expiry %v too soon", expiresAt)
	}

	claims, err := m.VerifyRefreshToken(raw)

	if err != nil {
		t.Fatalf("verify refresh token: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("got user id %q, want user-1", claims.UserID)
	}
}

func TestTokenTypeConfusionRejected(t *testing.T) {
	m := newTestManager()

	access, err := m.IssueAccessToken("user-1", "alice", "alice@x.com")
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}

	refresh, _, err := m.IssueRefreshToken("user-1")
	if err != nil {
		t.Fatalf("issue refresh token: %v", err)
	}

	// tokens are signed with distinct secrets, so crossing them must fail
	if _, err := m.VerifyRefreshToken(access); err == nil {
		t.Error("access token accepted as refresh token")
	}

	if _, err := m.VerifyAccessToken(refresh); err == nil {
		t.Error("refresh token accepted as access token")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	m := newTestManager()
	other := NewManager("other-access", "other-refresh", 15*time.Minute, 7*24*time.Hour)

	raw, _, err := m.IssueRefreshToken("user-1")
	if err != nil {
		t.Fatalf("issue refresh token: %v", err)
	}

	if _, err := other.VerifyRefreshToken(raw); err == nil {
		t.Error("token signed with a different secret was accepted")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewManager("access-secret", "refresh-secret", -time.Minute, -time.Minute)

	raw, err := m.IssueAccessToken("user-1", "alice", "alice@x.com")
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}

	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Error("expired token was accepted")
	}
}

func TestHashRefreshTokenDeterministic(t *testing.T) {
	m := newTestManager()

	raw, _, err := m.IssueRefreshToken("user-1")
	if err != nil {
		t.Fatalf("issue refresh token: %v", err)
	}

	if m.HashRefreshToken(raw) != m.HashRefreshToken(raw) {
		t.Error("hash is not deterministic")
	}

	if m.HashRefreshToken(raw) == m.HashRefreshToken(raw+"x") {
		t.Error("distinct tokens share a hash")
	}
}
