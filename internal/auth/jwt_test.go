package auth

import (
	"errors"
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, err := m.GenerateAccessToken("user-1", "a@example.com", "ADMIRAL")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.UserID != "user-1" || claims.Email != "a@example.com" || claims.Role != "ADMIRAL" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, jti, expiresAt, err := m.GenerateRefreshToken("user-1", "a@example.com", "USER")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if jti == "" || expiresAt.IsZero() {
		t.Fatalf("expected jti and expiry")
	}

	if _, err := m.VerifyAccessToken(raw); !errors.Is(err, ErrInvalidTokenType) {
		t.Fatalf("expected ErrInvalidTokenType, got %v", err)
	}

	claims, err := m.VerifyRefreshToken(raw)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if claims.JTI != jti {
		t.Fatalf("jti mismatch: %s vs %s", claims.JTI, jti)
	}
}

func TestVerify_WrongSecretAndExpired(t *testing.T) {
	signer := NewManager("secret-a", time.Minute, time.Hour)
	other := NewManager("secret-b", time.Minute, time.Hour)

	raw, _ := signer.GenerateAccessToken("user-1", "a@example.com", "USER")
	if _, err := other.VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected signature failure")
	}

	expired := NewManager("secret-a", -time.Minute, time.Hour)
	raw, _ = expired.GenerateAccessToken("user-1", "a@example.com", "USER")
	if _, err := signer.VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected expiry failure")
	}
}

func TestHashRefreshToken_Deterministic(t *testing.T) {
	m := NewManager("pepper", time.Minute, time.Hour)

	if m.HashRefreshToken("abc") != m.HashRefreshToken("abc") {
		t.Fatalf("hash should be deterministic")
	}
	if m.HashRefreshToken("abc") == m.HashRefreshToken("abd") {
		t.Fatalf("different inputs should not collide")
	}
}
