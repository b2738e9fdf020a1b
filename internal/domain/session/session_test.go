package session

import (
	"errors"
	"testing"
	"time"
)

func TestCheckRotatable(t *testing.T) {
	now := time.Now().UTC()
	revokedAt := now.Add(-time.Minute)

	valid := RefreshToken{ID: "t1", UserID: "u1", TokenHash: "h1", ExpiresAt: now.Add(time.Hour)}

	tests := []struct {
		name string
		row  RefreshToken
		hash string
		user string
		want error
	}{
		{name: "ok", row: valid, hash: "h1", user: "u1"},
		{name: "missing", row: RefreshToken{}, hash: "h1", user: "u1", want: ErrRefreshNotFound},
		{name: "revoked", row: func() RefreshToken { r := valid; r.RevokedAt = &revokedAt; return r }(), hash: "h1", user: "u1", want: ErrRefreshRevoked},
		{name: "expired", row: func() RefreshToken { r := valid; r.ExpiresAt = now.Add(-time.Second); return r }(), hash: "h1", user: "u1", want: ErrRefreshExpired},
		{name: "hash_mismatch", row: valid, hash: "other", user: "u1", want: ErrRefreshMismatch},
		{name: "user_mismatch", row: valid, hash: "h1", user: "u2", want: ErrRefreshMismatch},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRotatable(tt.row, tt.hash, tt.user, now)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}
