package session

import (
	"errors"
	"time"
)

var (
	ErrRefreshNotFound = errors.New("refresh token not found")
	ErrRefreshRevoked  = errors.New("refresh token revoked")
	ErrRefreshExpired  = errors.New("refresh token expired")
	ErrRefreshMismatch = errors.New("refresh token mismatch")
)

// RefreshToken is the persisted form of a refresh token; only the hash of
// the raw token is stored.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

// CheckRotatable validates a stored row against the presented token. A zero
// row (ID == "") means the lookup missed.
func CheckRotatable(row RefreshToken, presentedHash, userID string, now time.Time) error {
	switch {
	case row.ID == "":
		return ErrRefreshNotFound
	case row.RevokedAt != nil:
		return ErrRefreshRevoked
	case now.After(row.ExpiresAt):
		return ErrRefreshExpired
	// prevents token substitution
	case row.TokenHash != presentedHash || row.UserID != userID:
		return ErrRefreshMismatch
	}
	return nil
}
