package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCursor = errors.New("invalid cursor")

type TransactionCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// First-page sentinel for newest-first listings: every real row sorts
// before it.
var (
	FirstPageCreatedAt = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	FirstPageID        = "ffffffff-ffff-ffff-ffff-ffffffffffff"
)

func EncodeTransactionCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(TransactionCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeTransactionCursor(cursor string) (TransactionCursor, error) {
	if cursor == "" {
		return TransactionCursor{}, ErrInvalidCursor
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return TransactionCursor{}, ErrInvalidCursor
	}

	var c TransactionCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return TransactionCursor{}, ErrInvalidCursor
	}
	if !IsUUID(c.ID) || c.CreatedAt.IsZero() {
		return TransactionCursor{}, ErrInvalidCursor
	}
	return c, nil
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
