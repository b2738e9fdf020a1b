package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTransactionCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	id := uuid.NewString()

	enc, err := EncodeTransactionCursor(at, id)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	c, err := DecodeTransactionCursor(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !c.CreatedAt.Equal(at) || c.ID != id {
		t.Fatalf("unexpected cursor %+v", c)
	}
}

func TestDecodeTransactionCursor_Invalid(t *testing.T) {
	bad := []string{"", "!!!", "e30", "eyJpZCI6Im5vdC1hLXV1aWQiLCJjcmVhdGVkQXQiOiIyMDI2LTAzLTAxVDA5OjAwOjAwWiJ9"}

	for _, c := range bad {
		if _, err := DecodeTransactionCursor(c); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("cursor %q: expected ErrInvalidCursor, got %v", c, err)
		}
	}
}
