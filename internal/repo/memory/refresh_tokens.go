package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/idprint/internal/domain/session"
)

type RefreshTokensRepo struct {
	mu   sync.Mutex
	rows map[string]session.RefreshToken
}

func NewRefreshTokensRepo() *RefreshTokensRepo {
	return &RefreshTokensRepo{rows: make(map[string]session.RefreshToken)}
}

func (r *RefreshTokensRepo) Create(_ context.Context, row session.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows[row.ID] = row
	return nil
}

func (r *RefreshTokensRepo) Rotate(_ context.Context, oldID, presentedHash string, next session.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	row := r.rows[oldID]

	if err := session.CheckRotatable(row, presentedHash, next.UserID, now); err != nil {
		return err
	}

	row.RevokedAt = &now
	row.ReplacedBy = &next.ID
	r.rows[oldID] = row
	r.rows[next.ID] = next

	return nil
}

func (r *RefreshTokensRepo) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.RevokedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	row.RevokedAt = &now
	r.rows[id] = row
	return nil
}
