package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/idprint/internal/domain/session"
	"github.com/geocoder89/idprint/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefreshTokensRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRefreshTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *RefreshTokensRepo {
	return &RefreshTokensRepo{pool: pool, prom: prom}
}

func (r *RefreshTokensRepo) Create(ctx context.Context, row session.RefreshToken) error {
	return r.prom.ObserveDB("refresh_tokens.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.RevokedAt, row.ReplacedBy, row.CreatedAt,
		)
		return err
	})
}

// Rotate revokes the presented token and stores its replacement. The old
// row is locked so two concurrent refreshes cannot both succeed.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldID, presentedHash string, next session.RefreshToken) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	var row session.RefreshToken

	err = r.prom.ObserveDB("refresh_tokens.get_for_update", func() error {
		e := tx.QueryRow(ctx, `
			SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
			FROM refresh_tokens
			WHERE id = $1
			FOR UPDATE
		`, oldID).Scan(
			&row.ID,
			&row.UserID,
			&row.TokenHash,
			&row.ExpiresAt,
			&row.RevokedAt,
			&row.ReplacedBy,
			&row.CreatedAt,
		)
		if errors.Is(e, pgx.ErrNoRows) {
			return nil
		}
		return e
	})
	if err != nil {
		return err
	}

	if err := session.CheckRotatable(row, presentedHash, next.UserID, time.Now().UTC()); err != nil {
		return err
	}

	err = r.prom.ObserveDB("refresh_tokens.revoke", func() error {
		_, e := tx.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW(), replaced_by = $2
			WHERE id = $1
		`, oldID, next.ID)
		return e
	})
	if err != nil {
		return err
	}

	err = r.prom.ObserveDB("refresh_tokens.create", func() error {
		_, e := tx.Exec(ctx,
			`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5)`,
			next.ID, next.UserID, next.TokenHash, next.ExpiresAt, next.CreatedAt,
		)
		return e
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Revoke is idempotent.
func (r *RefreshTokensRepo) Revoke(ctx context.Context, id string) error {
	return r.prom.ObserveDB("refresh_tokens.revoke", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW()
			WHERE id = $1 AND revoked_at IS NULL
		`, id)
		return err
	})
}
