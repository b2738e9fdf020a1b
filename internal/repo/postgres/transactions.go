package postgres

import (
	"context"
	"time"

	"github.com/geocoder89/idprint/internal/domain/points"
	"github.com/geocoder89/idprint/internal/utils"
	"github.com/jackc/pgx/v5"
)

// ListTransactions pages a user's ledger newest first using keyset
// pagination on (created_at, id).
func (r *UsersRepo) ListTransactions(
	ctx context.Context,
	userID string,
	limit int,
	beforeCreatedAt time.Time,
	beforeID string,
) (items []points.Transaction, nextCursor *string, hasMore bool, err error) {
	op := "point_transactions.list_cursor"

	q := `
		SELECT id, user_id, kind, operation, amount, balance_after, actor_id, request_id, created_at
		FROM point_transactions
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`

	var rows pgx.Rows
	err = r.prom.ObserveDB(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, q, userID, beforeCreatedAt, beforeID, limit+1)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	out := make([]points.Transaction, 0, limit)

	for rows.Next() {
		var t points.Transaction
		var kind string
		if scanErr := rows.Scan(&t.ID, &t.UserID, &kind, &t.Operation, &t.Amount, &t.BalanceAfter, &t.ActorID, &t.RequestID, &t.CreatedAt); scanErr != nil {
			return nil, nil, false, scanErr
		}
		t.Kind = points.Kind(kind)
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, nil, false, rows.Err()
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]
		cur, encErr := utils.EncodeTransactionCursor(last.CreatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	return out, nextCursor, hasMore, nil
}
