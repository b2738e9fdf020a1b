package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/idprint/internal/domain/points"
	"github.com/geocoder89/idprint/internal/domain/user"
	"github.com/geocoder89/idprint/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, username, phone, password_hash, points, role, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.Phone,
		&u.PasswordHash,
		&u.Points,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *UsersRepo) Create(ctx context.Context, p user.CreateParams) (u user.User, err error) {
	now := time.Now().UTC()
	role := p.Role
	if role == "" {
		role = user.RoleUser
	}

	err = r.prom.ObserveDB("users.create", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `
			INSERT INTO users (id, email, username, phone, password_hash, points, role, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
			RETURNING `+userColumns,
			uuid.NewString(), user.NormalizeEmail(p.Email), p.Username, p.Phone, p.PasswordHash, p.Points, role, now,
		))
		return e
	})

	if IsUniqueViolation(err) {
		return user.User{}, user.ErrEmailAlreadyUsed
	}
	return
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (u user.User, err error) {
	if _, perr := uuid.Parse(id); perr != nil {
		return user.User{}, user.ErrNotFound
	}

	err = r.prom.ObserveDB("users.get_by_id", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		if errors.Is(e, user.ErrNotFound) {
			// a miss is not a DB error
			return nil
		}
		return e
	})
	if err == nil && u.ID == "" {
		err = user.ErrNotFound
	}
	return
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.prom.ObserveDB("users.get_by_email", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email)))
		if errors.Is(e, user.ErrNotFound) {
			return nil
		}
		return e
	})
	if err == nil && u.ID == "" {
		err = user.ErrNotFound
	}
	return
}

// Charge decrements the balance by cost only if the balance covers it and
// records the ledger row in the same transaction. The conditional UPDATE is
// the single serialization point for concurrent spends.
func (r *UsersRepo) Charge(ctx context.Context, userID string, cost int, e points.Entry) (balance int, err error) {
	if _, perr := uuid.Parse(userID); perr != nil {
		return 0, user.ErrNotFound
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	applied := true
	err = r.prom.ObserveDB("users.charge", func() error {
		e := tx.QueryRow(ctx, `
			UPDATE users
			SET points = points - $2, updated_at = NOW()
			WHERE id = $1 AND points >= $2
			RETURNING points
		`, userID, cost).Scan(&balance)
		if errors.Is(e, pgx.ErrNoRows) {
			applied = false
			return nil
		}
		return e
	})
	if err != nil {
		return 0, err
	}
	if !applied {
		return 0, r.explainMissedCharge(ctx, tx, userID, cost)
	}

	txn := points.NewTransaction(userID, points.KindCharge, cost, balance, e)
	if err = r.insertTransaction(ctx, tx, txn); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// explainMissedCharge tells a missing user apart from a short balance.
func (r *UsersRepo) explainMissedCharge(ctx context.Context, tx pgx.Tx, userID string, cost int) error {
	current := -1

	err := r.prom.ObserveDB("users.charge.recheck", func() error {
		e := tx.QueryRow(ctx, `SELECT points FROM users WHERE id = $1`, userID).Scan(&current)
		if errors.Is(e, pgx.ErrNoRows) {
			return nil
		}
		return e
	})
	if err != nil {
		return err
	}
	if current < 0 {
		return user.ErrNotFound
	}

	return &points.InsufficientBalanceError{Balance: current, Cost: cost}
}

func (r *UsersRepo) Credit(ctx context.Context, email string, amount int, e points.Entry) (u user.User, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return user.User{}, err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.prom.ObserveDB("users.credit", func() error {
		var e error
		u, e = scanUser(tx.QueryRow(ctx, `
			UPDATE users
			SET points = points + $2, updated_at = NOW()
			WHERE email = $1
			RETURNING `+userColumns,
			user.NormalizeEmail(email), amount,
		))
		if errors.Is(e, user.ErrNotFound) {
			return nil
		}
		return e
	})
	if err != nil {
		return user.User{}, err
	}
	if u.ID == "" {
		return user.User{}, user.ErrNotFound
	}

	txn := points.NewTransaction(u.ID, points.KindCredit, amount, u.Points, e)
	if err = r.insertTransaction(ctx, tx, txn); err != nil {
		return user.User{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) insertTransaction(ctx context.Context, tx pgx.Tx, t points.Transaction) error {
	return r.prom.ObserveDB("point_transactions.insert", func() error {
		_, err := tx.Exec(ctx, `
			INSERT INTO point_transactions (id, user_id, kind, operation, amount, balance_after, actor_id, request_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, t.ID, t.UserID, string(t.Kind), t.Operation, t.Amount, t.BalanceAfter, t.ActorID, t.RequestID, t.CreatedAt)
		return err
	})
}
