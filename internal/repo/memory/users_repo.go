package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/idprint/internal/domain/points"
	"github.com/geocoder89/idprint/internal/domain/user"
	"github.com/geocoder89/idprint/internal/utils"
	"github.com/google/uuid"
)

// UsersRepo is a process-local balance store. A single mutex guards users
// and ledger so Charge is as atomic as the conditional UPDATE in postgres.
type UsersRepo struct {
	mu      sync.Mutex
	byID    map[string]user.User
	byEmail map[string]string
	txns    []points.Transaction
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Create(_ context.Context, p user.CreateParams) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := user.NormalizeEmail(p.Email)
	if _, exists := r.byEmail[email]; exists {
		return user.User{}, user.ErrEmailAlreadyUsed
	}

	role := p.Role
	if role == "" {
		role = user.RoleUser
	}

	now := time.Now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     p.Username,
		Phone:        p.Phone,
		PasswordHash: p.PasswordHash,
		Points:       p.Points,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.byID[u.ID] = u
	r.byEmail[email] = u.ID

	return u, nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *UsersRepo) Charge(ctx context.Context, userID string, cost int, e points.Entry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return 0, user.ErrNotFound
	}

	if u.Points < cost {
		return 0, &points.InsufficientBalanceError{Balance: u.Points, Cost: cost}
	}

	u.Points -= cost
	u.UpdatedAt = time.Now().UTC()
	r.byID[userID] = u
	r.txns = append(r.txns, points.NewTransaction(userID, points.KindCharge, cost, u.Points, e))

	return u.Points, nil
}

func (r *UsersRepo) Credit(ctx context.Context, email string, amount int, e points.Entry) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u := r.byID[id]
	u.Points += amount
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	r.txns = append(r.txns, points.NewTransaction(id, points.KindCredit, amount, u.Points, e))

	return u, nil
}

func (r *UsersRepo) ListTransactions(
	_ context.Context,
	userID string,
	limit int,
	beforeCreatedAt time.Time,
	beforeID string,
) ([]points.Transaction, *string, bool, error) {
	r.mu.Lock()
	matched := make([]points.Transaction, 0)
	for _, t := range r.txns {
		if t.UserID == userID && before(t, beforeCreatedAt, beforeID) {
			matched = append(matched, t)
		}
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if len(matched) <= limit {
		return matched, nil, false, nil
	}

	page := matched[:limit]
	last := page[len(page)-1]
	cur, err := utils.EncodeTransactionCursor(last.CreatedAt, last.ID)
	if err != nil {
		return nil, nil, false, err
	}
	return page, &cur, true, nil
}

// before mirrors the SQL row comparison (created_at, id) < ($1, $2).
func before(t points.Transaction, at time.Time, id string) bool {
	if t.CreatedAt.Before(at) {
		return true
	}
	return t.CreatedAt.Equal(at) && t.ID < id
}
