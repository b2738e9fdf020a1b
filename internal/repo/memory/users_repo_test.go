package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/geocoder89/idprint/internal/domain/points"
	"github.com/geocoder89/idprint/internal/domain/user"
	"github.com/geocoder89/idprint/internal/utils"
)

func seed(t *testing.T, r *UsersRepo, email string, pts int) user.User {
	t.Helper()

	u, err := r.Create(context.Background(), user.CreateParams{Email: email, Username: "tester", PasswordHash: "x", Points: pts})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestCreate_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	r := NewUsersRepo()
	seed(t, r, "Abebe@Example.com", 0)

	_, err := r.Create(context.Background(), user.CreateParams{Email: "abebe@example.com "})
	if !errors.Is(err, user.ErrEmailAlreadyUsed) {
		t.Fatalf("expected ErrEmailAlreadyUsed, got %v", err)
	}
}

func TestCharge(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()
	u := seed(t, r, "a@example.com", 2)

	bal, err := r.Charge(ctx, u.ID, 1, points.Entry{Operation: points.OpProcessPDF})
	if err != nil || bal != 1 {
		t.Fatalf("first charge: bal=%d err=%v", bal, err)
	}

	_, err = r.Charge(ctx, u.ID, 2, points.Entry{Operation: points.OpProcessPDF})
	var ib *points.InsufficientBalanceError
	if !errors.As(err, &ib) || ib.Balance != 1 || ib.Shortfall() != 1 {
		t.Fatalf("expected insufficient balance with shortfall 1, got %v", err)
	}

	got, _ := r.GetByID(ctx, u.ID)
	if got.Points != 1 {
		t.Fatalf("rejected charge must not change balance, got %d", got.Points)
	}

	if _, err := r.Charge(ctx, "missing", 1, points.Entry{}); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCharge_ConcurrentNeverNegative(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()
	u := seed(t, r, "race@example.com", 3)

	var ok atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Charge(ctx, u.ID, 1, points.Entry{Operation: points.OpProcessScreenshots}); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 3 {
		t.Fatalf("expected exactly 3 successful charges, got %d", ok.Load())
	}

	got, _ := r.GetByID(ctx, u.ID)
	if got.Points != 0 {
		t.Fatalf("expected balance 0, got %d", got.Points)
	}
}

func TestCredit(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()
	seed(t, r, "b@example.com", 5)

	u, err := r.Credit(ctx, "B@example.com", 25, points.Entry{ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if u.Points != 30 {
		t.Fatalf("expected 30, got %d", u.Points)
	}

	if _, err := r.Credit(ctx, "nobody@example.com", 1, points.Entry{}); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTransactions_Paginates(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()
	u := seed(t, r, "ledger@example.com", 0)

	for i := 0; i < 5; i++ {
		if _, err := r.Credit(ctx, u.Email, 1, points.Entry{}); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}

	page1, next, hasMore, err := r.ListTransactions(ctx, u.ID, 3, utils.FirstPageCreatedAt, utils.FirstPageID)
	if err != nil || len(page1) != 3 || !hasMore || next == nil {
		t.Fatalf("page1: len=%d hasMore=%v next=%v err=%v", len(page1), hasMore, next, err)
	}
	for i := 1; i < len(page1); i++ {
		if page1[i].CreatedAt.After(page1[i-1].CreatedAt) {
			t.Fatalf("expected newest first ordering")
		}
	}

	cur, err := utils.DecodeTransactionCursor(*next)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	page2, next2, hasMore2, err := r.ListTransactions(ctx, u.ID, 3, cur.CreatedAt, cur.ID)
	if err != nil || len(page2) != 2 || hasMore2 || next2 != nil {
		t.Fatalf("page2: len=%d hasMore=%v err=%v", len(page2), hasMore2, err)
	}
	if len(seenIDs(page1, page2)) != 5 {
		t.Fatalf("expected 5 distinct transactions across pages")
	}
}

func seenIDs(pages ...[]points.Transaction) map[string]bool {
	seen := map[string]bool{}
	for _, p := range pages {
		for _, tx := range p {
			seen[tx.ID] = true
		}
	}
	return seen
}

