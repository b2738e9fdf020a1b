// Package metering charges points for extractor calls. The rules are
// simple: a call is only attempted when the balance covers its cost, and
// the balance is only decremented after the extractor returned a usable
// result.
package metering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/idprint/internal/actorctx"
	"github.com/geocoder89/idprint/internal/domain/extraction"
	"github.com/geocoder89/idprint/internal/domain/points"
	"github.com/geocoder89/idprint/internal/domain/user"
	"github.com/geocoder89/idprint/internal/extractor"
	"github.com/geocoder89/idprint/internal/lease"
	"github.com/geocoder89/idprint/internal/observability"
	"github.com/geocoder89/idprint/internal/utils"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Store is the balance authority. Charge must decrement only when the
// balance covers cost, as one atomic step.
type Store interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	Charge(ctx context.Context, userID string, cost int, e points.Entry) (int, error)
	Credit(ctx context.Context, email string, amount int, e points.Entry) (user.User, error)
	ListTransactions(ctx context.Context, userID string, limit int, beforeCreatedAt time.Time, beforeID string) ([]points.Transaction, *string, bool, error)
}

type Service struct {
	store     Store
	extractor extractor.Extractor
	lease     lease.Locker
	prom      *observability.Prom
	log       *slog.Logger
}

type Option func(*Service)

func WithLease(l lease.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.lease = l
		}
	}
}

func WithProm(p *observability.Prom) Option {
	return func(s *Service) { s.prom = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(store Store, ex extractor.Extractor, opts ...Option) *Service {
	s := &Service{
		store:     store,
		extractor: ex,
		lease:     lease.Noop{},
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ProcessRequest struct {
	Operation points.Operation
	Payload   extractor.Payload
	RequestID string
}

// Outcome carries the upstream body untouched alongside its decoded form.
type Outcome struct {
	Result  extraction.Result
	Raw     []byte
	Balance int
	Cost    int
}

// Process runs one paid extraction for the caller.
func (s *Service) Process(ctx context.Context, p actorctx.Principal, req ProcessRequest) (Outcome, error) {
	if !p.Authenticated() {
		return Outcome{}, points.ErrUnauthorized
	}

	op := req.Operation
	cost, ok := points.CostOf(op)
	if !ok {
		return Outcome{}, &points.InputError{Field: "operation", Message: "is not supported"}
	}
	if err := req.Payload.Validate(op); err != nil {
		return Outcome{}, err
	}

	u, err := s.store.GetByID(ctx, p.UserID)
	if err != nil {
		return Outcome{}, mapUserErr(err)
	}

	if u.Points < cost {
		s.prom.ObserveCharge(string(op), "insufficient")
		return Outcome{}, &points.InsufficientBalanceError{Balance: u.Points, Cost: cost}
	}

	release, err := s.guard(ctx, u, cost)
	if err != nil {
		s.prom.ObserveCharge(string(op), "insufficient")
		return Outcome{}, err
	}
	defer release()

	raw, err := s.extractor.Extract(ctx, op, req.Payload)
	if err != nil {
		s.prom.ObserveCharge(string(op), "upstream_failed")
		return Outcome{}, asProcessingErr(err)
	}

	result, err := extraction.Decode(raw)
	if err != nil {
		s.prom.ObserveCharge(string(op), "upstream_failed")
		return Outcome{}, &points.ProcessingError{Message: "extractor returned an unusable result", Err: err}
	}

	if err := ctx.Err(); err != nil {
		s.prom.ObserveCharge(string(op), "abandoned")
		s.log.InfoContext(ctx, "charge.skipped", "user_id", u.ID, "operation", op, "reason", err.Error())
		return Outcome{}, fmt.Errorf("settlement skipped: %w", err)
	}

	balance, err := s.store.Charge(ctx, u.ID, cost, points.Entry{
		Operation: op,
		ActorID:   u.ID,
		RequestID: req.RequestID,
	})
	if err != nil {
		var ib *points.InsufficientBalanceError
		if errors.As(err, &ib) {
			s.prom.ObserveCharge(string(op), "insufficient")
			s.log.WarnContext(ctx, "charge.lost_race", "user_id", u.ID, "operation", op, "balance", ib.Balance)
			return Outcome{}, err
		}
		s.prom.ObserveCharge(string(op), "error")
		return Outcome{}, mapUserErr(err)
	}

	s.prom.ObserveCharge(string(op), "charged")
	s.log.InfoContext(ctx, "charge.settled",
		"user_id", u.ID,
		"operation", op,
		"cost", cost,
		"balance", balance,
		"request_id", req.RequestID,
	)

	return Outcome{Result: result, Raw: raw, Balance: balance, Cost: cost}, nil
}

func (s *Service) Balance(ctx context.Context, p actorctx.Principal) (points.Balance, error) {
	if !p.Authenticated() {
		return points.Balance{}, points.ErrUnauthorized
	}

	u, err := s.store.GetByID(ctx, p.UserID)
	if err != nil {
		return points.Balance{}, mapUserErr(err)
	}

	return points.Balance{Points: u.Points, Email: u.Email}, nil
}

type CreditRequest struct {
	Email     string
	Points    int
	RequestID string
}

// Credit tops up another user's balance. Only admirals may call it.
func (s *Service) Credit(ctx context.Context, p actorctx.Principal, req CreditRequest) (user.User, error) {
	if !p.Authenticated() {
		return user.User{}, points.ErrUnauthorized
	}

	// the token role may be stale; the stored row decides
	admin, err := s.store.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, points.ErrForbidden
		}
		return user.User{}, err
	}
	if admin.Role != user.RoleAdmiral {
		s.log.WarnContext(ctx, "credit.denied", "user_id", p.UserID, "claimed_role", p.Role, "role", admin.Role)
		return user.User{}, points.ErrForbidden
	}

	email := user.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, &points.InputError{Field: "email", Message: "must be a valid email"}
	}
	if req.Points < 1 {
		return user.User{}, &points.InputError{Field: "points", Message: "must be a positive integer"}
	}
	if req.Points > points.MaxCredit {
		return user.User{}, &points.InputError{Field: "points", Message: fmt.Sprintf("must not exceed %d", points.MaxCredit)}
	}

	u, err := s.store.Credit(ctx, email, req.Points, points.Entry{
		ActorID:   p.UserID,
		RequestID: req.RequestID,
	})
	if err != nil {
		return user.User{}, mapUserErr(err)
	}

	s.prom.ObserveCredit(req.Points)
	s.log.InfoContext(ctx, "credit.applied",
		"admin_id", p.UserID,
		"user_id", u.ID,
		"amount", req.Points,
		"balance", u.Points,
		"request_id", req.RequestID,
	)

	return u, nil
}

type HistoryPage struct {
	Items      []points.Transaction `json:"items"`
	Count      int                  `json:"count"`
	HasMore    bool                 `json:"hasMore"`
	NextCursor *string              `json:"nextCursor"`
}

// History pages the caller's ledger, newest first.
func (s *Service) History(ctx context.Context, p actorctx.Principal, limit int, cursor string) (HistoryPage, error) {
	if !p.Authenticated() {
		return HistoryPage{}, points.ErrUnauthorized
	}

	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return HistoryPage{}, &points.InputError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxHistoryLimit)}
	}

	beforeAt, beforeID := utils.FirstPageCreatedAt, utils.FirstPageID
	if cursor != "" {
		c, err := utils.DecodeTransactionCursor(cursor)
		if err != nil {
			return HistoryPage{}, &points.InputError{Field: "cursor", Message: "is invalid"}
		}
		beforeAt, beforeID = c.CreatedAt, c.ID
	}

	items, next, hasMore, err := s.store.ListTransactions(ctx, p.UserID, limit, beforeAt, beforeID)
	if err != nil {
		return HistoryPage{}, err
	}

	return HistoryPage{Items: items, Count: len(items), HasMore: hasMore, NextCursor: next}, nil
}

// guard serializes paid calls for a user only when the balance cannot cover
// two of them. Otherwise calls run in parallel and the conditional charge
// settles them.
func (s *Service) guard(ctx context.Context, u user.User, cost int) (lease.Release, error) {
	if u.Points >= 2*cost {
		return func() {}, nil
	}

	release, err := s.lease.Acquire(ctx, u.ID)
	switch {
	case err == nil:
		return release, nil
	case errors.Is(err, points.ErrChargeInProgress):
		// the in-flight call has claimed cost of the remaining balance
		return nil, &points.InsufficientBalanceError{Balance: u.Points - cost, Cost: cost}
	default:
		// lease backend down; the store still guards the balance
		s.log.WarnContext(ctx, "charge lease unavailable", "user_id", u.ID, "err", err)
		return func() {}, nil
	}
}

func mapUserErr(err error) error {
	if errors.Is(err, user.ErrNotFound) {
		return points.ErrNotFound
	}
	return err
}

func asProcessingErr(err error) error {
	var pe *points.ProcessingError
	var ie *points.InputError
	if errors.As(err, &pe) || errors.As(err, &ie) {
		return err
	}
	return &points.ProcessingError{Message: "extractor call failed", Err: err}
}
