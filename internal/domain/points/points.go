package points

import (
	"time"

	"github.com/google/uuid"
)

// Operation names a paid upstream call.
type Operation string

const (
	OpProcessPDF         Operation = "process-pdf"
	OpProcessScreenshots Operation = "process-screenshots"
)

// MaxCredit caps a single admin top-up.
const MaxCredit = 1_000_000

var costs = map[Operation]int{
	OpProcessPDF:         1,
	OpProcessScreenshots: 1,
}

func (o Operation) IsValid() bool {
	_, ok := costs[o]
	return ok
}

// CostOf returns the point price of op. Unknown operations report ok=false.
func CostOf(op Operation) (cost int, ok bool) {
	cost, ok = costs[op]
	return
}

type Kind string

const (
	KindCharge Kind = "charge"
	KindCredit Kind = "credit"
)

// Transaction is one ledger row written together with a balance mutation.
type Transaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Kind         Kind      `json:"kind"`
	Operation    string    `json:"operation,omitempty"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balanceAfter"`
	ActorID      string    `json:"actorId,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Entry describes the ledger context of a mutation; the store fills in
// the id, balance and timestamp.
type Entry struct {
	Operation Operation
	ActorID   string
	RequestID string
}

func NewTransaction(userID string, kind Kind, amount, balanceAfter int, e Entry) Transaction {
	return Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Kind:         kind,
		Operation:    string(e.Operation),
		Amount:       amount,
		BalanceAfter: balanceAfter,
		ActorID:      e.ActorID,
		RequestID:    e.RequestID,
		CreatedAt:    time.Now().UTC(),
	}
}

type Balance struct {
	Points int    `json:"points"`
	Email  string `json:"email"`
}
