package points

import (
	"context"
	"errors"
	"testing"
)

func TestCostOf(t *testing.T) {
	for _, op := range []Operation{OpProcessPDF, OpProcessScreenshots} {
		cost, ok := CostOf(op)
		if !ok || cost != 1 {
			t.Fatalf("%s: expected cost 1, got %d ok=%v", op, cost, ok)
		}
	}

	if _, ok := CostOf("render-card"); ok {
		t.Fatalf("unknown operation should not have a cost")
	}
}

func TestInsufficientBalanceError(t *testing.T) {
	err := error(&InsufficientBalanceError{Balance: 0, Cost: 1})

	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected errors.Is ErrInsufficientBalance")
	}

	var ib *InsufficientBalanceError
	if !errors.As(err, &ib) {
		t.Fatalf("expected errors.As to succeed")
	}
	if ib.Shortfall() != 1 {
		t.Fatalf("expected shortfall 1, got %d", ib.Shortfall())
	}
}

func TestProcessingError_WrapsCause(t *testing.T) {
	err := error(&ProcessingError{Timeout: true, Err: context.DeadlineExceeded})

	if !errors.Is(err, ErrProcessingFailed) {
		t.Fatalf("expected ErrProcessingFailed")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be preserved")
	}
}
