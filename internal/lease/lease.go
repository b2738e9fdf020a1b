// Package lease guards against one user running several paid extractor
// calls at once. It only saves wasted upstream calls; the balance store's
// conditional decrement remains the authority on who gets charged.
package lease

import (
	"context"
	"sync"

	"github.com/geocoder89/idprint/internal/domain/points"
)

type Release func()

type Locker interface {
	Acquire(ctx context.Context, userID string) (Release, error)
}

// Local is an in-process Locker for single-replica and test setups.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(_ context.Context, userID string) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[userID]; busy {
		return nil, points.ErrChargeInProgress
	}
	l.held[userID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, userID)
			l.mu.Unlock()
		})
	}, nil
}

// Noop never blocks.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (Release, error) {
	return func() {}, nil
}
