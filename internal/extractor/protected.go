package extractor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geocoder89/idprint/internal/domain/points"
	"github.com/geocoder89/idprint/internal/observability"
)

var ErrCircuitOpen = errors.New("extractor circuit open")

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half_open"
)

type ProtectedConfig struct {
	Timeout          time.Duration // hard cap per call
	FailureThreshold int           // consecutive upstream failures before opening
	Cooldown         time.Duration // time spent open before a trial call
	HalfOpenMaxCalls int
}

// Protected fails fast while the extractor is down. Only failures that
// point at the upstream itself count: client-side 4xx rejections and
// cancelled callers leave the breaker alone.
type Protected struct {
	inner Extractor
	cfg   ProtectedConfig
	prom  *observability.Prom
	now   func() time.Time

	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtected(inner Extractor, cfg ProtectedConfig, prom *observability.Prom) *Protected {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &Protected{
		inner: inner,
		cfg:   cfg,
		prom:  prom,
		now:   time.Now,
		state: stateClosed,
	}
}

func (p *Protected) Extract(ctx context.Context, op points.Operation, payload Payload) ([]byte, error) {
	if !p.allowRequest() {
		return nil, &points.ProcessingError{Message: "extractor temporarily unavailable", Err: ErrCircuitOpen}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	body, err := p.inner.Extract(callCtx, op, payload)

	p.afterRequest(ctx, err)

	return body, err
}

func (p *Protected) allowRequest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateOpen:
		if p.now().Sub(p.openedAt) < p.cfg.Cooldown {
			return false
		}
		p.state = stateHalfOpen
		p.halfOpenInFlight = 1
		return true
	case stateHalfOpen:
		if p.halfOpenInFlight >= p.cfg.HalfOpenMaxCalls {
			return false
		}
		p.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (p *Protected) afterRequest(ctx context.Context, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateHalfOpen && p.halfOpenInFlight > 0 {
		p.halfOpenInFlight--
	}

	// caller went away; says nothing about upstream health
	if err != nil && ctx.Err() != nil {
		return
	}

	if !countsAsFailure(err) {
		if p.state != stateClosed {
			p.prom.SetBreakerOpen(false)
		}
		p.consecutiveFailures = 0
		p.state = stateClosed
		return
	}

	p.consecutiveFailures++

	if p.state == stateHalfOpen || p.consecutiveFailures >= p.cfg.FailureThreshold {
		p.state = stateOpen
		p.openedAt = p.now()
		p.prom.SetBreakerOpen(true)
	}
}

func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}

	var ie *points.InputError
	if errors.As(err, &ie) {
		return false
	}

	var pe *points.ProcessingError
	if errors.As(err, &pe) && pe.Status >= 400 && pe.Status < 500 {
		return false
	}
	return true
}

// State reports the breaker state for readiness output.
func (p *Protected) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.state)
}
