package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/geocoder89/idprint/internal/actorctx"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"
)

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&pgconn.PgError{Code: "23505"}, "unique_violation"},
		{&pgconn.PgError{Code: "23514"}, "check_violation"},
		{&pgconn.PgError{Code: "XX000"}, "pg_XX000"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("connection refused"), "connection"},
		{errors.New("boom"), "not_classified"},
	}

	for _, tt := range tests {
		if got := classifyDBErr(tt.err); got != tt.want {
			t.Fatalf("classifyDBErr(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveDB_CountsErrors(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveDB("users.charge", func() error { return &pgconn.PgError{Code: "40001"} })
	_ = p.ObserveDB("users.charge", func() error { return nil })

	got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.charge", "serialization_failure"))
	if got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
}

func TestNilPromIsSafe(t *testing.T) {
	var p *Prom

	p.ObserveCharge("process-pdf", "settled")
	p.ObserveCredit(5)
	p.SetBreakerOpen(true)

	called := false
	if err := p.ObserveDB("op", func() error { called = true; return nil }); err != nil || !called {
		t.Fatalf("expected fn to run through nil prom")
	}
}

func TestLogger_EmitsJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "dev")

	log.Debug("hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json log line: %v (%s)", err, buf.String())
	}
	if rec["service"] != ServiceName || rec["k"] != "v" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLogger_StampsActorAndTrace(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = actorctx.WithPrincipal(ctx, actorctx.Principal{UserID: "u-1", Role: "ADMIRAL"})

	log.InfoContext(ctx, "credit.applied")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json log line: %v (%s)", err, buf.String())
	}
	if rec["trace_id"] != sc.TraceID().String() || rec["span_id"] != sc.SpanID().String() {
		t.Fatalf("missing trace ids: %v", rec)
	}
	actor, _ := rec["actor"].(map[string]any)
	if actor["id"] != "u-1" || actor["role"] != "ADMIRAL" {
		t.Fatalf("missing actor: %v", rec)
	}
}
