package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

func TestWithHTTPMethod_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithHTTPMethod(context.Background(), "POST")
	if got := httpMethodFromContext(ctx); got != "POST" {
		t.Errorf("method = %q, want POST", got)
	}
}

func TestHTTPMethodFromContext_Default(t *testing.T) {
	t.Parallel()

	if got := httpMethodFromContext(context.Background()); got != "SCHEDULER" {
		t.Errorf("method = %q, want SCHEDULER for non-request contexts", got)
	}
}

func TestWithHTTPMethod_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	ctx := WithHTTPMethod(context.Background(), "")
	if got := httpMethodFromContext(ctx); got != "SCHEDULER" {
		t.Errorf("method = %q, want SCHEDULER", got)
	}
}

func TestRoutePatternFromContext(t *testing.T) {
	t.Parallel()

	if got := routePatternFromContext(context.Background()); got != "none" {
		t.Errorf("route = %q, want none without chi context", got)
	}

	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{"/api/v1/runs/{id}"}
	ctx := context.WithValue(context.Background(), chi.RouteCtxKey, rc)
	if got := routePatternFromContext(ctx); got != "/api/v1/runs/{id}" {
		t.Errorf("route = %q", got)
	}
}

func TestQueryObserver_ReceivesQueryMetadata(t *testing.T) {
	type observation struct {
		method, route, outcome string
		dur                    time.Duration
	}
	var observed []observation

	SetQueryObserver(QueryObserverFunc(func(_ context.Context, method, route, outcome string, dur time.Duration) {
		observed = append(observed, observation{method, route, outcome, dur})
	}))
	t.Cleanup(func() { SetQueryObserver(nil) })

	tr := wrapQueryTracer(nil)
	ctx := WithHTTPMethod(context.Background(), "POST")

	ctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	ctx2 := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 2"})
	tr.TraceQueryEnd(ctx2, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})

	if len(observed) != 2 {
		t.Fatalf("observations = %d, want 2", len(observed))
	}
	if observed[0].method != "POST" || observed[0].outcome != "ok" {
		t.Errorf("observed[0] = %+v", observed[0])
	}
	if observed[1].method != "SCHEDULER" || observed[1].outcome != "error" {
		t.Errorf("observed[1] = %+v", observed[1])
	}
	if observed[0].dur <= 0 {
		t.Error("expected a positive duration")
	}
}

func TestSetQueryObserver_NilDisables(t *testing.T) {
	SetQueryObserver(nil)

	tr := wrapQueryTracer(nil)
	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	// Must not panic without an observer.
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
}
