// Package runapi exposes triage pass reports over HTTP and lets operators
// trigger a pass outside the scheduler.
package runapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/fieldtriage/internal/triage"
)

// RunService defines the business operations runapi needs.
type RunService interface {
	RunOnce(ctx context.Context) (*triage.Report, error)
	Get(ctx context.Context, id string) (*triage.Report, bool, error)
	Latest(ctx context.Context) (*triage.Report, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    RunService
}

// New creates a new API handler.
func New(logger log.Logger, svc RunService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("run service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", a.handleTriggerRun)
		r.Get("/runs/latest", a.handleLatestRun)
		r.Get("/runs/{id}", a.handleGetRun)
	})
}

// handleTriggerRun executes one triage pass synchronously and returns its
// report. A failed pass still carries a report for the response body.
func (a *API) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	rep, err := a.svc.RunOnce(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "manually triggered pass failed")
		writeJSON(w, http.StatusBadGateway, rep)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("fieldtriage.run.id", id))

	rep, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get run report", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("fieldtriage.run.status", string(rep.Status)))

	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	rep, ok, err := a.svc.Latest(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get latest run report")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"no runs recorded"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
