// Package pgstore provides a PostgreSQL implementation of triage.RunStore.
package pgstore

import (
	_ "embed"
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/fieldtriage/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/fieldtriage/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists pass reports in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store over the given pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const runColumns = `id, status, queried, flagged, cleared, semantic_calls,
	semantic_failures, written, error, started_at, completed_at, duration_s`

// Put inserts or updates a pass report and its per-record outcomes.
func (s *Store) Put(ctx context.Context, r *triage.Report) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	if err := s.upsertRun(ctx, tx, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := s.replaceOutcomes(ctx, tx, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get retrieves a pass report by run ID.
//
//nolint:dupl // similar structure to Latest is intentional
func (s *Store) Get(ctx context.Context, id string) (*triage.Report, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + runColumns + ` FROM triage_runs WHERE id = $1`
	r, err := s.scanRunRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}

	if err := s.loadOutcomes(ctx, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	return r, true, nil
}

// Latest retrieves the most recently started pass report.
//
//nolint:dupl // similar structure to Get is intentional
func (s *Store) Latest(ctx context.Context) (*triage.Report, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Latest", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + runColumns + ` FROM triage_runs ORDER BY started_at DESC LIMIT 1`
	r, err := s.scanRunRow(s.pool.QueryRow(ctx, query))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}

	if err := s.loadOutcomes(ctx, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	return r, true, nil
}

func (s *Store) upsertRun(ctx context.Context, tx pgx.Tx, r *triage.Report) error {
	var completedAt *time.Time
	if !r.CompletedAt.IsZero() {
		completedAt = &r.CompletedAt
	}

	query := `INSERT INTO triage_runs (
		id, status, queried, flagged, cleared, semantic_calls,
		semantic_failures, written, error, started_at, completed_at, duration_s
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (id) DO UPDATE SET
		status            = EXCLUDED.status,
		queried           = EXCLUDED.queried,
		flagged           = EXCLUDED.flagged,
		cleared           = EXCLUDED.cleared,
		semantic_calls    = EXCLUDED.semantic_calls,
		semantic_failures = EXCLUDED.semantic_failures,
		written           = EXCLUDED.written,
		error             = EXCLUDED.error,
		completed_at      = EXCLUDED.completed_at,
		duration_s        = EXCLUDED.duration_s`

	_, err := tx.Exec(ctx, query,
		r.ID, string(r.Status), r.Queried, r.Flagged, r.Cleared, r.SemanticCalls,
		r.SemanticFailures, r.Written, r.Error, r.StartedAt, completedAt, r.Duration,
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

func (s *Store) replaceOutcomes(ctx context.Context, tx pgx.Tx, r *triage.Report) error {
	if _, err := tx.Exec(ctx, `DELETE FROM run_outcomes WHERE run_id = $1`, r.ID); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}

	for _, o := range r.Outcomes {
		_, err := tx.Exec(ctx,
			`INSERT INTO run_outcomes (run_id, record_id, label, stage, semantic_failed, written, write_error)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, o.RecordID, o.Label, string(o.Stage), o.SemanticFailed, o.Written, o.WriteError,
		)
		if err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.RecordID, err)
		}
	}
	return nil
}

func (s *Store) loadOutcomes(ctx context.Context, r *triage.Report) error {
	rows, err := s.pool.Query(ctx,
		`SELECT record_id, label, stage, semantic_failed, written, write_error
		 FROM run_outcomes WHERE run_id = $1 ORDER BY record_id`,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []triage.RecordOutcome
	for rows.Next() {
		var (
			o     triage.RecordOutcome
			stage string
		)
		if err := rows.Scan(&o.RecordID, &o.Label, &stage, &o.SemanticFailed, &o.Written, &o.WriteError); err != nil {
			return fmt.Errorf("scan outcome: %w", err)
		}
		o.Stage = triage.Stage(stage)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outcomes: %w", err)
	}

	r.Outcomes = outcomes
	return nil
}

// scanRunRow scans a single row into a triage.Report (without outcomes).
// Returns (nil, nil) when no row is found.
func (s *Store) scanRunRow(row pgx.Row) (*triage.Report, error) {
	var (
		r           triage.Report
		status      string
		completedAt *time.Time
	)

	err := row.Scan(
		&r.ID, &status, &r.Queried, &r.Flagged, &r.Cleared, &r.SemanticCalls,
		&r.SemanticFailures, &r.Written, &r.Error, &r.StartedAt, &completedAt, &r.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	r.Status = triage.RunStatus(status)

	if completedAt != nil {
		r.CompletedAt = *completedAt
	}

	return &r, nil
}
