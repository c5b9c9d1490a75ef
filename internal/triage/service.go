package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/fieldtriage/internal/record"
)

// DefaultWorkers bounds concurrent classification per pass. The semantic
// backend is the only blocking stage, so this is effectively the cap on
// in-flight inference calls.
const DefaultWorkers = 4

// Service drives triage passes: it owns the fetch/classify/commit loop and
// the run report lifecycle.
type Service struct {
	records  record.Store
	pipeline *Pipeline
	runs     RunStore
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	workers  int
}

// NewService creates a triage service. runs, metrics, and notifier may be
// nil; workers <= 0 falls back to DefaultWorkers.
func NewService(records record.Store, pipeline *Pipeline, runs RunStore, logger log.Logger, metrics *Metrics, notifier Notifier, workers int) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{
		records:  records,
		pipeline: pipeline,
		runs:     runs,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		workers:  workers,
	}
}

// RunOnce executes a single triage pass. The store is only mutated at the
// final batch write, so an aborted pass leaves no partial state behind.
// A non-nil Report is returned even when the pass fails, for audit.
func (s *Service) RunOnce(ctx context.Context) (*Report, error) {
	rep := &Report{
		ID:        ulid.Make().String(),
		Status:    RunStatusComplete,
		StartedAt: time.Now(),
	}
	L := s.logger.With("run_id", rep.ID)

	recs, err := s.records.QueryUnprocessed(ctx)
	if err != nil {
		// Nothing to classify without the store; the pass is over.
		return s.fail(ctx, L, rep, fmt.Errorf("query unprocessed records: %w", err))
	}
	rep.Queried = len(recs)

	if len(recs) == 0 {
		L.Info(ctx, "no unprocessed records, nothing to do")
		s.finish(ctx, L, rep)
		return rep, nil
	}

	L.Info(ctx, "classifying records", "count", len(recs), "workers", s.workers)

	// Records are independent, so classification fans out; the slot per
	// index keeps store-query order without any locking.
	decisions := make([]Decision, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range recs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decisions[i] = s.pipeline.Classify(gctx, &recs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.fail(ctx, L, rep, fmt.Errorf("classification interrupted: %w", err))
	}

	updates := make([]record.Update, len(decisions))
	for i, d := range decisions {
		updates[i] = record.Update{ID: d.RecordID, Status: d.Label()}
		if d.Emergency {
			rep.Flagged++
		} else {
			rep.Cleared++
		}
		// Issued calls count whether or not they succeeded; failures are
		// tallied separately.
		if d.SemanticUsed {
			rep.SemanticCalls++
		}
		if d.SemanticFailed {
			rep.SemanticFailures++
		}
	}

	results, err := s.records.ApplyStatus(ctx, updates)
	if err != nil {
		// Whole batch rejected: every record stays unprocessed and replays
		// next pass.
		return s.fail(ctx, L, rep, fmt.Errorf("apply status batch: %w", err))
	}

	byID := make(map[string]record.WriteResult, len(results))
	for _, wr := range results {
		byID[wr.ID] = wr
	}

	rep.Outcomes = make([]RecordOutcome, len(decisions))
	for i, d := range decisions {
		out := RecordOutcome{
			RecordID:       d.RecordID,
			Label:          d.Label(),
			Stage:          d.Stage,
			SemanticFailed: d.SemanticFailed,
		}
		wr, ok := byID[d.RecordID]
		switch {
		case !ok:
			out.WriteError = "no result returned by store"
		case wr.OK:
			out.Written = true
		default:
			out.WriteError = wr.Reason
		}
		if out.Written {
			rep.Written++
		}
		rep.Outcomes[i] = out
	}

	// Partial failures never abort the pass: succeeded writes stand, and
	// the failed ones surface here for replay.
	for _, o := range rep.WriteFailures() {
		L.Warn(ctx, "record status write failed, will retry next pass",
			"record_id", o.RecordID,
			"label", o.Label,
			"reason", o.WriteError,
		)
	}

	s.finish(ctx, L, rep)
	return rep, nil
}

// Get retrieves a pass report by ID.
func (s *Service) Get(ctx context.Context, id string) (*Report, bool, error) {
	if s.runs == nil {
		return nil, false, nil
	}
	return s.runs.Get(ctx, id)
}

// Latest retrieves the most recent pass report.
func (s *Service) Latest(ctx context.Context) (*Report, bool, error) {
	if s.runs == nil {
		return nil, false, nil
	}
	return s.runs.Latest(ctx)
}

func (s *Service) fail(ctx context.Context, L log.Logger, rep *Report, err error) (*Report, error) {
	rep.Status = RunStatusFailed
	rep.Error = err.Error()
	L.Error(ctx, err, "triage pass failed")
	s.finish(ctx, L, rep)
	return rep, err
}

// finish stamps the report, persists it, records metrics, and notifies.
// None of these can fail the pass.
func (s *Service) finish(ctx context.Context, L log.Logger, rep *Report) {
	rep.CompletedAt = time.Now()
	rep.Duration = rep.CompletedAt.Sub(rep.StartedAt).Seconds()

	if s.runs != nil {
		if err := s.runs.Put(ctx, rep); err != nil {
			L.Error(ctx, err, "failed to persist run report")
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveRun(rep)
	}

	L.Info(ctx, "triage pass finished",
		"status", rep.Status,
		"queried", rep.Queried,
		"flagged", rep.Flagged,
		"cleared", rep.Cleared,
		"semantic_failures", rep.SemanticFailures,
		"written", rep.Written,
		"write_failures", len(rep.WriteFailures()),
		"duration", rep.Duration,
	)

	if s.notifier != nil && (rep.Flagged > 0 || rep.Status == RunStatusFailed || len(rep.WriteFailures()) > 0) {
		if err := s.notifier.Send(ctx, rep); err != nil {
			L.Error(ctx, err, "failed to send run notification")
		}
	}
}
