// Package triage implements the two-stage emergency classification of
// survey submissions. It defines the KeywordClassifier (free, deterministic
// substring stage), the Semantic interface (fallback inference stage), the
// Pipeline composing the two into one decision per record, and the Service
// that drives a full pass: query unprocessed records, classify, batch-write
// statuses, and report per-record outcomes.
//
// Passes are idempotent: a record whose status write fails stays
// unprocessed in the store and is re-queried, re-classified, and retried on
// the next pass. The status field carries no concurrency token, so two
// passes running at once could both classify the same record and the last
// write wins; run one scheduler.
package triage
