// Package storage defines the durable sink behind the ingestion
// pipeline and its two implementations: an in-memory sink for tests
// and development, and a SQLite sink for production. Only batch
// provenance and derived daily aggregates are ever written.
package storage

import (
	"context"

	"cashflowd/cashflow-ingest/internal/models"
)

// Port is the capability interface the pipeline persists through. Any
// implementation must provide atomic check-and-insert on the
// idempotency key: of two concurrent RegisterBatch calls with the same
// key, exactly one succeeds and the other observes a duplicate-batch
// error. Aggregate writes must only follow a successful registration.
type Port interface {
	// RegisterBatch stores the batch record and returns the assigned
	// batch id. A previously registered idempotency key yields a
	// *ingesterror.DuplicateBatchError.
	RegisterBatch(ctx context.Context, batch models.BatchRecord) (string, error)

	// PersistCashflowAggregates writes the per-day inflow/outflow
	// totals for a subject.
	PersistCashflowAggregates(ctx context.Context, subjectRef string, daily map[string]models.DailyCashflow) error

	// PersistControlAggregates writes the per-day control aggregates
	// for a subject.
	PersistControlAggregates(ctx context.Context, subjectRef string, daily map[string]models.DailyControl) error
}
