package storage

import (
	"context"
	"sync"

	"cashflowd/cashflow-ingest/internal/ingesterror"
	"cashflowd/cashflow-ingest/internal/models"

	"github.com/google/uuid"
)

// MemorySink is an in-memory Port for tests and development. The
// mutex makes the duplicate check and insert one atomic step.
type MemorySink struct {
	mu       sync.Mutex
	batches  map[string]storedBatch
	cashflow map[string]map[string]models.DailyCashflow
	control  map[string]map[string]models.DailyControl
}

type storedBatch struct {
	id     string
	record models.BatchRecord
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		batches:  map[string]storedBatch{},
		cashflow: map[string]map[string]models.DailyCashflow{},
		control:  map[string]map[string]models.DailyControl{},
	}
}

// RegisterBatch stores the record, refusing previously seen keys.
func (s *MemorySink) RegisterBatch(_ context.Context, batch models.BatchRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.IdempotencyKey]; exists {
		return "", &ingesterror.DuplicateBatchError{IdempotencyKey: batch.IdempotencyKey}
	}

	id := uuid.NewString()
	s.batches[batch.IdempotencyKey] = storedBatch{id: id, record: batch}
	return id, nil
}

// PersistCashflowAggregates stores daily cashflow totals, overwriting
// existing days for the subject.
func (s *MemorySink) PersistCashflowAggregates(_ context.Context, subjectRef string, daily map[string]models.DailyCashflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.cashflow[subjectRef]
	if !ok {
		stored = map[string]models.DailyCashflow{}
		s.cashflow[subjectRef] = stored
	}
	for day, agg := range daily {
		stored[day] = agg
	}
	return nil
}

// PersistControlAggregates stores daily control aggregates,
// overwriting existing days for the subject.
func (s *MemorySink) PersistControlAggregates(_ context.Context, subjectRef string, daily map[string]models.DailyControl) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.control[subjectRef]
	if !ok {
		stored = map[string]models.DailyControl{}
		s.control[subjectRef] = stored
	}
	for day, agg := range daily {
		stored[day] = agg
	}
	return nil
}

// BatchCount reports the number of registered batches.
func (s *MemorySink) BatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// Batch returns the stored record for an idempotency key.
func (s *MemorySink) Batch(key string) (models.BatchRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.batches[key]
	return stored.record, ok
}

// CashflowDays returns the stored cashflow aggregates for a subject.
func (s *MemorySink) CashflowDays(subjectRef string) map[string]models.DailyCashflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]models.DailyCashflow{}
	for day, agg := range s.cashflow[subjectRef] {
		out[day] = agg
	}
	return out
}

// ControlDays returns the stored control aggregates for a subject.
func (s *MemorySink) ControlDays(subjectRef string) map[string]models.DailyControl {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]models.DailyControl{}
	for day, agg := range s.control[subjectRef] {
		out[day] = agg
	}
	return out
}
