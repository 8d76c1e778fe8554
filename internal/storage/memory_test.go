package storage

import (
	"context"
	"sync"
	"testing"

	"cashflowd/cashflow-ingest/internal/ingesterror"
	"cashflowd/cashflow-ingest/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch(key string) models.BatchRecord {
	return models.BatchRecord{
		SubjectRef:     "s1",
		Source:         "bank-a",
		IdempotencyKey: key,
		RowsAccepted:   10,
		RowsRejected:   1,
		RangeStart:     "2025-01-01",
		RangeEnd:       "2025-01-31",
	}
}

func TestMemorySink_RegisterBatch(t *testing.T) {
	sink := NewMemorySink()

	id, err := sink.RegisterBatch(context.Background(), sampleBatch("key-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, sink.BatchCount())

	stored, ok := sink.Batch("key-1")
	require.True(t, ok)
	assert.Equal(t, 10, stored.RowsAccepted)
}

func TestMemorySink_RegisterBatch_Duplicate(t *testing.T) {
	sink := NewMemorySink()

	_, err := sink.RegisterBatch(context.Background(), sampleBatch("key-1"))
	require.NoError(t, err)

	_, err = sink.RegisterBatch(context.Background(), sampleBatch("key-1"))
	require.Error(t, err)
	assert.True(t, ingesterror.IsDuplicateBatch(err))
	assert.Equal(t, 1, sink.BatchCount())
}

func TestMemorySink_RegisterBatch_Concurrent(t *testing.T) {
	sink := NewMemorySink()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = sink.RegisterBatch(context.Background(), sampleBatch("contested"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, ingesterror.IsDuplicateBatch(err))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, sink.BatchCount())
}

func TestMemorySink_PersistAggregates(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	err := sink.PersistCashflowAggregates(ctx, "s1", map[string]models.DailyCashflow{
		"2025-01-01": {Inflow: decimal.RequireFromString("150.00"), Outflow: decimal.RequireFromString("30.00")},
	})
	require.NoError(t, err)

	err = sink.PersistControlAggregates(ctx, "s1", map[string]models.DailyControl{
		"2025-01-01": {Day: "2025-01-01"},
	})
	require.NoError(t, err)

	cashflow := sink.CashflowDays("s1")
	require.Len(t, cashflow, 1)
	assert.Equal(t, "150.00", cashflow["2025-01-01"].Inflow.StringFixed(2))

	assert.Len(t, sink.ControlDays("s1"), 1)
	assert.Empty(t, sink.CashflowDays("other"))
}

func TestMemorySink_PersistAggregates_OverwritesDay(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	first := map[string]models.DailyCashflow{
		"2025-01-01": {Inflow: decimal.RequireFromString("100.00")},
	}
	second := map[string]models.DailyCashflow{
		"2025-01-01": {Inflow: decimal.RequireFromString("250.00")},
		"2025-01-02": {Inflow: decimal.RequireFromString("50.00")},
	}
	require.NoError(t, sink.PersistCashflowAggregates(ctx, "s1", first))
	require.NoError(t, sink.PersistCashflowAggregates(ctx, "s1", second))

	cashflow := sink.CashflowDays("s1")
	require.Len(t, cashflow, 2)
	assert.Equal(t, "250.00", cashflow["2025-01-01"].Inflow.StringFixed(2))
}
