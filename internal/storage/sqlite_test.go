package storage

import (
	"context"
	"path/filepath"
	"testing"

	"cashflowd/cashflow-ingest/internal/ingesterror"
	"cashflowd/cashflow-ingest/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) *SQLiteSink {
	t.Helper()
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return sink
}

func TestSQLiteSink_RegisterBatch(t *testing.T) {
	sink := newTestSink(t)

	id, err := sink.RegisterBatch(context.Background(), sampleBatch("key-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestSQLiteSink_RegisterBatch_Duplicate(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	_, err := sink.RegisterBatch(ctx, sampleBatch("key-1"))
	require.NoError(t, err)

	_, err = sink.RegisterBatch(ctx, sampleBatch("key-1"))
	require.Error(t, err)
	assert.True(t, ingesterror.IsDuplicateBatch(err))

	// A different key is still accepted.
	_, err = sink.RegisterBatch(ctx, sampleBatch("key-2"))
	assert.NoError(t, err)
}

func TestSQLiteSink_PersistCashflowAggregates_Upserts(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	first := map[string]models.DailyCashflow{
		"2025-01-01": {Inflow: decimal.RequireFromString("100.00"), Outflow: decimal.Zero},
	}
	require.NoError(t, sink.PersistCashflowAggregates(ctx, "s1", first))

	second := map[string]models.DailyCashflow{
		"2025-01-01": {Inflow: decimal.RequireFromString("250.00"), Outflow: decimal.RequireFromString("10.00")},
	}
	require.NoError(t, sink.PersistCashflowAggregates(ctx, "s1", second))

	var rows []cashflowRow
	require.NoError(t, sink.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "250.00", rows[0].Inflow)
	assert.Equal(t, "10.00", rows[0].Outflow)
}

func TestSQLiteSink_PersistControlAggregates(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	daily := map[string]models.DailyControl{
		"2025-01-01": {
			Day:    "2025-01-01",
			Counts: map[string]int{"FREE_IN": 2},
			Derived: models.ControlDerived{
				FreeCashNet:       decimal.RequireFromString("99.50"),
				UniquePayersCount: 2,
			},
		},
	}
	require.NoError(t, sink.PersistControlAggregates(ctx, "s1", daily))

	var rows []controlRow
	require.NoError(t, sink.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "s1", rows[0].SubjectRef)
	assert.Contains(t, rows[0].Payload, `"FREE_IN":2`)

	// Same day again replaces the payload instead of erroring.
	require.NoError(t, sink.PersistControlAggregates(ctx, "s1", daily))
	require.NoError(t, sink.db.Find(&rows).Error)
	assert.Len(t, rows, 1)
}
