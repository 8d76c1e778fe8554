package aggregate

import (
	"testing"
	"time"

	"cashflowd/cashflow-ingest/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(day string, amount string, direction models.Direction) models.CanonicalTxn {
	ts, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return models.CanonicalTxn{
		SubjectRef: "s1",
		MerchantID: "m1",
		EventTS:    ts.Add(10 * time.Hour),
		Amount:     decimal.RequireFromString(amount),
		Direction:  direction,
		Channel:    models.ChannelUPI,
	}
}

func TestComputeDailyCashflow(t *testing.T) {
	events := []models.CanonicalTxn{
		event("2025-01-01", "100.50", models.DirectionCredit),
		event("2025-01-01", "49.50", models.DirectionCredit),
		event("2025-01-01", "30.00", models.DirectionDebit),
		event("2025-01-02", "10.00", models.DirectionDebit),
	}

	daily := ComputeDailyCashflow(events)
	require.Len(t, daily, 2)

	day1 := daily["2025-01-01"]
	assert.Equal(t, "150.00", day1.Inflow.StringFixed(2))
	assert.Equal(t, "30.00", day1.Outflow.StringFixed(2))

	day2 := daily["2025-01-02"]
	assert.Equal(t, "0.00", day2.Inflow.StringFixed(2))
	assert.Equal(t, "10.00", day2.Outflow.StringFixed(2))
}

func TestComputeDailyCashflow_OrderIndependent(t *testing.T) {
	forward := []models.CanonicalTxn{
		event("2025-01-01", "1.10", models.DirectionCredit),
		event("2025-01-01", "2.20", models.DirectionCredit),
		event("2025-01-02", "3.30", models.DirectionDebit),
	}
	reversed := []models.CanonicalTxn{forward[2], forward[1], forward[0]}

	assert.Equal(t, ComputeDailyCashflow(forward), ComputeDailyCashflow(reversed))
}

func TestComputeDailyCashflow_Empty(t *testing.T) {
	assert.Empty(t, ComputeDailyCashflow(nil))
}
