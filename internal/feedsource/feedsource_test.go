package feedsource

import (
	"errors"
	"testing"
	"time"

	"cashflowd/cashflow-ingest/internal/ingesterror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullDocument(t *testing.T) {
	raw := []byte(`{
		"watermark_ts": "2025-01-31T23:59:59+05:30",
		"start_date": "2025-01-01",
		"end_date": "2025-01-31",
		"events": [
			{"merchant_id": "m1", "ts": "2025-01-05T10:00:00", "amount": 100.50, "direction": "credit", "channel": "UPI"},
			{"merchant_id": "m1", "ts": "2025-01-06T10:00:00", "amount": "20", "direction": "debit", "channel": "BANK"}
		]
	}`)

	parsed, err := Parse(raw)
	require.NoError(t, err)

	require.NotNil(t, parsed.Watermark)
	expected, _ := time.Parse(time.RFC3339, "2025-01-31T23:59:59+05:30")
	assert.True(t, parsed.Watermark.Equal(expected))
	assert.Equal(t, "2025-01-01", parsed.StartDate)
	assert.Equal(t, "2025-01-31", parsed.EndDate)
	assert.False(t, parsed.AllowMissingWatermark)

	require.Len(t, parsed.Events, 2)
	assert.Equal(t, "m1", parsed.Events[0]["merchant_id"])
	assert.Equal(t, "100.50", parsed.Events[0]["amount"])
	assert.Equal(t, "20", parsed.Events[1]["amount"])
}

func TestParse_NumbersKeptVerbatim(t *testing.T) {
	// A literal that float64 cannot represent exactly must survive
	// unchanged, otherwise identical payloads could hash differently.
	raw := []byte(`{"events": [{"amount": 0.1000000000000000055}]}`)
	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "0.1000000000000000055", parsed.Events[0]["amount"])
}

func TestParse_ValueStringification(t *testing.T) {
	raw := []byte(`{"events": [{"a": null, "b": true, "c": false, "d": 7, "e": "s"}]}`)
	parsed, err := Parse(raw)
	require.NoError(t, err)

	event := parsed.Events[0]
	assert.Equal(t, "", event["a"])
	assert.Equal(t, "true", event["b"])
	assert.Equal(t, "false", event["c"])
	assert.Equal(t, "7", event["d"])
	assert.Equal(t, "s", event["e"])
}

func TestParse_MissingWatermark(t *testing.T) {
	raw := []byte(`{"allow_missing_watermark": true, "events": [{"merchant_id": "m1"}]}`)
	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Nil(t, parsed.Watermark)
	assert.True(t, parsed.AllowMissingWatermark)
}

func TestParse_UnparseableWatermark(t *testing.T) {
	raw := []byte(`{"watermark_ts": "last tuesday", "events": []}`)
	_, err := Parse(raw)

	var malformed *ingesterror.InputMalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Contains(t, malformed.Error(), "watermark_ts")
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"events": [`))
	var malformed *ingesterror.InputMalformedError
	assert.True(t, errors.As(err, &malformed))
}
