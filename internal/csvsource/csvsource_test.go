package csvsource

import (
	"errors"
	"testing"

	"cashflowd/cashflow-ingest/internal/ingesterror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCSV = `merchant_id,ts,amount,direction,channel,record_status
m1,2025-01-01T10:00:00,100.50,credit,UPI,SUCCESS
m2,2025-01-02T11:00:00,20.00,debit,BANK,SUCCESS
`

func TestRead_ValidFile(t *testing.T) {
	records, err := Read([]byte(validCSV), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "m1", records[0]["merchant_id"])
	assert.Equal(t, "100.50", records[0]["amount"])
	assert.Equal(t, "SUCCESS", records[0]["record_status"])
	assert.Equal(t, "BANK", records[1]["channel"])
}

func TestRead_ExtraColumnsRideAlong(t *testing.T) {
	csv := "merchant_id,ts,amount,direction,channel,raw_narration\n" +
		"m1,2025-01-01,5.00,credit,UPI,pos sale\n"
	records, err := Read([]byte(csv), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pos sale", records[0]["raw_narration"])
}

func TestRead_MissingRequiredColumns(t *testing.T) {
	csv := "merchant_id,ts,amount\nm1,2025-01-01,5.00\n"
	_, err := Read([]byte(csv), 0)

	var malformed *ingesterror.InputMalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Contains(t, malformed.Error(), "direction")
	assert.Contains(t, malformed.Error(), "channel")
}

func TestRead_EmptyBytes(t *testing.T) {
	_, err := Read([]byte(""), 0)
	var malformed *ingesterror.InputMalformedError
	assert.True(t, errors.As(err, &malformed))
}

func TestRead_HeaderOnly(t *testing.T) {
	records, err := Read([]byte("merchant_id,ts,amount,direction,channel\n"), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRead_RowCap(t *testing.T) {
	csv := "merchant_id,ts,amount,direction,channel\n" +
		"m1,2025-01-01,5.00,credit,UPI\n" +
		"m2,2025-01-01,5.00,credit,UPI\n"

	_, err := Read([]byte(csv), 1)
	var malformed *ingesterror.InputMalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Contains(t, malformed.Error(), "too many rows")

	records, err := Read([]byte(csv), 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
