// Package csvsource adapts uploaded CSV bytes into raw records for the
// normalizer. It enforces the required-column header and a row cap but
// performs no per-field validation.
package csvsource

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"cashflowd/cashflow-ingest/internal/ingesterror"
	"cashflowd/cashflow-ingest/internal/normalizer"

	"github.com/gocarina/gocsv"
)

// RequiredColumns must all appear in the upload header. Extra columns
// (record_status, raw_* evidence, partial_record) ride along untouched.
var RequiredColumns = []string{"merchant_id", "ts", "amount", "direction", "channel"}

// Read parses CSV bytes into raw records. The header is validated for
// required columns; maxRows caps the batch size.
func Read(raw []byte, maxRows int) ([]normalizer.RawRecord, error) {
	if err := checkHeader(raw); err != nil {
		return nil, err
	}

	rows, err := gocsv.CSVToMaps(bytes.NewReader(raw))
	if err != nil {
		return nil, &ingesterror.InputMalformedError{
			Source: "csv",
			Reason: "unparseable rows",
			Err:    err,
		}
	}

	if maxRows > 0 && len(rows) > maxRows {
		return nil, &ingesterror.InputMalformedError{
			Source: "csv",
			Reason: fmt.Sprintf("too many rows: %d > %d", len(rows), maxRows),
		}
	}

	records := make([]normalizer.RawRecord, len(rows))
	for i, row := range rows {
		records[i] = normalizer.RawRecord(row)
	}
	return records, nil
}

func checkHeader(raw []byte) error {
	reader := csv.NewReader(bytes.NewReader(raw))
	header, err := reader.Read()
	if err == io.EOF {
		return &ingesterror.InputMalformedError{
			Source: "csv",
			Reason: "missing header row",
		}
	}
	if err != nil {
		return &ingesterror.InputMalformedError{
			Source: "csv",
			Reason: "unparseable header",
			Err:    err,
		}
	}

	present := make(map[string]struct{}, len(header))
	for _, col := range header {
		present[strings.TrimSpace(col)] = struct{}{}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &ingesterror.InputMalformedError{
			Source: "csv",
			Reason: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}
