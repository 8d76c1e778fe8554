// Package normalizer converts raw tabular records into validated
// CanonicalTxn events, tallying a rejection reason per dropped row and
// enforcing the batch-level acceptance gate.
package normalizer

import (
	"strings"
	"time"

	"cashflowd/cashflow-ingest/internal/ingesterror"
	"cashflowd/cashflow-ingest/internal/models"

	"github.com/shopspring/decimal"
)

// RawRecord is one raw input row: a flat mapping of field name to
// string value, as produced by the CSV adapter or a JSON feed.
type RawRecord map[string]string

// Result is the outcome of normalizing a batch of raw records.
type Result struct {
	Events []models.CanonicalTxn
	// Rejections tallies one reason code per dropped row.
	Rejections map[string]int
	// ValidIndices holds the original positions of accepted records.
	ValidIndices []int
	// AcceptedPartialRows counts accepted rows flagged partial_record.
	AcceptedPartialRows int
}

// RowsRejected returns the total number of dropped rows.
func (r Result) RowsRejected() int {
	total := 0
	for _, n := range r.Rejections {
		total += n
	}
	return total
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-like timestamp string.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseBoolish interprets truthy strings ("1", "true", "t", "yes",
// "y", case-insensitive) as true.
func ParseBoolish(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes", "y":
		return true
	default:
		return false
	}
}

// NormalizeStatus canonicalizes a record_status value: trim, uppercase,
// underscores for spaces and dashes.
func NormalizeStatus(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

func isMissing(record RawRecord, field string) bool {
	val, ok := record[field]
	return !ok || strings.TrimSpace(val) == ""
}

// Normalize validates each record in its fixed field order,
// short-circuiting at the first failure, and builds CanonicalTxn events
// for the survivors. Records carrying a non-SUCCESS record_status are
// dropped and tallied into the same breakdown.
func Normalize(records []RawRecord, subjectRef string) Result {
	result := Result{
		Rejections:   map[string]int{},
		ValidIndices: []int{},
	}

	for i, record := range records {
		reject := func(reason string) {
			result.Rejections[reason]++
		}

		if isMissing(record, "merchant_id") {
			reject(models.RejectMissingRequiredField)
			continue
		}

		if isMissing(record, "ts") {
			reject(models.RejectMissingRequiredField)
			continue
		}
		eventTS, ok := ParseTimestamp(record["ts"])
		if !ok {
			reject(models.RejectInvalidTS)
			continue
		}

		if isMissing(record, "amount") {
			reject(models.RejectMissingRequiredField)
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(record["amount"]))
		if err != nil {
			reject(models.RejectInvalidAmount)
			continue
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			reject(models.RejectInvalidAmount)
			continue
		}

		if isMissing(record, "direction") {
			reject(models.RejectMissingRequiredField)
			continue
		}
		direction, ok := models.ParseDirection(record["direction"])
		if !ok {
			reject(models.RejectInvalidDirection)
			continue
		}

		if isMissing(record, "channel") {
			reject(models.RejectMissingRequiredField)
			continue
		}
		channel, ok := models.ParseChannel(record["channel"])
		if !ok {
			reject(models.RejectInvalidChannel)
			continue
		}

		// Secondary filter: only SUCCESS records survive when the
		// upstream supplied a record_status. A blank status is
		// treated as absent.
		if !isMissing(record, "record_status") {
			status := NormalizeStatus(record["record_status"])
			if status != "SUCCESS" {
				if _, known := models.KnownFailureStatuses[status]; known {
					reject(status)
				} else {
					reject(models.RejectUnknownStatus)
				}
				continue
			}
		}

		partial := ParseBoolish(record["partial_record"])
		if partial {
			result.AcceptedPartialRows++
		}

		result.Events = append(result.Events, models.CanonicalTxn{
			SubjectRef:           subjectRef,
			MerchantID:           strings.TrimSpace(record["merchant_id"]),
			EventTS:              eventTS,
			Amount:               amount,
			Direction:            direction,
			Channel:              channel,
			RawCategory:          record["raw_category"],
			RawNarration:         record["raw_narration"],
			RawCounterpartyToken: record["raw_counterparty_token"],
			PartialRecord:        partial,
		})
		result.ValidIndices = append(result.ValidIndices, i)
	}

	return result
}

// CheckAcceptance applies the batch-level gate. minRatio 0 disables
// the ratio check; empty batches and zero-accepted batches always
// fail.
func CheckAcceptance(accepted, rejected int, minRatio float64, breakdown map[string]int) error {
	total := accepted + rejected
	if total == 0 {
		return &ingesterror.BatchRejectionError{
			Reason:    ingesterror.ReasonEmptyBatch,
			Breakdown: map[string]int{},
		}
	}
	if accepted == 0 {
		return &ingesterror.BatchRejectionError{
			Reason:       ingesterror.ReasonNoValidRows,
			RowsRejected: rejected,
			Breakdown:    breakdown,
		}
	}

	ratio := float64(accepted) / float64(total)
	if minRatio > 0 && ratio < minRatio {
		return &ingesterror.BatchRejectionError{
			Reason:        ingesterror.ReasonRatioBelowMin,
			RowsAccepted:  accepted,
			RowsRejected:  rejected,
			Breakdown:     breakdown,
			AcceptedRatio: ratio,
		}
	}
	return nil
}

// DateRange is a closed calendar-day interval, both ends YYYY-MM-DD.
type DateRange struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
}

const dayLayout = "2006-01-02"

// ReconcileDeclaredRange validates an optional caller-declared date
// range against the inferred event range. Both or neither bound must
// be supplied. Returns nil when no range was declared.
func ReconcileDeclaredRange(declaredStart, declaredEnd string, minTS, maxTS time.Time) (*DateRange, error) {
	if declaredStart == "" && declaredEnd == "" {
		return nil, nil
	}
	if declaredStart == "" || declaredEnd == "" {
		return nil, &ingesterror.BatchRejectionError{
			Reason: ingesterror.ReasonInvalidRange,
			Detail: "both start_date and end_date must be provided",
		}
	}

	start, err := time.Parse(dayLayout, declaredStart)
	if err != nil {
		return nil, &ingesterror.BatchRejectionError{
			Reason: ingesterror.ReasonInvalidRange,
			Detail: "start_date must be YYYY-MM-DD",
		}
	}
	end, err := time.Parse(dayLayout, declaredEnd)
	if err != nil {
		return nil, &ingesterror.BatchRejectionError{
			Reason: ingesterror.ReasonInvalidRange,
			Detail: "end_date must be YYYY-MM-DD",
		}
	}
	if start.After(end) {
		return nil, &ingesterror.BatchRejectionError{
			Reason: ingesterror.ReasonInvalidRange,
			Detail: "start_date must be <= end_date",
		}
	}

	minDay, _ := time.Parse(dayLayout, minTS.Format(dayLayout))
	maxDay, _ := time.Parse(dayLayout, maxTS.Format(dayLayout))
	if minDay.Before(start) || maxDay.After(end) {
		return nil, &ingesterror.BatchRejectionError{
			Reason: ingesterror.ReasonRangeOutside,
			Detail: "inferred [" + minDay.Format(dayLayout) + ", " + maxDay.Format(dayLayout) + "] outside declared [" + declaredStart + ", " + declaredEnd + "]",
		}
	}

	return &DateRange{Start: declaredStart, End: declaredEnd}, nil
}
