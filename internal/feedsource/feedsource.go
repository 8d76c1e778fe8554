// Package feedsource adapts a JSON feed document into raw records for
// the normalizer. Event values are stringified without loss so the
// canonical payload hash stays stable across callers.
package feedsource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"cashflowd/cashflow-ingest/internal/ingesterror"
	"cashflowd/cashflow-ingest/internal/normalizer"
)

// Document is the JSON feed payload shape.
type Document struct {
	WatermarkTS           string                   `json:"watermark_ts"`
	AllowMissingWatermark bool                     `json:"allow_missing_watermark"`
	StartDate             string                   `json:"start_date"`
	EndDate               string                   `json:"end_date"`
	Events                []map[string]interface{} `json:"events"`
}

// Parsed is the decoded feed ready for the pipeline.
type Parsed struct {
	Watermark             *time.Time
	AllowMissingWatermark bool
	StartDate             string
	EndDate               string
	Events                []normalizer.RawRecord
}

// Parse decodes a feed document. Numbers are decoded verbatim (no
// float round-trip) so equal payloads always stringify equally.
func Parse(raw []byte) (*Parsed, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var doc Document
	if err := decoder.Decode(&doc); err != nil {
		return nil, &ingesterror.InputMalformedError{
			Source: "feed",
			Reason: "unparseable JSON document",
			Err:    err,
		}
	}

	parsed := &Parsed{
		AllowMissingWatermark: doc.AllowMissingWatermark,
		StartDate:             doc.StartDate,
		EndDate:               doc.EndDate,
		Events:                make([]normalizer.RawRecord, len(doc.Events)),
	}

	if doc.WatermarkTS != "" {
		watermark, ok := normalizer.ParseTimestamp(doc.WatermarkTS)
		if !ok {
			return nil, &ingesterror.InputMalformedError{
				Source: "feed",
				Reason: fmt.Sprintf("unparseable watermark_ts: %q", doc.WatermarkTS),
			}
		}
		parsed.Watermark = &watermark
	}

	for i, event := range doc.Events {
		record := normalizer.RawRecord{}
		for field, value := range event {
			record[field] = stringify(value)
		}
		parsed.Events[i] = record
	}
	return parsed, nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		// Nested structures are not part of the feed contract; keep
		// their JSON form so validation rejects them downstream.
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
