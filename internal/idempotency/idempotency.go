// Package idempotency derives the deterministic batch fingerprints
// used for at-most-once ingestion. Identical inputs always yield
// identical keys; payload hashing canonicalizes serialization first so
// JSON key order cannot change the digest.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"cashflowd/cashflow-ingest/internal/models"
	"cashflowd/cashflow-ingest/internal/normalizer"
)

// SHA256Hex digests arbitrary bytes to a lowercase hex string.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileBatchKey fingerprints a file-based batch over its identity
// tuple: subject, source, content hash and inferred (or declared)
// date range.
func FileBatchKey(subjectRef, source, contentHash, minDate, maxDate string) string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s", subjectRef, source, contentHash, minDate, maxDate)
	return SHA256Hex([]byte(payload))
}

// FeedBatchKey fingerprints a feed-based batch, additionally binding
// the effective watermark, event count and canonical payload hash.
func FeedBatchKey(subjectRef, source string, watermark time.Time, minDate, maxDate string, eventCount int, payloadHash string) string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s",
		subjectRef, source, watermark.Format(time.RFC3339), minDate, maxDate, eventCount, payloadHash)
	return SHA256Hex([]byte(payload))
}

// PayloadHash digests the canonical serialization of raw feed events.
// encoding/json writes map keys in sorted order, so two payloads that
// differ only in field ordering hash identically.
func PayloadHash(events []normalizer.RawRecord) (string, error) {
	canonical, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	return SHA256Hex(canonical), nil
}

// InferRange returns the minimum and maximum event timestamps of a
// non-empty batch.
func InferRange(events []models.CanonicalTxn) (time.Time, time.Time) {
	minTS := events[0].EventTS
	maxTS := events[0].EventTS
	for _, event := range events[1:] {
		if event.EventTS.Before(minTS) {
			minTS = event.EventTS
		}
		if event.EventTS.After(maxTS) {
			maxTS = event.EventTS
		}
	}
	return minTS, maxTS
}
