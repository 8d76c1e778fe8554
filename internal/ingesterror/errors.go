// Package ingesterror defines the error taxonomy of the ingestion
// pipeline. Per-row field rejections are tallied, never raised; only
// batch-level conditions surface as errors.
package ingesterror

import (
	"errors"
	"fmt"
)

// Batch rejection reason codes carried by BatchRejectionError.
const (
	ReasonEmptyBatch       = "empty batch"
	ReasonNoValidRows      = "no valid rows after filtering/validation"
	ReasonRatioBelowMin    = "accepted_ratio below minimum threshold"
	ReasonInvalidRange     = "invalid_declared_range"
	ReasonRangeOutside     = "inferred range outside declared range"
	ReasonMissingWatermark = "missing watermark_ts"
)

// InputMalformedError means the batch structure itself could not be
// parsed (bad CSV header, unreadable JSON). The whole batch is
// rejected.
type InputMalformedError struct {
	Source string
	Reason string
	Err    error
}

func (e *InputMalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed input from %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed input from %s: %s", e.Source, e.Reason)
}

func (e *InputMalformedError) Unwrap() error {
	return e.Err
}

// BatchRejectionError is a fatal batch-level condition. It carries the
// counts computed so far so the caller can diagnose without
// resubmission guesswork.
type BatchRejectionError struct {
	Reason        string
	Detail        string
	RowsAccepted  int
	RowsRejected  int
	Breakdown     map[string]int
	AcceptedRatio float64
}

func (e *BatchRejectionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("batch rejected: %s: %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("batch rejected: %s", e.Reason)
}

// DuplicateBatchError signals an idempotency-key collision: the batch
// was already processed. Distinct from a validation failure.
type DuplicateBatchError struct {
	IdempotencyKey string
}

func (e *DuplicateBatchError) Error() string {
	return fmt.Sprintf("batch already ingested: %s", e.IdempotencyKey)
}

// StorageError wraps a failure surfaced by the storage port. The
// pipeline never retries; retry policy belongs to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsDuplicateBatch reports whether err is a duplicate-batch condition.
func IsDuplicateBatch(err error) bool {
	var dup *DuplicateBatchError
	return errors.As(err, &dup)
}
