// Package pipeline orchestrates the two ingestion operations: file
// batches (CSV uploads) and feed batches (JSON event lists). Each runs
// the same stages end to end: normalize, gate, fingerprint, classify,
// aggregate, then register the batch and persist the derived
// aggregates. Raw transaction detail never leaves the request.
package pipeline

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"time"

	"cashflowd/cashflow-ingest/internal/aggregate"
	"cashflowd/cashflow-ingest/internal/cct"
	"cashflowd/cashflow-ingest/internal/csvsource"
	"cashflowd/cashflow-ingest/internal/idempotency"
	"cashflowd/cashflow-ingest/internal/ingesterror"
	"cashflowd/cashflow-ingest/internal/logging"
	"cashflowd/cashflow-ingest/internal/models"
	"cashflowd/cashflow-ingest/internal/normalizer"
	"cashflowd/cashflow-ingest/internal/storage"
)

// StatusIngested marks a successfully processed batch; only derived
// aggregates were stored.
const StatusIngested = "INGESTED_DERIVED_ONLY"

// Settings are the pipeline's runtime knobs, injected by the caller.
type Settings struct {
	// MinAcceptRatio is the batch acceptance gate; 0 disables it.
	MinAcceptRatio float64
	// AllowMissingWatermark permits watermark substitution when the
	// feed caller also opts in.
	AllowMissingWatermark bool
	// MaxRows caps the records accepted per upload.
	MaxRows int
}

// FileBatch is the input of the file ingestion operation.
type FileBatch struct {
	SubjectRef    string
	Source        string
	Filename      string
	Raw           []byte
	DeclaredStart string
	DeclaredEnd   string
}

// FeedBatch is the input of the feed ingestion operation.
type FeedBatch struct {
	SubjectRef string
	Source     string
	Events     []normalizer.RawRecord
	// Watermark is the upstream checkpoint; nil means absent.
	Watermark *time.Time
	// AllowMissingWatermark is the caller's opt-in to substitution.
	AllowMissingWatermark bool
	DeclaredStart         string
	DeclaredEnd           string
}

// Receipt is the structured outcome returned for an accepted batch.
type Receipt struct {
	Status              string                `json:"status"`
	BatchID             string                `json:"batch_id"`
	SubjectRef          string                `json:"subject_ref"`
	Source              string                `json:"source"`
	FilenameHash        string                `json:"filename_hash,omitempty"`
	FileExt             string                `json:"file_ext,omitempty"`
	ContentHash         string                `json:"content_hash"`
	IdempotencyKey      string                `json:"idempotency_key"`
	RowsAccepted        int                   `json:"rows_accepted"`
	RowsRejected        int                   `json:"rows_rejected"`
	RejectionBreakdown  map[string]int        `json:"rejection_breakdown"`
	AcceptedPartialRows int                   `json:"accepted_partial_rows"`
	InferredRange       normalizer.DateRange  `json:"inferred_range"`
	DeclaredRange       *normalizer.DateRange `json:"declared_range,omitempty"`
	WatermarkTS         string                `json:"watermark_ts,omitempty"`
	CashflowDays        int                   `json:"daily_aggregate_days"`
	ControlDays         int                   `json:"daily_control_days"`
	CCTUnknownRate      float64               `json:"cct_unknown_rate"`
	PayerTokenPresent   bool                  `json:"payer_token_present"`
}

// Pipeline wires the stages together over an injected storage port.
type Pipeline struct {
	store    storage.Port
	engine   *cct.Engine
	settings Settings
	logger   logging.Logger
}

// New constructs a pipeline. The storage port and CCT engine are
// required; a nil logger falls back to a no-op logger.
func New(store storage.Port, engine *cct.Engine, settings Settings, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pipeline{store: store, engine: engine, settings: settings, logger: logger}
}

// IngestFile validates and aggregates a CSV upload, then persists the
// batch record and both aggregate sets.
func (p *Pipeline) IngestFile(ctx context.Context, batch FileBatch) (*Receipt, error) {
	if len(batch.Raw) == 0 {
		return nil, &ingesterror.BatchRejectionError{
			Reason:    ingesterror.ReasonEmptyBatch,
			Breakdown: map[string]int{},
		}
	}

	contentHash := idempotency.SHA256Hex(batch.Raw)
	filenameHash := ""
	fileExt := ""
	if batch.Filename != "" {
		filenameHash = idempotency.SHA256Hex([]byte(batch.Filename))
		fileExt = strings.ToLower(filepath.Ext(batch.Filename))
	}

	records, err := csvsource.Read(batch.Raw, p.settings.MaxRows)
	if err != nil {
		return nil, err
	}

	result := normalizer.Normalize(records, batch.SubjectRef)
	rowsRejected := result.RowsRejected()

	if err := normalizer.CheckAcceptance(len(result.Events), rowsRejected, p.settings.MinAcceptRatio, result.Rejections); err != nil {
		return nil, err
	}

	minTS, maxTS := idempotency.InferRange(result.Events)
	declared, err := normalizer.ReconcileDeclaredRange(batch.DeclaredStart, batch.DeclaredEnd, minTS, maxTS)
	if err != nil {
		return nil, err
	}

	keyStart, keyEnd := keyRange(declared, minTS, maxTS)
	idemKey := idempotency.FileBatchKey(batch.SubjectRef, batch.Source, contentHash, keyStart, keyEnd)

	receipt, err := p.finish(ctx, finishInput{
		subjectRef:   batch.SubjectRef,
		source:       batch.Source,
		filenameHash: filenameHash,
		fileExt:      fileExt,
		contentHash:  contentHash,
		idemKey:      idemKey,
		result:       result,
		rowsRejected: rowsRejected,
		minTS:        minTS,
		maxTS:        maxTS,
		declared:     declared,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("file batch ingested",
		logging.Field{Key: "subject_ref", Value: batch.SubjectRef},
		logging.Field{Key: "batch_id", Value: receipt.BatchID},
		logging.Field{Key: "rows_accepted", Value: receipt.RowsAccepted},
		logging.Field{Key: "rows_rejected", Value: receipt.RowsRejected},
	)
	return receipt, nil
}

// IngestFeed validates and aggregates an explicit event list. The
// watermark is required unless both the caller and the configuration
// permit substituting the maximum observed event timestamp.
func (p *Pipeline) IngestFeed(ctx context.Context, batch FeedBatch) (*Receipt, error) {
	if len(batch.Events) == 0 {
		return nil, &ingesterror.BatchRejectionError{
			Reason:    ingesterror.ReasonEmptyBatch,
			Breakdown: map[string]int{},
		}
	}

	if batch.Watermark == nil && !(batch.AllowMissingWatermark && p.settings.AllowMissingWatermark) {
		return nil, &ingesterror.BatchRejectionError{
			Reason:    ingesterror.ReasonMissingWatermark,
			Breakdown: map[string]int{},
		}
	}

	if p.settings.MaxRows > 0 && len(batch.Events) > p.settings.MaxRows {
		return nil, &ingesterror.InputMalformedError{
			Source: "feed",
			Reason: "too many events",
		}
	}

	payloadHash, err := idempotency.PayloadHash(batch.Events)
	if err != nil {
		return nil, &ingesterror.InputMalformedError{Source: "feed", Reason: "uncanonicalizable payload", Err: err}
	}

	result := normalizer.Normalize(batch.Events, batch.SubjectRef)
	rowsRejected := result.RowsRejected()

	if err := normalizer.CheckAcceptance(len(result.Events), rowsRejected, p.settings.MinAcceptRatio, result.Rejections); err != nil {
		return nil, err
	}

	minTS, maxTS := idempotency.InferRange(result.Events)
	declared, err := normalizer.ReconcileDeclaredRange(batch.DeclaredStart, batch.DeclaredEnd, minTS, maxTS)
	if err != nil {
		return nil, err
	}

	effectiveWatermark := maxTS
	if batch.Watermark != nil {
		effectiveWatermark = *batch.Watermark
	}

	keyStart, keyEnd := keyRange(declared, minTS, maxTS)
	idemKey := idempotency.FeedBatchKey(
		batch.SubjectRef, batch.Source, effectiveWatermark,
		keyStart, keyEnd, len(batch.Events), payloadHash)

	receipt, err := p.finish(ctx, finishInput{
		subjectRef:   batch.SubjectRef,
		source:       batch.Source,
		contentHash:  payloadHash,
		idemKey:      idemKey,
		result:       result,
		rowsRejected: rowsRejected,
		minTS:        minTS,
		maxTS:        maxTS,
		declared:     declared,
	})
	if err != nil {
		return nil, err
	}

	receipt.WatermarkTS = effectiveWatermark.Format(time.RFC3339)
	p.logger.Info("feed batch ingested",
		logging.Field{Key: "subject_ref", Value: batch.SubjectRef},
		logging.Field{Key: "batch_id", Value: receipt.BatchID},
		logging.Field{Key: "rows_accepted", Value: receipt.RowsAccepted},
		logging.Field{Key: "watermark_ts", Value: receipt.WatermarkTS},
	)
	return receipt, nil
}

type finishInput struct {
	subjectRef   string
	source       string
	filenameHash string
	fileExt      string
	contentHash  string
	idemKey      string
	result       normalizer.Result
	rowsRejected int
	minTS        time.Time
	maxTS        time.Time
	declared     *normalizer.DateRange
}

// finish runs the aggregation stages and the two ordered writes:
// batch registration first, aggregates only after it succeeds.
func (p *Pipeline) finish(ctx context.Context, in finishInput) (*Receipt, error) {
	events := in.result.Events

	daily := aggregate.ComputeDailyCashflow(events)
	control := aggregate.ComputeDailyControl(events, p.engine)
	unknownRate := unknownCCTRate(control)
	payerTokenPresent := false
	for _, event := range events {
		if event.RawCounterpartyToken != "" {
			payerTokenPresent = true
			break
		}
	}

	const dayLayout = "2006-01-02"
	record := models.BatchRecord{
		SubjectRef:     in.subjectRef,
		Source:         in.source,
		FilenameHash:   in.filenameHash,
		FileExt:        in.fileExt,
		ContentHash:    in.contentHash,
		IdempotencyKey: in.idemKey,
		RowsAccepted:   len(events),
		RowsRejected:   in.rowsRejected,
		RangeStart:     in.minTS.Format(dayLayout),
		RangeEnd:       in.maxTS.Format(dayLayout),
		CCTUnknownRate: unknownRate,
	}

	batchID, err := p.store.RegisterBatch(ctx, record)
	if err != nil {
		if ingesterror.IsDuplicateBatch(err) {
			return nil, err
		}
		return nil, &ingesterror.StorageError{Op: "register_batch", Err: err}
	}

	if err := p.store.PersistCashflowAggregates(ctx, in.subjectRef, daily); err != nil {
		return nil, &ingesterror.StorageError{Op: "persist_cashflow_aggregates", Err: err}
	}
	if err := p.store.PersistControlAggregates(ctx, in.subjectRef, control); err != nil {
		return nil, &ingesterror.StorageError{Op: "persist_control_aggregates", Err: err}
	}

	return &Receipt{
		Status:              StatusIngested,
		BatchID:             batchID,
		SubjectRef:          in.subjectRef,
		Source:              in.source,
		FilenameHash:        in.filenameHash,
		FileExt:             in.fileExt,
		ContentHash:         in.contentHash,
		IdempotencyKey:      in.idemKey,
		RowsAccepted:        len(events),
		RowsRejected:        in.rowsRejected,
		RejectionBreakdown:  in.result.Rejections,
		AcceptedPartialRows: in.result.AcceptedPartialRows,
		InferredRange: normalizer.DateRange{
			Start: record.RangeStart,
			End:   record.RangeEnd,
		},
		DeclaredRange:     in.declared,
		CashflowDays:      len(daily),
		ControlDays:       len(control),
		CCTUnknownRate:    unknownRate,
		PayerTokenPresent: payerTokenPresent,
	}, nil
}

// keyRange picks the declared range for keying when present, the
// inferred range otherwise.
func keyRange(declared *normalizer.DateRange, minTS, maxTS time.Time) (string, string) {
	if declared != nil {
		return declared.Start, declared.End
	}
	const dayLayout = "2006-01-02"
	return minTS.Format(dayLayout), maxTS.Format(dayLayout)
}

// unknownCCTRate is the share of classified events that resolved to
// UNKNOWN, rounded to six decimal places.
func unknownCCTRate(control map[string]models.DailyControl) float64 {
	unknown := 0
	total := 0
	for _, day := range control {
		unknown += day.Derived.UnknownCCTCount
		for _, count := range day.Counts {
			total += count
		}
	}
	if total == 0 {
		return 0
	}
	return math.Round(float64(unknown)/float64(total)*1e6) / 1e6
}
