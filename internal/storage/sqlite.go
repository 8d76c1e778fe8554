package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cashflowd/cashflow-ingest/internal/ingesterror"
	"cashflowd/cashflow-ingest/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// batchRow persists one BatchRecord. The unique index on the
// idempotency key gives RegisterBatch its atomic duplicate detection.
type batchRow struct {
	ID             string `gorm:"primaryKey"`
	IdempotencyKey string `gorm:"uniqueIndex"`
	SubjectRef     string `gorm:"index"`
	Source         string
	FilenameHash   string
	FileExt        string
	ContentHash    string
	RowsAccepted   int
	RowsRejected   int
	RangeStart     string
	RangeEnd       string
	CCTUnknownRate float64
	CreatedAt      time.Time
}

func (batchRow) TableName() string { return "ingest_batches" }

// cashflowRow persists one day's inflow/outflow totals. Amounts are
// stored as decimal strings to avoid float drift.
type cashflowRow struct {
	SubjectRef string `gorm:"primaryKey"`
	Day        string `gorm:"primaryKey"`
	Inflow     string
	Outflow    string
	UpdatedAt  time.Time
}

func (cashflowRow) TableName() string { return "daily_cashflow" }

// controlRow persists one day's control aggregate as a JSON payload.
type controlRow struct {
	SubjectRef string `gorm:"primaryKey"`
	Day        string `gorm:"primaryKey"`
	Payload    string
	UpdatedAt  time.Time
}

func (controlRow) TableName() string { return "daily_control" }

// SQLiteSink is the production Port implementation backed by SQLite.
type SQLiteSink struct {
	db *gorm.DB
}

// NewSQLiteSink opens (or creates) the database at path and migrates
// the schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&batchRow{}, &cashflowRow{}, &controlRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// RegisterBatch inserts the batch record. A unique-key violation on
// the idempotency key surfaces as a duplicate-batch error.
func (s *SQLiteSink) RegisterBatch(ctx context.Context, batch models.BatchRecord) (string, error) {
	row := batchRow{
		ID:             uuid.NewString(),
		IdempotencyKey: batch.IdempotencyKey,
		SubjectRef:     batch.SubjectRef,
		Source:         batch.Source,
		FilenameHash:   batch.FilenameHash,
		FileExt:        batch.FileExt,
		ContentHash:    batch.ContentHash,
		RowsAccepted:   batch.RowsAccepted,
		RowsRejected:   batch.RowsRejected,
		RangeStart:     batch.RangeStart,
		RangeEnd:       batch.RangeEnd,
		CCTUnknownRate: batch.CCTUnknownRate,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", &ingesterror.DuplicateBatchError{IdempotencyKey: batch.IdempotencyKey}
		}
		return "", fmt.Errorf("failed to register batch: %w", err)
	}
	return row.ID, nil
}

// PersistCashflowAggregates upserts daily cashflow totals keyed by
// (subject_ref, day).
func (s *SQLiteSink) PersistCashflowAggregates(ctx context.Context, subjectRef string, daily map[string]models.DailyCashflow) error {
	for day, agg := range daily {
		row := cashflowRow{
			SubjectRef: subjectRef,
			Day:        day,
			Inflow:     agg.Inflow.StringFixed(2),
			Outflow:    agg.Outflow.StringFixed(2),
		}
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "subject_ref"}, {Name: "day"}},
				UpdateAll: true,
			}).
			Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to persist cashflow aggregate for %s: %w", day, err)
		}
	}
	return nil
}

// PersistControlAggregates upserts daily control aggregates keyed by
// (subject_ref, day).
func (s *SQLiteSink) PersistControlAggregates(ctx context.Context, subjectRef string, daily map[string]models.DailyControl) error {
	for day, agg := range daily {
		payload, err := json.Marshal(agg)
		if err != nil {
			return fmt.Errorf("failed to encode control aggregate for %s: %w", day, err)
		}
		row := controlRow{
			SubjectRef: subjectRef,
			Day:        day,
			Payload:    string(payload),
		}
		err = s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "subject_ref"}, {Name: "day"}},
				UpdateAll: true,
			}).
			Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to persist control aggregate for %s: %w", day, err)
		}
	}
	return nil
}
