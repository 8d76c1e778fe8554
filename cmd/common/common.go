// Package common provides shared wiring used by the ingestion
// commands: pipeline construction from configuration and receipt
// rendering.
package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"cashflowd/cashflow-ingest/internal/cct"
	"cashflowd/cashflow-ingest/internal/config"
	"cashflowd/cashflow-ingest/internal/ingesterror"
	"cashflowd/cashflow-ingest/internal/logging"
	"cashflowd/cashflow-ingest/internal/pipeline"
	"cashflowd/cashflow-ingest/internal/storage"
)

// BuildPipeline assembles the ingestion pipeline from configuration:
// SQLite sink, CCT engine (built-in or file-based rules) and settings.
func BuildPipeline(cfg *config.Config, logger logging.Logger) (*pipeline.Pipeline, error) {
	sink, err := storage.NewSQLiteSink(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	rules := cct.DefaultRules()
	if cfg.CCT.RulesFile != "" {
		rules, err = cct.LoadRules(cfg.CCT.RulesFile)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded CCT rules from file",
			logging.Field{Key: "path", Value: cfg.CCT.RulesFile},
			logging.Field{Key: "rules", Value: len(rules)},
		)
	}

	engine := cct.NewEngine(rules, cct.Config{
		MinConfidence:      cfg.CCT.MinConfidence,
		AmbiguityDelta:     cfg.CCT.AmbiguityDelta,
		ThresholdOverrides: cfg.CCT.ThresholdOverrides,
	}, logger)

	settings := pipeline.Settings{
		MinAcceptRatio:        cfg.Ingest.MinAcceptRatio,
		AllowMissingWatermark: cfg.Ingest.AllowMissingWatermark,
		MaxRows:               cfg.Ingest.MaxRows,
	}

	return pipeline.New(sink, engine, settings, logger), nil
}

// PrintReceipt writes the receipt as indented JSON to stdout.
func PrintReceipt(receipt *pipeline.Receipt) error {
	encoded, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(encoded))
	return nil
}

// ReportError logs an ingestion failure with its structured context so
// the caller can diagnose without resubmitting.
func ReportError(logger logging.Logger, err error) {
	var rejection *ingesterror.BatchRejectionError
	if errors.As(err, &rejection) {
		logger.WithFields(
			logging.Field{Key: "reason", Value: rejection.Reason},
			logging.Field{Key: "rows_accepted", Value: rejection.RowsAccepted},
			logging.Field{Key: "rows_rejected", Value: rejection.RowsRejected},
			logging.Field{Key: "rejection_breakdown", Value: rejection.Breakdown},
		).Error("batch rejected")
		return
	}
	if ingesterror.IsDuplicateBatch(err) {
		logger.WithError(err).Warn("batch already processed")
		return
	}
	logger.WithError(err).Error("ingestion failed")
}
