// Package file implements the file-batch ingestion command.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cashflowd/cashflow-ingest/cmd/common"
	"cashflowd/cashflow-ingest/cmd/root"
	"cashflowd/cashflow-ingest/internal/pipeline"

	"github.com/spf13/cobra"
)

// Cmd is the file ingestion command.
var Cmd = &cobra.Command{
	Use:   "file",
	Short: "Ingest a CSV transaction extract and derive daily aggregates",
	Long: `Ingest a CSV transaction extract for one merchant subject.
Rows are validated and classified in memory; only derived daily
aggregates and a batch fingerprint are stored.`,
	RunE: runFile,
}

func runFile(cmd *cobra.Command, args []string) error {
	flags := root.SharedFlags
	if flags.Input == "" {
		return fmt.Errorf("--input is required")
	}
	if flags.Subject == "" {
		return fmt.Errorf("--subject is required")
	}
	if flags.Source == "" {
		return fmt.Errorf("--source is required")
	}

	raw, err := os.ReadFile(flags.Input)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	p, err := common.BuildPipeline(root.Cfg, root.Log)
	if err != nil {
		return err
	}

	receipt, err := p.IngestFile(context.Background(), pipeline.FileBatch{
		SubjectRef:    flags.Subject,
		Source:        flags.Source,
		Filename:      filepath.Base(flags.Input),
		Raw:           raw,
		DeclaredStart: flags.StartDate,
		DeclaredEnd:   flags.EndDate,
	})
	if err != nil {
		common.ReportError(root.Log, err)
		return err
	}

	return common.PrintReceipt(receipt)
}
