// Package root contains the root command for the application.
package root

import (
	"cashflowd/cashflow-ingest/internal/config"
	"cashflowd/cashflow-ingest/internal/logging"

	"github.com/spf13/cobra"
)

// CommonFlags are the flags shared by the ingestion commands.
type CommonFlags struct {
	Input     string
	Subject   string
	Source    string
	StartDate string
	EndDate   string
}

var (
	// Log is the shared logger instance for commands.
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// Cfg is the loaded application configuration.
	Cfg *config.Config

	// SharedFlags holds common flag values for all commands.
	SharedFlags = CommonFlags{}

	// Cmd is the root command.
	Cmd = &cobra.Command{
		Use:   "cashflow-ingest",
		Short: "Ingest merchant cashflow batches and derive daily aggregates.",
		Long: `cashflow-ingest validates merchant transaction extracts (CSV files or
JSON feeds), classifies each transaction's cash-control nature and
stores only derived daily aggregates plus a batch fingerprint. Raw
transaction detail is never persisted.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to cashflow-ingest!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Initialize()
			if err != nil {
				return err
			}
			Cfg = cfg
			Log = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}
)

// Init registers the persistent flags shared by subcommands.
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Input, "input", "i", "", "Input file")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Subject, "subject", "s", "", "Opaque merchant subject reference")
	Cmd.PersistentFlags().StringVar(&SharedFlags.Source, "source", "", "Upstream source system identifier")
	Cmd.PersistentFlags().StringVar(&SharedFlags.StartDate, "start-date", "", "Declared range start (YYYY-MM-DD)")
	Cmd.PersistentFlags().StringVar(&SharedFlags.EndDate, "end-date", "", "Declared range end (YYYY-MM-DD)")
}
