package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Lllllllleong/thesisconverter/internal/config"
	"github.com/Lllllllleong/thesisconverter/internal/services"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "thesis-converter " + strings.Join(config.ArgNames, " "),
	Short: "Split archived thesis PDFs into chapters stored on their Firestore records",
	Long: `thesis-converter walks a Firestore collection of thesis records, downloads the
PDF each bachelor or master thesis points at, extracts its text and writes the
chapters found between the abstract and the bibliography back to the record.

Records that already have chapters are skipped, so the command can be re-run.
Every setting besides the positional arguments can come from a config file or
THESIS_* environment variables.`,
	Args:          cobra.ExactArgs(len(config.ArgNames)),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runConversion,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.thesis-converter/config.yaml)",
	)
}

func main() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Conversion run aborted", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runConversion(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.ApplyArgs(args); err != nil {
		return err
	}

	ctx := cmd.Context()
	pipeline, err := services.NewPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			slog.Warn("Failed to close clients", "error", err)
		}
	}()

	slog.Info("Starting conversion run.",
		"sourceBucket", cfg.SourceBucket,
		"projectId", cfg.ProjectID,
		"databaseId", cfg.DatabaseID,
		"collectionId", cfg.CollectionID,
		"retries", cfg.Retries,
		"batchSize", cfg.BatchSize,
		"extractor", cfg.Extractor,
	)

	_, err = pipeline.Orchestrator().Run(ctx)
	return err
}
