package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/allanai/rallymetrics/internal/engine"
	"github.com/allanai/rallymetrics/internal/ingest"
	"github.com/allanai/rallymetrics/internal/logging"
	"github.com/allanai/rallymetrics/internal/report"
)

var processMatchID string

var processCmd = &cobra.Command{
	Use:   "process <inference.json>",
	Short: "Process a model inference document into a match document",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processMatchID, "match-id", "", "match id (defaults to the file name)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	path := args[0]
	matchID := processMatchID
	if matchID == "" {
		matchID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	raw, err := ingest.ParseFile(path)
	if err != nil {
		return fmt.Errorf("read inference document: %w", err)
	}

	if err := db.MarkProcessing(matchID, raw.Source); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	doc, err := engine.New(cfg, log).Process(context.Background(), matchID, raw)
	if err != nil {
		if markErr := db.MarkFailed(matchID, err.Error()); markErr != nil {
			log.Error("mark failed", "match_id", matchID, "error", markErr)
		}
		return fmt.Errorf("process match %s: %w", matchID, err)
	}
	if err := db.SaveResult(doc); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	summary, err := db.GetSummary(matchID)
	if err != nil {
		return err
	}
	report.PrintMatchSummary(os.Stdout, *summary)
	report.PrintStatistics(os.Stdout, &doc.Statistics)
	report.PrintPlayerTable(os.Stdout, doc.Statistics.PlayerBreakdown)
	report.PrintHighlights(os.Stdout, doc)
	report.PrintNotes(os.Stdout, doc.Summary)
	return nil
}
