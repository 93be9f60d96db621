package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/allanai/rallymetrics/internal/report"
)

var (
	showTimeline      bool
	showMomentum      bool
	showMinImportance int
)

var showCmd = &cobra.Command{
	Use:   "show <match-id>",
	Short: "Show a stored match document",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showTimeline, "timeline", false, "print the event timeline")
	showCmd.Flags().BoolVar(&showMomentum, "momentum", false, "print the momentum timeline")
	showCmd.Flags().IntVar(&showMinImportance, "min-importance", 0, "timeline importance floor")
}

func runShow(cmd *cobra.Command, args []string) error {
	matchID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	summary, err := db.GetSummary(matchID)
	if err != nil {
		return fmt.Errorf("query match: %w", err)
	}
	if summary == nil {
		fmt.Fprintf(os.Stderr, "No match found with id %q\n", matchID)
		return nil
	}
	report.PrintMatchSummary(os.Stdout, *summary)

	doc, err := db.GetDocument(matchID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil
	}

	report.PrintStatistics(os.Stdout, &doc.Statistics)
	report.PrintPlayerTable(os.Stdout, doc.Statistics.PlayerBreakdown)
	report.PrintShotTypeTable(os.Stdout, doc.Statistics.ShotTypeBreakdown)
	report.PrintHighlights(os.Stdout, doc)

	if showTimeline {
		rows, err := db.ListEvents(matchID, showMinImportance)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		report.PrintTimeline(os.Stdout, rows)
	}
	if showMomentum {
		samples, err := db.GetMomentum(matchID)
		if err != nil {
			return fmt.Errorf("load momentum: %w", err)
		}
		report.PrintMomentum(os.Stdout, samples)
	}
	report.PrintNotes(os.Stdout, doc.Summary)
	return nil
}
