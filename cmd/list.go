package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/allanai/rallymetrics/internal/report"
	"github.com/allanai/rallymetrics/internal/storage"
)

var (
	listStatus string
	listSource string
	listLimit  uint64
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored matches",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (UPLOADED|PROCESSING|COMPLETE|FAILED)")
	listCmd.Flags().StringVar(&listSource, "source", "", "filter by source")
	listCmd.Flags().Uint64Var(&listLimit, "limit", 0, "maximum rows (0 = all)")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	matches, err := db.ListMatches(storage.ListFilter{
		Status: listStatus,
		Source: listSource,
		Limit:  listLimit,
	})
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}
	if len(matches) == 0 {
		fmt.Fprintln(os.Stdout, "No matches stored yet. Run 'rallymetrics process <inference.json>' to add one.")
		return nil
	}
	report.PrintMatchList(os.Stdout, matches)
	return nil
}
