package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dropCmd = &cobra.Command{
	Use:   "drop <match-id>",
	Short: "Delete a stored match and all its rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runDrop,
}

func runDrop(cmd *cobra.Command, args []string) error {
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

	exists, err := db.Exists(matchID)
	if err != nil {
		return fmt.Errorf("query match: %w", err)
	}
	if !exists {
		fmt.Fprintf(os.Stderr, "No match found with id %q\n", matchID)
		return nil
	}
	if err := db.Delete(matchID); err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Deleted match %s\n", matchID)
	return nil
}
