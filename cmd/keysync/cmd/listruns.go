package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/keysync/internal/store"
)

var listRunsLimit int

var listRunsCmd = &cobra.Command{
	Use:   "list-runs",
	Short: "List recent reconciliation runs",
	Long: `List-runs displays the most recent reconciliation runs with their
mode, status and timing.

Example:
  keysync list-runs --db ./data/keysync.db --limit 20`,
	RunE: runListRuns,
}

func init() {
	listRunsCmd.Flags().IntVar(&listRunsLimit, "limit", 20,
		"Maximum number of runs to display")

	rootCmd.AddCommand(listRunsCmd)
}

func runListRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(cmd.Context(), cfg.Database.Path, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), listRunsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		cmd.Printf("No runs recorded in %s\n", cfg.Database.Path)
		return nil
	}

	cmd.Printf("Recent runs in %s:\n\n", cfg.Database.Path)
	for i, run := range runs {
		cmd.Printf("%d. Run #%d\n", i+1, run.ID)
		cmd.Printf("   Started:   %s\n", run.Timestamp.Format(time.RFC3339))
		cmd.Printf("   Mode:      %s (%s)\n", run.Mode, run.ExecutionMode)
		cmd.Printf("   Status:    %s\n", run.Status)
		if run.CompletedAt != nil {
			cmd.Printf("   Duration:  %s\n", run.CompletedAt.Sub(run.Timestamp).Round(time.Millisecond))
		}
		if run.ErrorMessage != "" {
			cmd.Printf("   Error:     %s\n", run.ErrorMessage)
		}
		if i < len(runs)-1 {
			cmd.Println()
		}
	}
	cmd.Printf("\nTotal: %d run(s)\n", len(runs))
	return nil
}
