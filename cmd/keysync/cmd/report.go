package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/keysync/internal/reconciler"
	"github.com/dbsmedya/keysync/internal/store"
)

var reportAudit bool

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Show the stored report for a reconciliation run",
	Long: `Report displays the persisted statistics, provisioned master keys and
optionally the audit trail of a past run.

Example:
  keysync report 42 --audit`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportAudit, "audit", false,
		"Include the full audit trail")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	runID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

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

	run, err := st.GetRun(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %d not found", runID)
	}

	cmd.Printf("=== Run #%d ===\n", run.ID)
	cmd.Printf("Started:   %s\n", run.Timestamp.Format(time.RFC3339))
	cmd.Printf("Mode:      %s (%s)\n", run.Mode, run.ExecutionMode)
	cmd.Printf("Status:    %s\n", run.Status)
	if run.CompletedAt != nil {
		cmd.Printf("Completed: %s\n", run.CompletedAt.Format(time.RFC3339))
	}
	if run.ErrorMessage != "" {
		cmd.Printf("Error:     %s\n", run.ErrorMessage)
	}
	if run.Status == store.RunStatusFailed {
		stage, entry, cpErr := reconciler.LastCheckpoint(run.CheckpointData)
		if cpErr != nil {
			log.Debugw("No usable checkpoint for failed run", "run_id", runID, "error", cpErr)
		} else {
			cmd.Printf("Reached:   %s (%s, %d items)\n", stage, entry.DataType, entry.Size)
		}
	}

	if run.StatsJSON != "" {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, []byte(run.StatsJSON), "", "  "); err == nil {
			cmd.Printf("\nStatistics:\n%s\n", pretty.String())
		}
	}

	keys, err := st.GetMasterKeysForRun(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("failed to get master keys: %w", err)
	}
	if len(keys) > 0 {
		cmd.Printf("\nMaster keys (%d):\n", len(keys))
		for _, key := range keys {
			cmd.Printf("  %s  [%s]  from %s:%s  (%s)\n",
				key.MasterKey, key.Status, key.SourceSystem, key.SourceKey, key.Strategy)
		}
	}

	if reportAudit {
		events, err := st.GetAuditEvents(cmd.Context(), runID)
		if err != nil {
			return fmt.Errorf("failed to get audit events: %w", err)
		}
		cmd.Printf("\nAudit trail (%d events):\n", len(events))
		for _, ev := range events {
			cmd.Printf("  %s  %-32s %s\n",
				ev.Timestamp.Format(time.RFC3339), ev.EventType, ev.Result)
		}
	}

	return nil
}
