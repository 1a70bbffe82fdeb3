package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/keysync/internal/comparator"
	"github.com/dbsmedya/keysync/internal/config"
	"github.com/dbsmedya/keysync/internal/lock"
	"github.com/dbsmedya/keysync/internal/logger"
	"github.com/dbsmedya/keysync/internal/mockdata"
	"github.com/dbsmedya/keysync/internal/provisioner"
	"github.com/dbsmedya/keysync/internal/reconciler"
	"github.com/dbsmedya/keysync/internal/reporter"
	"github.com/dbsmedya/keysync/internal/resilience"
	"github.com/dbsmedya/keysync/internal/store"
)

var (
	reconcileMode     string
	reconcileDryRun   bool
	reconcileApprove  bool
	reconcileInputDir string
	reconcileGenerate bool
	reconcileScenario string
	reconcileKeys     int
	reconcileSeed     int64
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run a reconciliation cycle across all source systems",
	Long: `Reconcile loads keys from every configured source system, normalizes
them, compares them against the authority system and records the outcome.

The reconciliation cycle follows these steps:
  1. Load and normalize keys from each system file
  2. Compare key sets against the authority system
  3. Classify discrepancies (missing keys, gaps, duplicate groups)
  4. Propose master keys for keys absent from the authority
  5. Persist run history, audit trail and reports

Example:
  keysync reconcile --config keysync.yaml --mode full --auto-approve`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileMode, "mode", "",
		"Run mode: full or incremental (default from config)")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false,
		"Analyze and propose without activating master keys")
	reconcileCmd.Flags().BoolVar(&reconcileApprove, "auto-approve", false,
		"Activate proposed master keys without review")
	reconcileCmd.Flags().StringVar(&reconcileInputDir, "input-dir", "",
		"Directory holding <SYSTEM>.csv files (overrides configured source paths)")
	reconcileCmd.Flags().BoolVar(&reconcileGenerate, "generate-data", false,
		"Generate synthetic input data before reconciling")
	reconcileCmd.Flags().StringVar(&reconcileScenario, "scenario", "",
		"Synthetic data scenario: normal, drift, failure, recovery")
	reconcileCmd.Flags().IntVar(&reconcileKeys, "keys", 0,
		"Synthetic keys per system")
	reconcileCmd.Flags().Int64Var(&reconcileSeed, "seed", 0,
		"Synthetic data random seed")
	reconcileCmd.MarkFlagsMutuallyExclusive("dry-run", "auto-approve")

	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applySimulationFlags(cfg)

	mode := store.RunMode(cfg.Processing.Mode)
	if reconcileMode != "" {
		switch reconcileMode {
		case "full", "incremental":
			mode = store.RunMode(reconcileMode)
		default:
			return fmt.Errorf("invalid mode %q (must be full or incremental)", reconcileMode)
		}
	}

	execMode := store.ExecutionModeNormal
	if reconcileApprove || cfg.Provisioning.AutoApprove {
		execMode = store.ExecutionModeAutoApprove
	}
	// --dry-run wins over a configured auto_approve.
	if reconcileDryRun {
		execMode = store.ExecutionModeDryRun
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Infow("Starting reconciliation",
		"mode", mode,
		"execution_mode", execMode,
		"config", GetConfigFile(),
	)

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("Received shutdown signal - aborting run...")
		cancel()
	}()

	// One reconciliation process at a time per database.
	runLock := lock.New(lockPath(cfg))
	if err := runLock.TryAcquire(); err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return fmt.Errorf("another reconciliation is already running (lock %s)", lockPath(cfg))
		}
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	defer runLock.Release()

	// Optionally generate fresh input data.
	if reconcileGenerate {
		if err := generateInputData(cfg, log); err != nil {
			return err
		}
	}

	// Open the database with retries; transient open failures happen when a
	// previous process is still releasing the WAL.
	var st *store.Store
	retryDelay := time.Duration(cfg.ErrorHandling.RetryDelaySeconds) * time.Second
	err = resilience.Retry(ctx, cfg.ErrorHandling.RetryAttempts, retryDelay, func() error {
		opened, openErr := store.Open(ctx, cfg.Database.Path, log)
		if openErr != nil {
			return openErr
		}
		st = opened
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	rec, collector, err := buildReconciler(st, cfg, log)
	if err != nil {
		return err
	}

	result, err := rec.Execute(ctx, mode, execMode, systemFiles(cfg))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Reconciliation cancelled by user")
			return nil
		}
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	// Write reports. A dry run only prints the summary; nothing lands on disk.
	if execMode != store.ExecutionModeDryRun {
		rep := reporter.New(cfg.Output.Directory, log)
		if _, err := rep.WriteDiscrepancyCSV(result); err != nil {
			log.Errorw("Failed to write discrepancy report", "error", err)
		}
		if _, err := rep.WriteRunJSON(result); err != nil {
			log.Errorw("Failed to write run report", "error", err)
		}
		if _, err := rep.WriteErrorCSV(result.RunID, collector.Records()); err != nil {
			log.Errorw("Failed to write error report", "error", err)
		}
	} else {
		log.Infow("Dry run, skipping report files", "run_id", result.RunID)
	}

	fmt.Println()
	fmt.Print(reporter.Summary(result))
	return nil
}

// buildReconciler wires the pipeline components together.
func buildReconciler(st *store.Store, cfg *config.Config, log *logger.Logger) (*reconciler.Reconciler, *resilience.Collector, error) {
	norm := buildNormalizer(cfg)
	collector := resilience.NewCollector(cfg.ErrorHandling)

	cmp, err := comparator.New(norm, collector, log, cfg.Processing)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create comparator: %w", err)
	}
	prov, err := provisioner.New(st, cfg.Provisioning, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provisioner: %w", err)
	}
	rec, err := reconciler.New(st, norm, cmp, prov, collector, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create reconciler: %w", err)
	}
	return rec, collector, nil
}

// applySimulationFlags folds generator flags into the simulation config.
func applySimulationFlags(cfg *config.Config) {
	if reconcileScenario != "" {
		cfg.Simulation.Scenario = reconcileScenario
	}
	if reconcileKeys > 0 {
		cfg.Simulation.KeysPerSystem = reconcileKeys
	}
	if reconcileSeed != 0 {
		cfg.Simulation.Seed = reconcileSeed
	}
}

// systemFiles resolves the per-system input paths, honoring --input-dir.
func systemFiles(cfg *config.Config) map[string]string {
	files := cfg.SystemFiles()
	if reconcileInputDir != "" {
		for system := range files {
			files[system] = filepath.Join(reconcileInputDir, system+".csv")
		}
	}
	return files
}

// lockPath derives the advisory lock file path from the database path.
func lockPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Database.Path), "keysync.lock")
}

// generateInputData writes synthetic input files for every configured system.
func generateInputData(cfg *config.Config, log *logger.Logger) error {
	dir := reconcileInputDir
	if dir == "" {
		dir = filepath.Dir(cfg.SystemFiles()[config.AuthoritySystem])
	}

	gen := mockdata.New(cfg.Simulation.Seed, log)
	stats, err := gen.GenerateAndWrite(cfg.Simulation.Scenario, cfg.Simulation.KeysPerSystem,
		cfg.Simulation.DuplicateRate, cfg.Simulation.CorruptionRate, dir)
	if err != nil {
		return fmt.Errorf("failed to generate input data: %w", err)
	}
	log.Infow("Generated synthetic input data",
		"scenario", stats.Scenario,
		"seed", stats.Seed,
		"directory", dir,
	)
	return nil
}
