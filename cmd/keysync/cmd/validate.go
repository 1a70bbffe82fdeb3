package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and input files",
	Long: `Validate checks the configuration file and verifies that the
configured source files are readable.

Checks performed:
  - Configuration syntax and required fields
  - Authority system presence
  - Normalization, provisioning and processing settings
  - Source file existence (per the configured missing-file policy)

Example:
  keysync validate --config keysync.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cmd.Printf("=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", GetConfigFile())
	cmd.Printf("Sources: %d\n", len(cfg.Sources))
	cmd.Printf("Strategy: %s\n", cfg.Provisioning.Strategy)
	cmd.Printf("Mode: %s\n\n", cfg.Processing.Mode)

	files := cfg.SystemFiles()
	systems := make([]string, 0, len(files))
	for system := range files {
		systems = append(systems, system)
	}
	sort.Strings(systems)

	missing := 0
	for _, system := range systems {
		path := files[system]
		if _, err := os.Stat(path); err != nil {
			cmd.Printf("  %s: MISSING  %s\n", system, path)
			missing++
			continue
		}
		cmd.Printf("  %s: ok       %s\n", system, path)
	}

	if missing > 0 && cfg.ErrorHandling.OnMissingFile == "fail" {
		return fmt.Errorf("%d source file(s) missing and on_missing_file is fail", missing)
	}

	cmd.Printf("\n=== Validation Complete ===\n")
	if missing > 0 {
		cmd.Printf("%d source file(s) missing; they will be skipped at run time\n", missing)
	}
	return nil
}
