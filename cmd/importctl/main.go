package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammadpnp/tabular-import/internal/config"
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
	"github.com/mohammadpnp/tabular-import/internal/domain/targets"
)

var (
	cfg      config.Config
	registry *domain.Registry
	ui       = newUI()
)

var rootCmd = &cobra.Command{
	Use:   "importctl",
	Short: "Import CSV/XLSX files into CRM and HR records",
	Long: `importctl runs the tabular import pipeline from a terminal.
It lists importable fields, suggests column mappings for a file and
executes an import against the configured Postgres database.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		registry, err = targets.NewRegistry()
		return err
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
