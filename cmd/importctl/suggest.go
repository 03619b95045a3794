package main

import (
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	app "github.com/mohammadpnp/tabular-import/internal/application/importing"
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/tabular"
)

var suggestEntity string

var suggestCmd = &cobra.Command{
	Use:   "suggest --entity <type> <file>",
	Short: "Show the suggested column mapping for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := registry.Schema(domain.EntityType(suggestEntity))
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "open file")
		}
		defer f.Close()

		table, err := tabular.NewParser(cfg.Import.MaxRows).Parse(cmd.Context(), filepath.Base(args[0]), "", f)
		if err != nil {
			return err
		}

		suggestions := app.SuggestMapping(schema, table.Columns, cfg.Import.SuggestThreshold)
		out := ui.Table([]string{"Field", "Column", "Score"})
		mapped := make(map[string]bool, len(suggestions))
		for _, s := range suggestions {
			mapped[s.TargetField] = true
			_ = out.Append([]string{cyan(s.TargetField), s.SourceColumn, scoreColor(s.Score)})
		}
		if err := out.Render(); err != nil {
			return err
		}

		for _, key := range schema.RequiredKeys() {
			if !mapped[key] {
				ui.Warning("required field %s has no suggested column", key)
			}
		}
		ui.Success("%d columns, %d rows", len(table.Columns), len(table.Rows))
		return nil
	},
}

func init() {
	suggestCmd.Flags().StringVarP(&suggestEntity, "entity", "e", "", "Entity type to import into")
	_ = suggestCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(suggestCmd)
}
