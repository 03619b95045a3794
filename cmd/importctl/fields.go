package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields [entity]",
	Short: "List importable fields of an entity type",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			table := ui.Table([]string{"Entity", "Natural key", "Fields"})
			for _, entityType := range registry.EntityTypes() {
				schema, err := registry.Schema(entityType)
				if err != nil {
					return err
				}
				_ = table.Append([]string{cyan(string(entityType)), strings.Join(schema.NaturalKey, "+"), strconv.Itoa(len(schema.Fields))})
			}
			return table.Render()
		}

		schema, err := registry.Schema(domain.EntityType(args[0]))
		if err != nil {
			return err
		}
		table := ui.Table([]string{"Key", "Label", "Type", "Required", "Default", "Notes"})
		for _, field := range schema.Fields {
			required := ""
			if field.Required {
				required = yellow("yes")
			}
			_ = table.Append([]string{cyan(field.Key), field.Label, string(field.Type), required, field.Default, fieldNotes(field)})
		}
		return table.Render()
	},
}

func fieldNotes(field domain.FieldDefinition) string {
	switch {
	case field.IsReference():
		return "-> " + string(field.References)
	case len(field.Options) > 0:
		return strings.Join(field.Options, " | ")
	default:
		return field.Description
	}
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}
