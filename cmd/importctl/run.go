package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	app "github.com/mohammadpnp/tabular-import/internal/application/importing"
	"github.com/mohammadpnp/tabular-import/internal/bootstrap"
	"github.com/mohammadpnp/tabular-import/internal/config"
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
	infrafile "github.com/mohammadpnp/tabular-import/internal/infrastructure/file"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/repository"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/session"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/tabular"
)

var runOpts struct {
	entity         string
	operator       string
	maps           []string
	defaults       []string
	matches        []string
	updateExisting bool
}

var runCmd = &cobra.Command{
	Use:   "run --entity <type> [flags] <file>",
	Short: "Import a file into the database",
	Long: `run maps the file's columns automatically, applies any --map
overrides and executes the import. Rows that fail are listed in the
summary; the rest are written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runImport(ctx, args[0])
	},
}

func runImport(ctx context.Context, path string) error {
	overrides, err := parseAssignments(runOpts.maps)
	if err != nil {
		return errors.Wrap(err, "--map")
	}
	defaults, err := parseAssignments(runOpts.defaults)
	if err != nil {
		return errors.Wrap(err, "--default")
	}
	matches, err := parseMatches(runOpts.matches)
	if err != nil {
		return errors.Wrap(err, "--match")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve file path")
	}

	dbs, err := bootstrap.OpenDatabases(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbs.Close()

	stores, err := repository.NewEntityStores(dbs.Pool, registry)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg)
	pipeline, err := app.NewPipeline(registry, stores, session.NewMemoryStore(cfg.Import.SessionTTL), logger, cfg.Pipeline(),
		app.WithRunRepository(repository.NewImportRunRepository(dbs.Gorm)))
	if err != nil {
		return err
	}

	upload := app.NewUploadImport(pipeline, tabular.NewParser(cfg.Import.MaxRows), infrafile.NewLocalSource(filepath.Dir(abs)))
	uploaded, err := upload.Execute(ctx, app.UploadImportInput{
		Operator:   runOpts.operator,
		EntityType: domain.EntityType(runOpts.entity),
		SourcePath: filepath.Base(abs),
	})
	if err != nil {
		return err
	}

	mapped, err := app.NewSaveImportMapping(pipeline).Execute(ctx, app.SaveImportMappingInput{
		Operator: runOpts.operator,
		ImportID: uploaded.ImportID,
		Mappings: mergeMappings(uploaded.SuggestedMappings, overrides),
	})
	if err != nil {
		var mappingErr *domain.InvalidMappingError
		if errors.As(err, &mappingErr) {
			for _, problem := range mappingErr.Problems {
				ui.Warning("%s", problem)
			}
		}
		return err
	}
	for _, pair := range mapped.Mappings {
		ui.Success("%s <- %s", cyan(pair.TargetField), pair.SourceColumn)
	}

	summary, err := app.NewExecuteImport(pipeline).Execute(ctx, app.ExecuteImportInput{
		Operator:       runOpts.operator,
		ImportID:       uploaded.ImportID,
		UpdateExisting: runOpts.updateExisting,
		Defaults:       defaults,
		ManualMatches:  matches,
	})
	if err != nil && !errors.Is(err, app.ErrExecutionCancelled) {
		return err
	}
	printSummary(summary)
	return err
}

func printSummary(s domain.Summary) {
	table := ui.Table([]string{"Total", "Processed", "Created", "Updated", "Skipped", "Failed"})
	failed := strconv.Itoa(s.FailedCount)
	if s.FailedCount > 0 {
		failed = red(failed)
	}
	_ = table.Append([]string{
		strconv.Itoa(s.TotalRows),
		strconv.Itoa(s.ProcessedRows),
		green(strconv.Itoa(s.CreatedCount)),
		cyan(strconv.Itoa(s.UpdatedCount)),
		strconv.Itoa(s.SkippedCount),
		failed,
	})
	_ = table.Render()

	if len(s.Errors) > 0 {
		errs := ui.Table([]string{"Row", "Error"})
		for _, rowErr := range s.Errors {
			_ = errs.Append([]string{strconv.Itoa(rowErr.RowNumber), rowErr.Message})
		}
		_ = errs.Render()
	}
	if s.Note != "" {
		ui.Warning("%s", s.Note)
	}
	ui.Success("import %s finished", s.ImportID)
}

func init() {
	flags := runCmd.Flags()
	flags.StringVarP(&runOpts.entity, "entity", "e", "", "Entity type to import into")
	flags.StringVar(&runOpts.operator, "operator", "importctl", "Operator id recorded on the session")
	flags.StringArrayVar(&runOpts.maps, "map", nil, "Map a field to a column, field=column (empty column unmaps)")
	flags.StringArrayVar(&runOpts.defaults, "default", nil, "Value for empty cells, field=value")
	flags.StringArrayVar(&runOpts.matches, "match", nil, "Resolve a reference by hand, field:raw=id")
	flags.BoolVar(&runOpts.updateExisting, "update-existing", false, "Update records that already exist instead of skipping them")
	_ = runCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(runCmd)
}
