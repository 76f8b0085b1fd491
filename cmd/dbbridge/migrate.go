package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dbbridge/dbbridge"
	"github.com/dbbridge/dbbridge/internal/config"
	"github.com/dbbridge/dbbridge/internal/orchestrator"
	"github.com/dbbridge/dbbridge/internal/typemap"
)

var (
	migrateConfigPath string
	migrateDotenvPath string
	migrateQuiet      bool
	migrateDryRun     bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run a migration using a dbbridge.toml configuration file",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrateConfigPath, "config", "", "Path to dbbridge.toml (default: search upward from cwd)")
	migrateCmd.Flags().StringVar(&migrateDotenvPath, "env-file", ".env", "Path to a .env file to seed credential placeholders from")
	migrateCmd.Flags().BoolVarP(&migrateQuiet, "quiet", "q", false, "Suppress per-table progress output")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "List the tables that would be migrated and exit")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		_, _ = color.New(color.FgYellow).Fprintln(os.Stderr, "received interrupt, cancelling migration...")
		cancel()
	}()

	doc, err := loadDocument()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(exitConfigError)
	}

	migrator, err := dbbridge.NewMigrator(doc.Source.ConnectionConfig(), doc.Target.ConnectionConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(exitConfigError)
	}

	status, err := migrator.TestConnections(ctx)
	if err != nil || !status.Source || !status.Target {
		fmt.Fprintf(os.Stderr, "connection check failed (source ok=%v target ok=%v): %v\n", status.Source, status.Target, status.Err)
		os.Exit(exitConnError)
	}

	migrator.SetSelection(doc.Options.Tables, doc.Options.ExcludeTables)
	migrator.SetOptions(dbbridge.MigrationOptions{
		BatchSize:          orDefault(doc.Options.BatchSize, 1000),
		Workers:            orDefault(doc.Options.Workers, 4),
		DropTarget:         config.BoolOr(doc.Options.DropTarget, true),
		MigrateIndexes:     config.BoolOr(doc.Options.MigrateIndexes, true),
		MigrateForeignKeys: config.BoolOr(doc.Options.MigrateForeignKeys, true),
		StopOnError:        doc.Options.StopOnError,
		CommitEvery:        orDefault(doc.Options.CommitEvery, 1),
		WhereClauses:       doc.Options.WhereClauses,
		Overrides:          overridesFrom(doc.TypeMappings),
	})

	if migrateDryRun {
		tables, err := migrator.ListTables(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(exitConnError)
		}
		for _, t := range tables {
			fmt.Fprintln(os.Stdout, t.Name)
		}
		return nil
	}

	if !migrateQuiet {
		sink := orchestrator.StderrProgress(os.Stderr)
		migrator.SetProgressCallback(func(ev dbbridge.Event) { sink(ev) })
	}

	result, err := migrator.Migrate(ctx)
	_ = migrator.Close()

	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "migration cancelled")
		os.Exit(exitCancelled)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(exitPartial)
	}
	if result.TablesFailed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d tables failed\n", result.TablesFailed, len(result.Tables))
		os.Exit(exitPartial)
	}

	_, _ = color.New(color.FgGreen).Fprintf(os.Stderr, "migrated %d table(s), %d row(s) in %.1fs\n", result.TablesOK, result.TotalRows, result.Duration)
	return nil
}

func loadDocument() (*config.Document, error) {
	path := migrateConfigPath
	if path == "" {
		found, err := config.FindConfigPath("dbbridge.toml")
		if err != nil {
			return nil, err
		}
		path = found
	}
	if err := config.LoadDotenv(migrateDotenvPath); err != nil {
		return nil, err
	}
	return config.Load(path)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func overridesFrom(m config.TypeMappingsSection) typemap.OverrideTable {
	if len(m) == 0 {
		return nil
	}
	out := make(typemap.OverrideTable, len(m))
	for k, v := range m {
		key := typemap.OverrideKey{SourceKind: strings.ToLower(strings.TrimSpace(k))}
		if i := strings.Index(key.SourceKind, "("); i > 0 {
			// "tinyint(1)" keys match that exact source type token only.
			key.SourceModifier = key.SourceKind
			key.SourceKind = strings.TrimSpace(key.SourceKind[:i])
		}
		out[key] = v
	}
	return out
}
