package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbbridge/dbbridge"
)

var tablesConfigPath string

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the source tables a migration would pick up, with column/index/FK counts",
	RunE:  runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.Flags().StringVar(&tablesConfigPath, "config", "", "Path to dbbridge.toml (default: search upward from cwd)")
}

func runTables(cmd *cobra.Command, args []string) error {
	prevConfigPath := migrateConfigPath
	migrateConfigPath = tablesConfigPath
	defer func() { migrateConfigPath = prevConfigPath }()

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
	defer migrator.Close()

	migrator.SetSelection(doc.Options.Tables, doc.Options.ExcludeTables)

	ctx := context.Background()
	tables, err := migrator.ListTables(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(exitConnError)
	}

	for _, t := range tables {
		fmt.Fprintf(os.Stdout, "%-32s columns=%-3d indexes=%-3d foreign_keys=%d\n",
			t.Name, len(t.Columns), len(t.Indexes), len(t.ForeignKeys))
	}
	return nil
}
