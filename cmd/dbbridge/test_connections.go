package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dbbridge/dbbridge"
)

var testConnectionsConfigPath string

var testConnectionsCmd = &cobra.Command{
	Use:   "test-connections",
	Short: "Verify that both the source and target databases are reachable",
	RunE:  runTestConnections,
}

func init() {
	rootCmd.AddCommand(testConnectionsCmd)
	testConnectionsCmd.Flags().StringVar(&testConnectionsConfigPath, "config", "", "Path to dbbridge.toml (default: search upward from cwd)")
}

func runTestConnections(cmd *cobra.Command, args []string) error {
	prevConfigPath := migrateConfigPath
	migrateConfigPath = testConnectionsConfigPath
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

	status, err := migrator.TestConnections(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(exitConnError)
	}

	report := func(label string, ok bool) {
		if ok {
			_, _ = color.New(color.FgGreen).Fprintf(os.Stderr, "  %s: ok\n", label)
		} else {
			_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "  %s: unreachable\n", label)
		}
	}
	report("source", status.Source)
	report("target", status.Target)

	if !status.Source || !status.Target {
		if status.Err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", status.Err)
		}
		os.Exit(exitConnError)
	}
	return nil
}
