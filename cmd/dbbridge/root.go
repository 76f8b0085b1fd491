package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dbbridge",
	Short: "dbbridge migrates a MySQL database's schema and rows into PostgreSQL.",
	Long: `dbbridge introspects a MySQL source, translates its schema into
PostgreSQL DDL, and copies row data in dependency order, installing
deferred foreign keys and resyncing identity sequences once every table
has loaded.`,
}

// exit codes per the documented CLI contract: 0 success, 1 configuration
// error, 2 connection error, 3 partial migration (some tables failed), 4
// cancelled.
const (
	exitOK          = 0
	exitConfigError = 1
	exitConnError   = 2
	exitPartial     = 3
	exitCancelled   = 4
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitConfigError)
	}
}
