package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dbbridge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildVersion())
	},
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	version := info.Main.Version
	if version == "(devel)" {
		version = "dev"
	}

	var commit string
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > 7 {
				commit = commit[:7]
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if commit == "" {
		return version
	}
	if modified {
		return fmt.Sprintf("%s (%s, modified)", version, commit)
	}
	return fmt.Sprintf("%s (%s)", version, commit)
}
