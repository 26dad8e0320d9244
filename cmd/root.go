package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "redmine-desktop",
	Short: "Redmine client with a local issue cache",
	Long: `A Redmine client that keeps a local cache of the issues you work on.

This tool allows you to:
- Browse the issues of your active versions grouped by status or assignee
- Follow watched issues and the issues assigned to you across projects
- Create, edit and comment on issues with write-through to the server
- Manage versions, watchers and assisting watchers
- Keep the cache fresh with a background refresh loop`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Global flags
var (
	configPath   string
	verboseLog   bool
	outputFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is $"+"REDMINE_DESKTOP_CONFIG or the user config dir)")
	rootCmd.PersistentFlags().BoolVar(&verboseLog, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, csv, quiet)")
}

func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
