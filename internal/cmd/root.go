// Package cmd wires the bite CLI: the root command, the interactive run
// command, and the small inspection subcommands.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagLogFile  string
	flagLogLevel string
)

// NewRootCmd creates the root cobra command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bite",
		Short: "Integrated shell and terminal emulator",
		Long: "bite unifies command composition, output presentation, and " +
			"TUI hosting in a single terminal surface. Running it with no " +
			"subcommand starts an interactive session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Activity log path (default: disabled)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newRunCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}
