// Package cmd implements the cyclebuf command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "cyclebuf",
	Short: "fixed-size cycle buffers on SQLite records",
	Long: `cyclebuf - keep "the last N items" on a record without cleanup jobs

Records carry fixed-capacity cycle buffers stored as ordinary columns.
Appending a value overwrites the oldest entry once a buffer is full, either
staged in memory and flushed, or as one atomic conditional update safe
against concurrent writers.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.cyclebuf/config.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(buffersCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(versionCmd)
}
