package main

import (
	"fmt"

	"github.com/ashureev/quizchat/internal/telemetry"
	"github.com/spf13/cobra"
)

// Version information set by ldflags during build.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quizchat %s (%s)\n", Version, GitCommit)
	},
}

func init() {
	telemetry.Version = Version
	rootCmd.AddCommand(versionCmd)
}
