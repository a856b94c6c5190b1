package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "0.1.0"
	commit  = "unknown"
)

// Version returns the version line printed by the version command.
func Version() string {
	return fmt.Sprintf("pickup-server v%s (%s, %s)", version, commit, runtime.Version())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the pickup server",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version())
	},
}
