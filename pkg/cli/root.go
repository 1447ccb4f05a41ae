// Package cli provides the pulsed CLI commands.
package cli

import (
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pulsed",
	Short: "Run simulated HTTP services from declarative definitions",
	Long: `pulsed is the runtime engine of the Pulse API simulation platform.

Given service definitions (endpoints, fixtures, response rules), it serves
each one on its own port, selecting and rendering responses exactly as the
definition describes. Every running service exposes a control API under
/__pulsed/ for request-log inspection and scenario toggles.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	rootCmd.Version = Version + " (" + Commit + ")"
	return rootCmd.Execute()
}
