// Ecatcheck-sim serves a simulated EtherCAT slave for testing ecatcheck
// without hardware.
//
// The simulated device answers CoE mailbox reads and writes and
// application-layer state transitions over raw TCP and WebSocket. Its
// identity and object dictionary come from an ESI profile or from flags.
//
// Usage:
//
//	ecatcheck-sim serve [flags]
//
// See 'ecatcheck-sim serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ecatcheck/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ecatcheck-sim",
	Short: "Simulated EtherCAT device",
	Long: `A simulated EtherCAT slave reachable the same way as a device gateway.

Point ecatcheck at it with --device tcp://host:34980 or
--device ws://host:8080/ to exercise every check without hardware.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ecatcheck-sim %s\n", version.Full())
	},
}
