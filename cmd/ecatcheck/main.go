// Ecatcheck checks EtherCAT slave devices against their ESI descriptions.
//
// It parses and validates ESI profiles, compares a profile with the identity
// a device reports, walks the device through its application-layer states,
// probes the CoE object dictionary and edits SII configuration images.
// Devices are reached through a gateway over TCP, WebSocket or a serial
// line.
//
// Usage:
//
//	ecatcheck [command] [flags]
//
// See 'ecatcheck --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ecatcheck/internal/config"
	"github.com/muurk/ecatcheck/internal/logging"
	"github.com/muurk/ecatcheck/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
	reportPath string
	verbose    bool
)

// registry is loaded once per invocation by loadRegistry
var registry *config.Registry

var rootCmd = &cobra.Command{
	Use:   "ecatcheck",
	Short: "EtherCAT device profile and conformance checker",
	Long: `A utility for checking EtherCAT slave devices against their ESI
(EtherCAT Slave Information) descriptions.

Profiles can be parsed, checked and converted offline. With a device
gateway reachable over TCP, WebSocket or a serial line, ecatcheck reads the
device identity, walks the application-layer state machine, probes the CoE
object dictionary and reads or writes single objects.`,
	Version:           version.Version,
	PersistentPreRunE: setup,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: $ECATCHECK_CONFIG or the user config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	rootCmd.PersistentFlags().StringVar(&reportPath, "report", "", "Write a run report to this file (.json, .yaml or .cbor)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show the frames exchanged with the device")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ecatcheck %s\n", version.Full())
	},
}

// setup initialises logging and loads the configuration registry before
// any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	registry = reg

	level := logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" {
		level = registry.Prefs().LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

func loadRegistry() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return reg, nil
}

func saveRegistry() error {
	if configPath != "" {
		return registry.SaveFile(configPath)
	}
	return registry.Save()
}
