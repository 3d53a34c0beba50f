package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ecatcheck/internal/channel"
	"github.com/muurk/ecatcheck/internal/config"
	"github.com/muurk/ecatcheck/internal/discovery"
	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/ui"
)

// scan and config flags
var (
	scanTimeout int
	scanSave    bool
	scanWait    string
	gatewayNode int
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configAddGatewayCmd)
	configCmd.AddCommand(configRemoveGatewayCmd)

	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default: discover_timeout preference)")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Save every discovered gateway under its instance name")
	scanCmd.Flags().StringVar(&scanWait, "wait", "", "Stop as soon as the gateway with this instance name is found")

	configAddGatewayCmd.Flags().IntVar(&gatewayNode, "node", 0, "Mailbox node id for this gateway")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover device gateways on the network",
	Long: `Discover EtherCAT device gateways using mDNS/DNS-SD.

Gateways advertise the _ecat-gw._tcp service. Each one found is listed with
the channel URL to pass to --device.`,
	Example: `  # Scan for 10 seconds (default)
  ecatcheck scan

  # Quick 3-second scan, saving what is found
  ecatcheck scan --timeout 3 --save

  # Wait for one gateway to come online and save it
  ecatcheck scan --wait bench-gw --save`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := printer(cmd)

	timeout := time.Duration(scanTimeout) * time.Second
	if scanTimeout <= 0 {
		timeout = time.Duration(registry.Prefs().DiscoverTimeout) * time.Second
	}
	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
	}

	out.PrintPleaseWait("Scanning for gateways", fmt.Sprintf("up to %s", timeout))

	var gateways []*discovery.Gateway
	if scanWait != "" {
		scanner := discovery.NewScanner()
		scanner.Timeout = timeout
		gw, err := scanner.WaitForGateway(cmd.Context(), scanWait)
		if err != nil {
			return err
		}
		gateways = append(gateways, gw)
	} else {
		var err error
		gateways, err = discovery.Scan(cmd.Context(), timeout)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
	}

	if len(gateways) == 0 {
		out.PrintWarning("No gateways found", nil)
		out.PrintLines(
			"Troubleshooting:",
			"  - Ensure the gateway is powered on and on the same network",
			"  - Check that multicast traffic is not blocked by a firewall",
			"  - Try increasing --timeout for slower networks",
			"  - Use --device with the gateway URL if discovery fails",
		)
		return nil
	}

	out.Println(fmt.Sprintf("Found %d gateway(s):", len(gateways)))
	out.Newline()
	for i, gw := range gateways {
		out.PrintLines(gatewayLines(i+1, gw)...)
		out.Newline()
		if scanSave {
			if _, err := registry.AddGateway(gw.Instance, gw.URL(), gw.Node()); err != nil {
				return err
			}
		}
	}

	if scanSave {
		if err := saveRegistry(); err != nil {
			return fmt.Errorf("failed to save gateways: %w", err)
		}
		out.Println(fmt.Sprintf("Saved %d gateway(s). Use 'ecatcheck identity -d <name>' to connect.", len(gateways)))
		return nil
	}
	out.Println("Use 'ecatcheck identity --device <url>' to read a device identity")
	return nil
}

func gatewayLines(n int, gw *discovery.Gateway) []string {
	lines := []string{
		fmt.Sprintf("%d. %s", n, ui.HeaderParamValueStyle.Render(gw.Instance)),
		fmt.Sprintf("   URL:      %s", gw.URL()),
		fmt.Sprintf("   Host:     %s", gw.Hostname),
	}
	if node := gw.Node(); node != 0 {
		lines = append(lines, fmt.Sprintf("   Node:     %d", node))
	}
	if v := gw.GetMetadata(discovery.TxtVendor); v != "" {
		lines = append(lines, fmt.Sprintf("   Device:   vendor %s, product %s", v, gw.GetMetadata(discovery.TxtProduct)))
	}
	return lines
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change saved gateways and preferences",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := printer(cmd)

	path := configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	prefs := registry.Prefs()
	out.PrintHeader("Configuration", "ecatcheck config show", map[string]string{"File": path})
	out.Newline()
	out.PrintLines(
		ui.TroubleshootingTitleStyle.Render("Preferences"),
		fmt.Sprintf("  Timeout:          %s", prefs.Timeout()),
		fmt.Sprintf("  Default node:     %d", prefs.DefaultNode),
		fmt.Sprintf("  Log level:        %s", valueOr(prefs.LogLevel, "(silent)")),
		fmt.Sprintf("  Discover timeout: %ds", prefs.DiscoverTimeout),
		fmt.Sprintf("  Report format:    %s", valueOr(prefs.ReportFormat, "json")),
	)
	out.Newline()

	out.Println(ui.TroubleshootingTitleStyle.Render("Gateways"))
	names := registry.GatewayNames()
	if len(names) == 0 {
		out.Println("  (none saved; use 'ecatcheck config add-gateway' or 'ecatcheck scan --save')")
		return nil
	}
	for _, name := range names {
		out.PrintLines(savedGatewayLines(name, registry.GetGateway(name))...)
	}
	return nil
}

func savedGatewayLines(name string, gw *config.Gateway) []string {
	parts := []string{gw.URL}
	if gw.Node != 0 {
		parts = append(parts, "node "+strconv.Itoa(int(gw.Node)))
	}
	if gw.VendorID != 0 || gw.ProductCode != 0 {
		parts = append(parts, fmt.Sprintf("device %s/%s",
			esi.FormatHex(uint64(gw.VendorID), 4), esi.FormatHex(uint64(gw.ProductCode), 8)))
	}
	if !gw.LastSeen.IsZero() {
		parts = append(parts, "seen "+gw.LastSeen.Local().Format(time.DateTime))
	}
	return []string{fmt.Sprintf("  %-16s %s", name, strings.Join(parts, ", "))}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

var configAddGatewayCmd = &cobra.Command{
	Use:   "add-gateway <name> <url>",
	Short: "Save a gateway under a name",
	Long: `Save a gateway URL under a short name. The name can then be passed to
--device in place of the URL.`,
	Example: `  ecatcheck config add-gateway bench tcp://192.168.1.50:34980
  ecatcheck config add-gateway line2 ws://gw-02.local:8080/ecat --node 3`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigAddGateway,
}

func runConfigAddGateway(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if gatewayNode < 0 || gatewayNode > 0xFF {
		return fmt.Errorf("--node must be between 0 and 255 (got %d)", gatewayNode)
	}
	if _, err := channel.New(args[1]); err != nil {
		return err
	}
	gw, err := registry.AddGateway(args[0], args[1], uint8(gatewayNode))
	if err != nil {
		return err
	}
	if err := saveRegistry(); err != nil {
		return err
	}

	printer(cmd).PrintSuccess("Gateway saved", map[string]string{
		"Name": args[0],
		"URL":  gw.URL,
		"Node": strconv.Itoa(int(gw.Node)),
	})
	return nil
}

var configRemoveGatewayCmd = &cobra.Command{
	Use:   "remove-gateway <name>",
	Short: "Forget a saved gateway",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if !registry.RemoveGateway(args[0]) {
			return fmt.Errorf("no gateway named %q", args[0])
		}
		return saveRegistry()
	},
}
