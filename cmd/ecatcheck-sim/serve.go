package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/lifecycle"
	"github.com/muurk/ecatcheck/internal/logging"
	"github.com/muurk/ecatcheck/internal/simulator"
)

// Serve command flags
var (
	profilePath   string
	vendorID      string
	productCode   string
	tcpAddr       string
	wsAddr        string
	wsPath        string
	certPath      string
	keyPath       string
	selfSigned    []string
	certOut       string
	advertiseName string
	node          int
	rejectStates  []string
	logLevel      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a simulated device",
	Long: `Start serving a simulated device until interrupted.

The device identity and object dictionary are taken from --profile when
given, otherwise from --vendor and --product. Raw TCP and WebSocket can be
served at the same time; either can be disabled by passing an empty
address.

For wss:// either provide a certificate with --tls-cert and --tls-key, or
generate a self-signed one with --tls-self-signed. Use --cert-out to save
the generated certificate so clients can trust it.`,
	Example: `  # Simulate the device described by a profile
  ecatcheck-sim serve --profile EL7201.xml

  # Identity only, WebSocket on a custom path, announced over mDNS
  ecatcheck-sim serve --vendor 0x0002 --product 0x1C213052 --ws-path /ecat --advertise bench-sim

  # Secure WebSocket with a generated certificate
  ecatcheck-sim serve --profile EL7201.xml --tls-self-signed localhost --cert-out sim.pem

  # A device that refuses to enter Operational
  ecatcheck-sim serve --profile EL7201.xml --reject op --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&profilePath, "profile", "", "ESI file describing the device")
	serveCmd.Flags().StringVar(&vendorID, "vendor", "0", "Vendor ID when no profile is given")
	serveCmd.Flags().StringVar(&productCode, "product", "0", "Product code when no profile is given")
	serveCmd.Flags().StringVar(&tcpAddr, "tcp", ":34980", "Raw TCP listen address (empty = disabled)")
	serveCmd.Flags().StringVar(&wsAddr, "ws", ":8080", "WebSocket listen address (empty = disabled)")
	serveCmd.Flags().StringVar(&wsPath, "ws-path", simulator.DefaultWSPath, "WebSocket endpoint path")
	serveCmd.Flags().StringVar(&certPath, "tls-cert", "", "TLS certificate file for wss://")
	serveCmd.Flags().StringVar(&keyPath, "tls-key", "", "TLS private key file for wss://")
	serveCmd.Flags().StringSliceVar(&selfSigned, "tls-self-signed", nil, "Serve wss:// with a generated certificate for these hosts")
	serveCmd.Flags().StringVar(&certOut, "cert-out", "", "Write the generated certificate (PEM) to this file")
	serveCmd.Flags().StringVar(&advertiseName, "advertise", "", "Announce the simulator over mDNS under this instance name")
	serveCmd.Flags().IntVar(&node, "node", -1, "Only answer mailbox requests for this node id (default: any)")
	serveCmd.Flags().StringSliceVar(&rejectStates, "reject", nil, "Refuse transitions into these states (init, preop, safeop, op, boot)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	initLogging := func() error { return logging.Initialize(logLevel) }
	if !cmd.Flags().Changed("log-level") && os.Getenv(logging.LogLevelEnvVar) != "" {
		initLogging = logging.InitializeFromEnv
	}
	if err := initLogging(); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	defer logging.Sync()

	dev, err := buildDevice()
	if err != nil {
		return err
	}

	tlsConfig, err := buildTLSConfig()
	if err != nil {
		return err
	}

	config := &simulator.Config{
		TCPAddr:   tcpAddr,
		WSAddr:    wsAddr,
		WSPath:    wsPath,
		TLSConfig: tlsConfig,
		Advertise: advertiseName,
	}
	srv := simulator.New(config, dev)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printListening(cmd)
	return srv.ListenAndServe(ctx)
}

// buildDevice creates the simulated device from the profile or identity
// flags and applies node and rejection settings.
func buildDevice() (*simulator.Device, error) {
	var dev *simulator.Device
	if profilePath != "" {
		p, err := esi.ParseFile(profilePath)
		if err != nil {
			return nil, err
		}
		dev, err = simulator.FromProfile(p)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", profilePath, err)
		}
	} else {
		v, err := esi.ParseUint(vendorID, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid --vendor: %w", err)
		}
		pc, err := esi.ParseUint(productCode, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid --product: %w", err)
		}
		dev = simulator.NewDevice(uint16(v), uint32(pc), 0)
	}

	if node >= 0 {
		if node > 0xFF {
			return nil, fmt.Errorf("--node must be between 0 and 255 (got %d)", node)
		}
		dev.SetNode(uint8(node))
	}

	for _, text := range rejectStates {
		s, err := lifecycle.ParseState(text)
		if err != nil {
			return nil, fmt.Errorf("invalid --reject: %w", err)
		}
		dev.RejectTransitionsTo(s)
	}
	return dev, nil
}

func buildTLSConfig() (*tls.Config, error) {
	if (certPath == "") != (keyPath == "") {
		return nil, fmt.Errorf("both --tls-cert and --tls-key must be provided together")
	}
	if certPath != "" && len(selfSigned) > 0 {
		return nil, fmt.Errorf("--tls-self-signed cannot be combined with --tls-cert")
	}

	if certPath != "" {
		return simulator.NewTLSConfig(certPath, keyPath)
	}
	if len(selfSigned) == 0 {
		if certOut != "" {
			return nil, fmt.Errorf("--cert-out requires --tls-self-signed")
		}
		return nil, nil
	}

	cert, err := simulator.GenerateSelfSigned(selfSigned...)
	if err != nil {
		return nil, err
	}
	if certOut != "" {
		if err := os.WriteFile(certOut, cert.CertPEM, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write certificate: %w", err)
		}
		logging.Info("Certificate written", zap.String("path", certOut))
	}
	return simulator.NewTLSConfigFromMemory(cert.CertPEM, cert.KeyPEM)
}

func printListening(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Simulated device ready:")
	if tcpAddr != "" {
		fmt.Fprintf(out, "  tcp  %s\n", tcpAddr)
	}
	if wsAddr != "" {
		scheme := "ws"
		if len(selfSigned) > 0 || certPath != "" {
			scheme = "wss"
		}
		fmt.Fprintf(out, "  %-4s %s%s\n", scheme, wsAddr, wsPath)
	}
	if advertiseName != "" {
		fmt.Fprintf(out, "  mDNS %s\n", advertiseName)
	}
	if len(rejectStates) > 0 {
		fmt.Fprintf(out, "  rejecting transitions into %s\n", strings.Join(rejectStates, ", "))
	}
}
