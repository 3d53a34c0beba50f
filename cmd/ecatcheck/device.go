package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/channel"
	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/logging"
	"github.com/muurk/ecatcheck/internal/mailbox"
	"github.com/muurk/ecatcheck/internal/report"
	"github.com/muurk/ecatcheck/internal/ui"
	"github.com/muurk/ecatcheck/internal/version"
)

// Device connection flags, shared by every command that talks to a device
var (
	deviceArg     string
	nodeID        int
	deviceTimeout time.Duration
)

// addDeviceFlags registers the connection flags on cmd.
func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&deviceArg, "device", "d", "", "Device URL (tcp://, ws://, wss://, serial://) or saved gateway name")
	cmd.Flags().IntVar(&nodeID, "node", -1, "Mailbox node id (default: gateway or preference value)")
	cmd.Flags().DurationVar(&deviceTimeout, "timeout", 0, "Exchange timeout (default: preference value)")
}

// session is an open device connection plus the trace of its frames
type session struct {
	URL    string
	Conn   channel.Conn
	Client *mailbox.Client
	Trace  *ui.Trace
	// Channel records frames into Trace before passing them to Conn
	Channel channel.Channel
}

func (s *session) Close() {
	if err := s.Conn.Close(); err != nil {
		logging.Debug("Close failed", zap.String("device", s.URL), zap.Error(err))
	}
}

// openDevice resolves --device against the registry and connects. Frames
// are recorded into trace, or into a new trace when it is nil.
func openDevice(ctx context.Context, trace *ui.Trace) (*session, error) {
	if deviceArg == "" {
		return nil, fmt.Errorf("no device given (use --device URL or a saved gateway name)")
	}

	url, node := registry.ResolveDevice(deviceArg)
	if nodeID >= 0 {
		if nodeID > 0xFF {
			return nil, fmt.Errorf("--node must be between 0 and 255 (got %d)", nodeID)
		}
		node = uint8(nodeID)
	}

	timeout := deviceTimeout
	if timeout <= 0 {
		timeout = registry.Prefs().Timeout()
	}

	conn, err := channel.Open(ctx, url,
		channel.WithTimeout(timeout),
		channel.WithUserAgent(version.UserAgent()),
	)
	if err != nil {
		return nil, err
	}

	if trace == nil {
		trace = ui.NewTrace()
	}
	traced := tracedChannel(conn, trace)
	logging.Debug("Device session opened",
		zap.String("url", url),
		zap.Uint8("node", node),
		zap.Duration("timeout", timeout),
	)

	return &session{
		URL:     url,
		Conn:    conn,
		Client:  mailbox.NewClient(traced, node),
		Trace:   trace,
		Channel: traced,
	}, nil
}

// tracedChannel records every command and response into trace.
func tracedChannel(ch channel.Channel, trace *ui.Trace) channel.Channel {
	return channel.Func(func(ctx context.Context, cmd []byte) ([]byte, error) {
		trace.Record("tx", cmd)
		resp, err := ch.Exchange(ctx, cmd)
		if err != nil {
			trace.Note("✗ %v", err)
			return nil, err
		}
		trace.Record("rx", resp)
		return resp, nil
	})
}

// loadProfile parses an ESI file.
func loadProfile(path string) (*esi.Profile, error) {
	p, err := esi.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", path, err)
	}
	return p, nil
}

// parseUintFlag parses a numeric flag in decimal, 0x or #x form.
func parseUintFlag(name, value string, bits int) (uint64, error) {
	v, err := esi.ParseUint(value, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return v, nil
}

// writeReport finishes run and writes it to --report, if given. The format
// follows the file extension, then the report_format preference.
func writeReport(run *report.Run) error {
	if reportPath == "" {
		return nil
	}
	run.Finish()

	format, err := report.ParseFormat(filepath.Ext(reportPath))
	if err != nil {
		format, err = report.ParseFormat(registry.Prefs().ReportFormat)
		if err != nil {
			format = report.FormatForPath(reportPath)
		}
	}

	f, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := run.Write(f, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logging.Info("Report written",
		zap.String("path", reportPath),
		zap.String("format", string(format)),
		zap.Bool("passed", run.Passed),
	)
	return nil
}

// printer writes styled output to the command's output stream
func printer(cmd *cobra.Command) *ui.Printer {
	return ui.NewPrinter(cmd.OutOrStdout())
}
