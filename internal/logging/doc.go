// Package logging provides structured logging for ecatcheck.
//
// It wraps a global zap logger with convenience functions. Logging is silent
// unless a level is given on the command line or in ECATCHECK_LOG_LEVEL, so
// library code can log freely without polluting CLI output.
//
// # Log Levels
//
//   - Debug: frame hex dumps, per-element parse detail
//   - Info: connections, validation verdicts
//   - Warn: rejected transitions, unreadable objects
//   - Error: channel faults
//
// # Usage
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	logging.Info("Vendor ID validation",
//	    zap.String("expected", "0x0002"),
//	    zap.String("actual", "0x0002"),
//	)
//
// Channel transports call LogExchange for every frame sent and received.
// Output goes to stderr so report output on stdout stays machine-readable.
package logging
