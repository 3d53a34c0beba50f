// Package config provides user configuration management for ecatcheck.
//
// This package manages a YAML configuration file holding saved gateways
// (named channel URLs with a node id) and application preferences. The
// file location follows OS conventions.
//
// # Configuration File Location
//
// ECATCHECK_CONFIG, when set, names the file directly. Otherwise:
//
//   - Linux: $XDG_CONFIG_HOME/ecatcheck/config.yaml or $HOME/.config/ecatcheck/config.yaml
//   - macOS: $HOME/.config/ecatcheck/config.yaml
//   - Windows: %LOCALAPPDATA%\ecatcheck\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//
//	if _, err := registry.AddGateway("bench", "tcp://192.168.1.50:34980", 0); err != nil {
//	    return err
//	}
//
//	url, node := registry.ResolveDevice("bench")
//
//	if err := registry.Save(); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// A Registry is not safe for concurrent mutation. Saves within a process are
// serialized and every save replaces the file atomically.
package config
