package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "ecatcheck") {
		t.Errorf("GetConfigDir() = %v, should contain 'ecatcheck'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDirXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only consulted on Linux")
	}
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Join(tmp, "ecatcheck") {
		t.Errorf("GetConfigDir() = %v, want %v", dir, filepath.Join(tmp, "ecatcheck"))
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != CurrentVersion {
		t.Errorf("NewRegistry().Version = %v, want %d", reg.Version, CurrentVersion)
	}
	if reg.Gateways == nil {
		t.Error("NewRegistry().Gateways should be initialized")
	}
	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should be initialized")
	}
	if reg.Preferences.Timeout() != 5*time.Second {
		t.Errorf("default timeout = %v, want 5s", reg.Preferences.Timeout())
	}
	if reg.Preferences.DiscoverTimeout != 10 {
		t.Errorf("DiscoverTimeout = %v, want 10", reg.Preferences.DiscoverTimeout)
	}
}

func TestRegistryAddGateway(t *testing.T) {
	reg := NewRegistry()

	gw, err := reg.AddGateway("bench", "tcp://10.0.0.5:34980", 2)
	if err != nil {
		t.Fatalf("AddGateway() error = %v", err)
	}
	gw.Profile = "EL1004.xml"

	if got := reg.GetGateway("bench"); got != gw {
		t.Error("GetGateway should return the stored gateway")
	}

	// Replacing keeps the profile binding
	gw2, err := reg.AddGateway("bench", "ws://10.0.0.5:8080/ecat", 3)
	if err != nil {
		t.Fatalf("AddGateway() error = %v", err)
	}
	if gw2.Profile != "EL1004.xml" || gw2.URL != "ws://10.0.0.5:8080/ecat" || gw2.Node != 3 {
		t.Errorf("replaced gateway = %+v", gw2)
	}

	if _, err := reg.AddGateway("", "tcp://x", 0); err == nil {
		t.Error("AddGateway with empty name should fail")
	}
	if _, err := reg.AddGateway("x", "", 0); err == nil {
		t.Error("AddGateway with empty url should fail")
	}
}

func TestRegistryRemoveAndNames(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"lab", "bench", "line3"} {
		if _, err := reg.AddGateway(name, "tcp://"+name, 0); err != nil {
			t.Fatal(err)
		}
	}

	got := strings.Join(reg.GatewayNames(), ",")
	if got != "bench,lab,line3" {
		t.Errorf("GatewayNames() = %v", got)
	}

	if !reg.RemoveGateway("lab") {
		t.Error("RemoveGateway(lab) should report removal")
	}
	if reg.RemoveGateway("lab") {
		t.Error("RemoveGateway(lab) twice should report nothing removed")
	}
}

func TestRegistryResolveDevice(t *testing.T) {
	reg := NewRegistry()
	reg.Preferences.DefaultNode = 1
	if _, err := reg.AddGateway("bench", "tcp://10.0.0.5", 4); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.AddGateway("nonode", "tcp://10.0.0.6", 0); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		arg      string
		wantURL  string
		wantNode uint8
	}{
		{"bench", "tcp://10.0.0.5", 4},
		{"nonode", "tcp://10.0.0.6", 1},
		{"ws://other/ecat", "ws://other/ecat", 1},
	}
	for _, tt := range tests {
		url, node := reg.ResolveDevice(tt.arg)
		if url != tt.wantURL || node != tt.wantNode {
			t.Errorf("ResolveDevice(%q) = %q, %d; want %q, %d", tt.arg, url, node, tt.wantURL, tt.wantNode)
		}
	}
}

func TestRegistryUpdateGatewaySeen(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.AddGateway("bench", "tcp://10.0.0.5", 0); err != nil {
		t.Fatal(err)
	}

	before := time.Now()
	reg.UpdateGatewaySeen("bench", 0x0002, 0x044C2C52)
	reg.UpdateGatewaySeen("missing", 1, 1)

	gw := reg.GetGateway("bench")
	if gw.LastSeen.Before(before) {
		t.Error("LastSeen should be updated")
	}
	if gw.VendorID != 0x0002 || gw.ProductCode != 0x044C2C52 {
		t.Errorf("identity = %04X/%08X", gw.VendorID, gw.ProductCode)
	}
	if reg.GetGateway("missing") != nil {
		t.Error("UpdateGatewaySeen must not create gateways")
	}
}

func TestPreferencesValidate(t *testing.T) {
	tests := []struct {
		name    string
		prefs   Preferences
		wantErr bool
	}{
		{"defaults", *DefaultPreferences(), false},
		{"negative timeout", Preferences{TimeoutSeconds: -1}, true},
		{"negative discover", Preferences{DiscoverTimeout: -1}, true},
		{"bad format", Preferences{ReportFormat: "xml"}, true},
		{"yaml format", Preferences{ReportFormat: "yaml"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prefs.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	reg := NewRegistry()
	reg.Preferences.TimeoutSeconds = 12
	reg.Preferences.LogLevel = "debug"
	gw, err := reg.AddGateway("bench", "serial:///dev/ttyUSB0?baud=115200", 5)
	if err != nil {
		t.Fatal(err)
	}
	gw.Profile = "servo.xml"

	if err := reg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# ecatcheck configuration file") {
		t.Errorf("saved file should start with the header comment:\n%s", data)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	got := loaded.GetGateway("bench")
	if got == nil {
		t.Fatal("gateway should exist in loaded registry")
	}
	if got.URL != "serial:///dev/ttyUSB0?baud=115200" || got.Node != 5 || got.Profile != "servo.xml" {
		t.Errorf("loaded gateway = %+v", got)
	}
	if loaded.Preferences.Timeout() != 12*time.Second || loaded.Preferences.LogLevel != "debug" {
		t.Errorf("loaded preferences = %+v", loaded.Preferences)
	}
}

func TestLoadFileMissing(t *testing.T) {
	reg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.Version != CurrentVersion || len(reg.Gateways) != 0 {
		t.Errorf("expected default registry, got %+v", reg)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "version: [", "failed to parse config file"},
		{"wrong version", "version: 2\n", "unsupported config version: 2"},
		{"bad prefs", "version: 1\npreferences:\n  report_format: xml\n", "invalid preferences"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadFile() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadFileFillsPreferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.Preferences == nil || reg.Gateways == nil {
		t.Errorf("LoadFile should fill defaults, got %+v", reg)
	}
}

func TestGetConfigPathEnvOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "bench.yaml")
	t.Setenv(ConfigEnvVar, want)

	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if got != want {
		t.Errorf("GetConfigPath() = %v, want %v", got, want)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	t.Setenv(ConfigEnvVar, path)

	reg := NewRegistry()
	if _, err := reg.AddGateway("bench", "tcp://10.0.0.5:34980", 0); err != nil {
		t.Fatalf("AddGateway() error = %v", err)
	}
	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadRegistry()
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if gw := loaded.GetGateway("bench"); gw == nil || gw.URL != "tcp://10.0.0.5:34980" {
		t.Errorf("GetGateway(bench) = %+v", gw)
	}
}
