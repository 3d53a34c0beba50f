package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{" warn ", zapcore.WarnLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("Expected silent logger when no level is configured")
	}
}

func TestInitializeFromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	core := GetLogger().Core()
	if core.Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !core.Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestInitializeUnknownLevel(t *testing.T) {
	if err := Initialize("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestLogExchange(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogExchange("127.0.0.1:34980", "tx", []byte{0x02, 0x01, 0x10, 0x18, 0x01})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["hex"] != "0201101801" {
		t.Errorf("hex = %v, want 0201101801", fields["hex"])
	}
	if fields["direction"] != "tx" {
		t.Errorf("direction = %v, want tx", fields["direction"])
	}
}

func TestLogExchangeSkippedAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogExchange("peer", "rx", []byte{0x00})
	if logs.Len() != 0 {
		t.Errorf("Expected no entries at info level, got %d", logs.Len())
	}
}

func TestHexDumpTruncates(t *testing.T) {
	data := make([]byte, 300)
	got := HexDump(data)
	if !strings.HasSuffix(got, "...") {
		t.Error("Expected truncation marker")
	}
	if len(got) != 256*2+3 {
		t.Errorf("len = %d, want %d", len(got), 256*2+3)
	}
	if HexDump(nil) != "" {
		t.Error("Expected empty dump for nil input")
	}
}

func TestASCIIDump(t *testing.T) {
	got := ASCIIDump([]byte{'E', 'C', 0x00, 'T', 0x7F})
	if got != "EC.T." {
		t.Errorf("ASCIIDump() = %q, want %q", got, "EC.T.")
	}
}
