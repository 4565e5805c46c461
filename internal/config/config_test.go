package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envListenAddr, envDBPath, envLogLevel, envEngine, envRemoteURL,
		envBasePath, envQueueSize, envShutdownTimeoutS,
		envTracingEnabled, envTracingEndpoint, envTracingSampleRate,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.Engine != "remote" {
		t.Errorf("Engine = %q, want %q", cfg.Engine, "remote")
	}
	if cfg.RemoteURL != defaultRemoteURL {
		t.Errorf("RemoteURL = %q, want %q", cfg.RemoteURL, defaultRemoteURL)
	}
	if cfg.BasePath != "" {
		t.Errorf("BasePath = %q, want empty", cfg.BasePath)
	}
	if cfg.QueueSize != defaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.QueueSize, defaultQueueSize)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
	if cfg.TracingEnabled {
		t.Error("TracingEnabled = true, want false")
	}
	if cfg.TracingSampleRate != 1.0 {
		t.Errorf("TracingSampleRate = %f, want 1.0", cfg.TracingSampleRate)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envEngine, "stub")
	t.Setenv(envRemoteURL, "http://router.internal:5000")
	t.Setenv(envBasePath, "/data/berlin-latest.osrm")
	t.Setenv(envQueueSize, "128")
	t.Setenv(envShutdownTimeoutS, "30")
	t.Setenv(envTracingEnabled, "TRUE")
	t.Setenv(envTracingEndpoint, "collector:4317")
	t.Setenv(envTracingSampleRate, "0.25")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.Engine != "stub" {
		t.Errorf("Engine = %q, want %q", cfg.Engine, "stub")
	}
	if cfg.RemoteURL != "http://router.internal:5000" {
		t.Errorf("RemoteURL = %q, want %q", cfg.RemoteURL, "http://router.internal:5000")
	}
	if cfg.BasePath != "/data/berlin-latest.osrm" {
		t.Errorf("BasePath = %q, want %q", cfg.BasePath, "/data/berlin-latest.osrm")
	}
	if cfg.QueueSize != 128 {
		t.Errorf("QueueSize = %d, want 128", cfg.QueueSize)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if !cfg.TracingEnabled {
		t.Error("TracingEnabled = false, want true")
	}
	if cfg.TracingEndpoint != "collector:4317" {
		t.Errorf("TracingEndpoint = %q, want %q", cfg.TracingEndpoint, "collector:4317")
	}
	if cfg.TracingSampleRate != 0.25 {
		t.Errorf("TracingSampleRate = %f, want 0.25", cfg.TracingSampleRate)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(envQueueSize, "lots")
	t.Setenv(envShutdownTimeoutS, "soon")
	t.Setenv(envTracingSampleRate, "most")

	cfg := Load()

	if cfg.QueueSize != defaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.QueueSize, defaultQueueSize)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
	if cfg.TracingSampleRate != 1.0 {
		t.Errorf("TracingSampleRate = %f, want 1.0", cfg.TracingSampleRate)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}
