package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr       = ":8080"
	defaultDBPath           = "osrmd.db"
	defaultEngine           = "remote"
	defaultRemoteURL        = "http://127.0.0.1:5000"
	defaultQueueSize        = 64
	defaultShutdownTimeoutS = 10

	envListenAddr        = "OSRM_LISTEN_ADDR"
	envDBPath            = "OSRM_DB_PATH"
	envLogLevel          = "OSRM_LOG_LEVEL"
	envEngine            = "OSRM_ENGINE"
	envRemoteURL         = "OSRM_REMOTE_URL"
	envBasePath          = "OSRM_BASE_PATH"
	envQueueSize         = "OSRM_QUEUE_SIZE"
	envShutdownTimeoutS  = "OSRM_SHUTDOWN_TIMEOUT_S"
	envTracingEnabled    = "OSRM_TRACING_ENABLED"
	envTracingEndpoint   = "OSRM_TRACING_ENDPOINT"
	envTracingSampleRate = "OSRM_TRACING_SAMPLE_RATE"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// Engine names a registered opener; BasePath selects the dataset it
	// opens, empty meaning shared memory. RemoteURL is only consulted by
	// the remote opener.
	Engine    string
	RemoteURL string
	BasePath  string

	QueueSize       int
	ShutdownTimeout time.Duration

	TracingEnabled    bool
	TracingEndpoint   string
	TracingSampleRate float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		ListenAddr:        getEnv(envListenAddr, defaultListenAddr),
		DBPath:            getEnv(envDBPath, defaultDBPath),
		LogLevel:          parseLogLevel(os.Getenv(envLogLevel)),
		Engine:            getEnv(envEngine, defaultEngine),
		RemoteURL:         getEnv(envRemoteURL, defaultRemoteURL),
		BasePath:          os.Getenv(envBasePath),
		QueueSize:         getEnvInt(envQueueSize, defaultQueueSize),
		ShutdownTimeout:   time.Duration(getEnvInt(envShutdownTimeoutS, defaultShutdownTimeoutS)) * time.Second,
		TracingEnabled:    getEnvBool(envTracingEnabled, false),
		TracingEndpoint:   os.Getenv(envTracingEndpoint),
		TracingSampleRate: getEnvFloat(envTracingSampleRate, 1.0),
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true")
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
