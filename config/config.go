package config

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultRetryMin       = time.Second
	defaultRetryMax       = 10 * time.Second
	defaultConnectTimeout = 5 * time.Second

	envLogLevel       = "MODBUS_BRIDGE_LOG_LEVEL"
	envLogFormat      = "MODBUS_BRIDGE_LOG_FORMAT"
	envWorkers        = "MODBUS_BRIDGE_WORKERS"
	envRetryMin       = "MODBUS_BRIDGE_RETRY_MIN"
	envRetryMax       = "MODBUS_BRIDGE_RETRY_MAX"
	envConnectTimeout = "MODBUS_BRIDGE_CONNECT_TIMEOUT"
)

// Log output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config holds bridge configuration loaded from environment variables.
type Config struct {
	LogFormat      string
	LogLevel       zapcore.Level
	Workers        int // 0 selects one worker per CPU
	RetryMin       time.Duration
	RetryMax       time.Duration
	ConnectTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Unparseable values fall back to the default.
func Load() Config {
	cfg := Config{
		LogFormat:      FormatJSON,
		LogLevel:       zapcore.InfoLevel,
		RetryMin:       defaultRetryMin,
		RetryMax:       defaultRetryMax,
		ConnectTimeout: defaultConnectTimeout,
	}

	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envLogFormat); v != "" {
		cfg.LogFormat = parseLogFormat(v)
	}
	if v := os.Getenv(envWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Workers = n
		}
	}
	cfg.RetryMin = parseDuration(os.Getenv(envRetryMin), cfg.RetryMin)
	cfg.RetryMax = parseDuration(os.Getenv(envRetryMax), cfg.RetryMax)
	cfg.ConnectTimeout = parseDuration(os.Getenv(envConnectTimeout), cfg.ConnectTimeout)
	if cfg.RetryMax < cfg.RetryMin {
		cfg.RetryMax = cfg.RetryMin
	}

	return cfg
}

func parseLogLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func parseLogFormat(s string) string {
	if strings.EqualFold(s, FormatConsole) {
		return FormatConsole
	}
	return FormatJSON
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// NewLogger creates a structured logger writing to w at the configured level,
// as JSON or as human-readable console lines.
func NewLogger(w io.Writer, cfg Config) *zap.Logger {
	var enc zapcore.Encoder
	if cfg.LogFormat == FormatConsole {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), cfg.LogLevel)
	return zap.New(core)
}
