// Package logging provides structured logging configuration using zap with
// logfmt encoding. Output goes to stderr so certificates and counterexamples
// printed on stdout stay machine-readable.
package logging

import (
	"os"
	"strings"

	zaplogfmt "github.com/allir/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration options.
type Config struct {
	// Level specifies the minimum log level (debug, info, warn, error).
	Level string `yaml:"level"`
}

// New initializes a zap logger that emits logfmt output to stderr.
func New(cfg Config) (*zap.Logger, error) {
	level := parseLevel(cfg.Level)
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = ""
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.ConsoleSeparator = " "

	core := zapcore.NewCore(
		zaplogfmt.NewEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(level),
	)

	return zap.New(core), nil
}

// FromVerbosity maps a repeated -v count onto a level name: errors only by
// default, then warn, info and debug.
func FromVerbosity(count int) Config {
	switch {
	case count >= 3:
		return Config{Level: "debug"}
	case count == 2:
		return Config{Level: "info"}
	case count == 1:
		return Config{Level: "warn"}
	default:
		return Config{Level: "error"}
	}
}

// parseLevel converts a string level name to a zapcore.Level constant.
// It defaults to error level for empty or unrecognized values.
func parseLevel(v string) zapcore.Level {
	switch strings.ToLower(v) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error", "":
		return zap.ErrorLevel
	default:
		return zap.ErrorLevel
	}
}
