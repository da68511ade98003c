package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestParseLevel maps level names onto zap levels, defaulting to error.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.ErrorLevel},
		{"chatty", zapcore.ErrorLevel},
		{"INFO", zapcore.InfoLevel},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// TestFromVerbosity maps repeated -v flags onto level names.
func TestFromVerbosity(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{0, "error"},
		{1, "warn"},
		{2, "info"},
		{3, "debug"},
		{7, "debug"},
	}
	for _, tc := range tests {
		if got := FromVerbosity(tc.count).Level; got != tc.want {
			t.Errorf("FromVerbosity(%d) = %q, want %q", tc.count, got, tc.want)
		}
	}
}

// TestNewBuildsLogger smoke-tests logger construction for each level.
func TestNewBuildsLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		logger, err := New(Config{Level: level})
		if err != nil {
			t.Fatalf("New(%q) returned %v", level, err)
		}
		logger.Debug("probe")
		_ = logger.Sync()
	}
}
