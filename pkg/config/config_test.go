package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig checks the zero-file configuration.
func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
	if len(cfg.Solvers) != 2 || cfg.Solvers[0].Name != "z3" || cfg.Solvers[1].Name != "cvc5" {
		t.Errorf("unexpected default solvers: %+v", cfg.Solvers)
	}
	d, err := cfg.Engine.Timeout()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 5*time.Minute {
		t.Errorf("default timeout = %v", d)
	}
	if cfg.Engine.DisableLeaps {
		t.Error("leaps must be enabled by default")
	}
}

// TestLoad exercises file loading, defaults and validation.
func TestLoad(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("complete file", func(t *testing.T) {
		cfg, err := Load(write(t, `
logging:
  level: debug
solvers:
  - name: z3
    settings:
      extraArgs: ["-T:30"]
engine:
  disableLeaps: true
  queryTimeout: 45s
filterDisagreeing: hdr_r.eth.type != 0x0800_16
`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("level = %q", cfg.Logging.Level)
		}
		if len(cfg.Solvers) != 1 || cfg.Solvers[0].Name != "z3" {
			t.Errorf("solvers = %+v", cfg.Solvers)
		}
		if !cfg.Engine.DisableLeaps {
			t.Error("disableLeaps not honoured")
		}
		d, _ := cfg.Engine.Timeout()
		if d != 45*time.Second {
			t.Errorf("timeout = %v", d)
		}
		if cfg.FilterDisagreeing == "" {
			t.Error("filterDisagreeing not honoured")
		}
	})

	t.Run("empty file gets defaults", func(t *testing.T) {
		cfg, err := Load(write(t, ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Solvers) != 2 {
			t.Errorf("solvers = %+v", cfg.Solvers)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := Load(""); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("duplicate solver names", func(t *testing.T) {
		_, err := Load(write(t, "solvers:\n  - name: z3\n  - name: z3\n"))
		if err == nil || !strings.Contains(err.Error(), "duplicate solver name") {
			t.Errorf("expected duplicate solver error, got %v", err)
		}
	})

	t.Run("invalid timeout", func(t *testing.T) {
		_, err := Load(write(t, "engine:\n  queryTimeout: soon\n"))
		if err == nil || !strings.Contains(err.Error(), "invalid engine query timeout") {
			t.Errorf("expected timeout error, got %v", err)
		}
	})

	t.Run("unreadable file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected an error")
		}
	})
}
