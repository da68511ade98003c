// Package config provides configuration loading, validation, and management
// for the equivalence checker. It supports YAML-based configuration files
// with validation and default value application; CLI flags override file
// values.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jortvanleenen/Octopus/pkg/logging"
)

const (
	// defaultQueryTimeout bounds each portfolio query.
	defaultQueryTimeout = 5 * time.Minute
)

// Config models the complete application configuration.
type Config struct {
	// Logging configures structured logging output and levels.
	Logging logging.Config `yaml:"logging"`
	// Solvers lists the portfolio members in preference order.
	Solvers []SolverConfig `yaml:"solvers"`
	// Engine tunes the bisimulation loop.
	Engine EngineConfig `yaml:"engine"`
	// FilterAccepting is a relation that must be satisfiable whenever both
	// parsers accept.
	FilterAccepting string `yaml:"filterAccepting"`
	// FilterDisagreeing is a relation under which accept mismatches are
	// tolerated.
	FilterDisagreeing string `yaml:"filterDisagreeing"`
}

// SolverConfig defines one portfolio member with its type and settings.
type SolverConfig struct {
	// Name selects a registered solver backend (e.g. "z3", "cvc5").
	Name string `yaml:"name"`
	// Settings contains backend-specific configuration as a map.
	Settings map[string]any `yaml:"settings"`
}

// EngineConfig holds bisimulation parameters.
type EngineConfig struct {
	// DisableLeaps forces single-bit stream advancement.
	DisableLeaps bool `yaml:"disableLeaps"`
	// QueryTimeout is the maximum duration of one solver query (e.g. "30s").
	QueryTimeout string `yaml:"queryTimeout"`
}

// Default returns the configuration used when no file is given: a z3/cvc5
// portfolio with leaps enabled.
func Default() *Config {
	cfg := &Config{
		Solvers: []SolverConfig{{Name: "z3"}, {Name: "cvc5"}},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads, normalizes, and validates a configuration file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("a path to a configuration file is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read the configuration file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse the configuration file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if len(c.Solvers) == 0 {
		c.Solvers = []SolverConfig{{Name: "z3"}, {Name: "cvc5"}}
	}
	if c.Engine.QueryTimeout == "" {
		c.Engine.QueryTimeout = defaultQueryTimeout.String()
	}
}

// Validate ensures the configuration is ready for use.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	names := make(map[string]struct{})
	for _, s := range c.Solvers {
		if s.Name == "" {
			return errors.New("solver name is required")
		}
		if _, exists := names[s.Name]; exists {
			return fmt.Errorf("duplicate solver name %s", s.Name)
		}
		names[s.Name] = struct{}{}
	}
	if _, err := c.Engine.Timeout(); err != nil {
		return err
	}
	return nil
}

// Timeout parses the configured query timeout.
func (e EngineConfig) Timeout() (time.Duration, error) {
	if e.QueryTimeout == "" {
		return defaultQueryTimeout, nil
	}
	d, err := time.ParseDuration(e.QueryTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid engine query timeout %q: %w", e.QueryTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("engine query timeout %q is negative", e.QueryTimeout)
	}
	return d, nil
}
