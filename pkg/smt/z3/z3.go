// Package z3 registers the Z3 solver as a portfolio backend.
package z3

import "github.com/jortvanleenen/Octopus/pkg/smt"

// settings are the configurable knobs of the Z3 backend.
type settings struct {
	// Path overrides the binary looked up on PATH.
	Path string `yaml:"path"`
	// ExtraArgs are appended to the standard invocation.
	ExtraArgs []string `yaml:"extraArgs"`
}

func init() {
	smt.RegisterBackendFactory("z3", func(raw map[string]any) (*smt.Backend, error) {
		cfg := settings{Path: "z3"}
		if err := smt.DecodeBackendSettings(raw, &cfg); err != nil {
			return nil, err
		}
		args := append([]string{"-smt2", "-in"}, cfg.ExtraArgs...)
		return &smt.Backend{Name: "z3", Command: cfg.Path, Args: args}, nil
	})
}
