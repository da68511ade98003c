// Package cvc5 registers the cvc5 solver as a portfolio backend.
package cvc5

import "github.com/jortvanleenen/Octopus/pkg/smt"

// settings are the configurable knobs of the cvc5 backend.
type settings struct {
	// Path overrides the binary looked up on PATH.
	Path string `yaml:"path"`
	// ExtraArgs are appended to the standard invocation.
	ExtraArgs []string `yaml:"extraArgs"`
}

func init() {
	smt.RegisterBackendFactory("cvc5", func(raw map[string]any) (*smt.Backend, error) {
		cfg := settings{Path: "cvc5"}
		if err := smt.DecodeBackendSettings(raw, &cfg); err != nil {
			return nil, err
		}
		args := append([]string{"--lang", "smt2"}, cfg.ExtraArgs...)
		return &smt.Backend{Name: "cvc5", Command: cfg.Path, Args: args}, nil
	})
}
