// Package cmd provides the command-line interface for the Octopus
// equivalence checker using the Cobra framework. It defines the root command
// and the check subcommand.
package cmd

import "github.com/spf13/cobra"

// version is stamped by the build.
var version = "dev"

// rootCmd is the base command for the CLI. Subcommands are registered via
// their init() hooks.
var rootCmd = &cobra.Command{
	Use:     "octopus",
	Short:   "Octopus is an equivalence checker for P4 packet parsers",
	Version: version,
}

// Execute runs the root Cobra command and returns any error encountered
// during execution. This is the main entry point called from main.go.
func Execute() error {
	return rootCmd.Execute()
}
