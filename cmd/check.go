package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jortvanleenen/Octopus/pkg/bisimulation"
	"github.com/jortvanleenen/Octopus/pkg/config"
	"github.com/jortvanleenen/Octopus/pkg/constraint"
	"github.com/jortvanleenen/Octopus/pkg/logging"
	"github.com/jortvanleenen/Octopus/pkg/metrics"
	"github.com/jortvanleenen/Octopus/pkg/program"
	"github.com/jortvanleenen/Octopus/pkg/smt"

	// Register solver backends
	_ "github.com/jortvanleenen/Octopus/pkg/smt/cvc5"
	_ "github.com/jortvanleenen/Octopus/pkg/smt/z3"
)

// errMismatch signals the non-zero exit for --fail-on-mismatch without
// printing anything beyond the verdict.
var errMismatch = errors.New("parsers are not equivalent")

var (
	cfgFile           string
	inputIsJSON       bool
	outputFile        string
	failOnMismatch    bool
	disableLeaps      bool
	solverNames       []string
	filterAccepting   string
	filterDisagreeing string
	printStats        bool
	verbosity         int
)

// init wires the check subcommand and its flags into the CLI.
func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&cfgFile, "config", "", "Path to an optional configuration file")
	checkCmd.Flags().BoolVarP(&inputIsJSON, "json", "j", false, "Treat both inputs as IR (p4c) JSON")
	checkCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the certificate or counterexample to this file")
	checkCmd.Flags().BoolVar(&failOnMismatch, "fail-on-mismatch", false, "Exit with code 1 if the parsers are not equivalent")
	checkCmd.Flags().BoolVar(&disableLeaps, "disable-leaps", false, "Advance the stream a single bit at a time")
	checkCmd.Flags().StringSliceVarP(&solverNames, "solvers", "s", nil, "Solvers to race (default from configuration)")
	checkCmd.Flags().StringVar(&filterAccepting, "filter-accepting", "", "Relation that must hold between accepting stores")
	checkCmd.Flags().StringVar(&filterDisagreeing, "filter-disagreeing", "", "Relation under which accept mismatches are tolerated")
	checkCmd.Flags().BoolVar(&printStats, "stat", false, "Print engine and solver statistics after the run")
	checkCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase output verbosity (-v, -vv, -vvv)")
}

var checkCmd = &cobra.Command{
	Use:           "check <file 1> <file 2>",
	Short:         "Decide equivalence of two P4 packet parsers",
	Args:          cobra.ExactArgs(2),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return err
		}

		logCfg := cfg.Logging
		if verbosity > 0 {
			logCfg = logging.FromVerbosity(verbosity)
		}
		baseLogger, err := logging.New(logCfg)
		if err != nil {
			return err
		}
		defer func() { _ = baseLogger.Sync() }()
		logger := baseLogger.With(zap.String("component", "cli"))

		runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		result, err := runCheck(runCtx, cfg, args, baseLogger)
		if err != nil {
			logger.Error("equivalence check failed", zap.Error(err))
			return err
		}

		if err := writeVerdict(result); err != nil {
			logger.Error("could not write verdict", zap.Error(err))
			return err
		}

		if failOnMismatch && !result.Equivalent {
			return errMismatch
		}
		return nil
	},
}

// loadConfig merges the optional configuration file with the CLI flags;
// flags win.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	if disableLeaps {
		cfg.Engine.DisableLeaps = true
	}
	if len(solverNames) > 0 {
		cfg.Solvers = nil
		for _, name := range solverNames {
			cfg.Solvers = append(cfg.Solvers, config.SolverConfig{Name: name})
		}
	}
	if filterAccepting != "" {
		cfg.FilterAccepting = filterAccepting
	}
	if filterDisagreeing != "" {
		cfg.FilterDisagreeing = filterDisagreeing
	}
	return cfg, cfg.Validate()
}

// runCheck builds both programs, the solver portfolio and the engine, and
// runs the bisimulation.
func runCheck(ctx context.Context, cfg *config.Config, files []string, baseLogger *zap.Logger) (*bisimulation.Result, error) {
	logger := baseLogger.With(zap.String("component", "check"))

	documents, err := program.ReadIRJSON(ctx, files, inputIsJSON, logger)
	if err != nil {
		return nil, err
	}

	programs := make([]*program.Program, 2)
	for i, doc := range documents {
		p, err := program.Build(doc, i == 0, baseLogger.With(zap.String("component", "program"), zap.Int("side", i)))
		if err != nil {
			return nil, fmt.Errorf("could not build parser from %q: %w", files[i], err)
		}
		logger.Debug("built parser program", zap.String("file", files[i]), zap.String("parser", p.String()))
		programs[i] = p
	}

	opts := bisimulation.Options{EnableLeaps: !cfg.Engine.DisableLeaps}
	if cfg.FilterAccepting != "" {
		opts.FilterAccepting, err = constraint.Compile(cfg.FilterAccepting)
		if err != nil {
			return nil, fmt.Errorf("accepting filter: %w", err)
		}
	}
	if cfg.FilterDisagreeing != "" {
		opts.FilterDisagreeing, err = constraint.Compile(cfg.FilterDisagreeing)
		if err != nil {
			return nil, fmt.Errorf("disagreeing filter: %w", err)
		}
	}

	timeout, err := cfg.Engine.Timeout()
	if err != nil {
		return nil, err
	}
	backends := make([]*smt.Backend, 0, len(cfg.Solvers))
	for _, s := range cfg.Solvers {
		b, err := smt.NewBackend(s.Name, s.Settings)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}

	registry := prometheus.NewRegistry()
	var inst *metrics.Instrumentation
	if printStats {
		inst = metrics.NewInstrumentation(registry)
	}

	portfolio := smt.NewPortfolio(backends, smt.PortfolioConfig{
		QueryTimeout:    timeout,
		Logger:          baseLogger.With(zap.String("component", "solver-portfolio")),
		Instrumentation: inst,
	})

	engine, err := bisimulation.New(programs[0], programs[1], portfolio, opts,
		baseLogger.With(zap.String("component", "bisimulation")), inst)
	if err != nil {
		return nil, err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	if printStats {
		summary, err := metrics.Summary(registry)
		if err == nil && summary != "" {
			fmt.Fprintln(os.Stderr, summary)
		}
	}
	return result, nil
}

// writeVerdict prints the verdict plus certificate or counterexample to
// stdout, or to the --output file when given.
func writeVerdict(result *bisimulation.Result) error {
	var message, header, body string
	if result.Equivalent {
		message = "The two parsers are equivalent."
		header = "--- Bisimulation Certificate ---"
		body = result.CertificateString()
	} else {
		message = "The two parsers are NOT equivalent."
		header = "--- Counterexample ---"
		body = result.Counterexample.String()
	}

	text := message + "\n" + header + "\n" + body
	if outputFile != "" {
		return os.WriteFile(outputFile, []byte(text), 0o644)
	}
	fmt.Println(text)
	return nil
}
