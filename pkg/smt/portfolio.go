package smt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jortvanleenen/Octopus/pkg/formula"
	"github.com/jortvanleenen/Octopus/pkg/metrics"
)

// PortfolioConfig tunes a portfolio.
type PortfolioConfig struct {
	// QueryTimeout bounds each query across the whole portfolio. Zero means
	// no bound.
	QueryTimeout time.Duration
	// Logger receives per-query debug logging; nil disables it.
	Logger *zap.Logger
	// Instrumentation receives query metrics; nil disables them.
	Instrumentation *metrics.Instrumentation
}

// Portfolio races a set of solver backends against each other on every
// query; the first definitive verdict wins and the losers are cancelled.
// It implements Oracle.
type Portfolio struct {
	backends []*Backend
	cfg      PortfolioConfig
	logger   *zap.Logger

	session string
	lastSat formula.Formula
}

// NewPortfolio builds a portfolio over the given backends.
func NewPortfolio(backends []*Backend, cfg PortfolioConfig) *Portfolio {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Portfolio{backends: backends, cfg: cfg, logger: logger}
}

// BeginSession drops unavailable backends with a warning and fails when none
// remain.
func (p *Portfolio) BeginSession(ctx context.Context) error {
	available := make([]*Backend, 0, len(p.backends))
	for _, b := range p.backends {
		if !b.Available() {
			p.logger.Warn("solver is not available", zap.String("solver", b.Name))
			continue
		}
		available = append(available, b)
	}
	if len(available) == 0 {
		return fmt.Errorf("%w: none of the configured solvers are available", ErrSolverFailure)
	}
	p.backends = available
	p.session = uuid.NewString()
	p.lastSat = nil

	names := make([]string, len(available))
	for i, b := range available {
		names[i] = b.Name
	}
	p.logger.Info("solver session started",
		zap.String("session", p.session),
		zap.Strings("solvers", names))
	return nil
}

// EndSession closes the session. Backends are per-query processes, so there
// is nothing to tear down beyond forgetting the session state.
func (p *Portfolio) EndSession() error {
	if p.session != "" {
		p.logger.Info("solver session ended", zap.String("session", p.session))
	}
	p.session = ""
	p.lastSat = nil
	return nil
}

// IsSat reports the satisfiability of f.
func (p *Portfolio) IsSat(ctx context.Context, f formula.Formula) (bool, error) {
	result, _, err := p.query(ctx, f, nil, metrics.KindSat)
	if err != nil {
		return false, err
	}
	if result == ResultSat {
		p.lastSat = f
		return true, nil
	}
	return false, nil
}

// IsValid reports whether f holds for every assignment, by checking that its
// negation is unsatisfiable.
func (p *Portfolio) IsValid(ctx context.Context, f formula.Formula) (bool, error) {
	result, _, err := p.query(ctx, &formula.Not{Sub: f}, nil, metrics.KindValid)
	if err != nil {
		return false, err
	}
	return result == ResultUnsat, nil
}

// Model returns concrete values for the given variables under the most
// recent satisfiable IsSat formula.
func (p *Portfolio) Model(ctx context.Context, vars []*formula.Var) (Assignment, error) {
	if p.lastSat == nil {
		return nil, fmt.Errorf("%w: model requested without a preceding satisfiable query", ErrSolverFailure)
	}
	if len(vars) == 0 {
		return Assignment{}, nil
	}
	result, model, err := p.query(ctx, p.lastSat, vars, metrics.KindModel)
	if err != nil {
		return nil, err
	}
	if result != ResultSat {
		return nil, fmt.Errorf("%w: formula no longer satisfiable during model extraction", ErrSolverFailure)
	}
	return model, nil
}

// outcome is one backend's answer to a query.
type outcome struct {
	backend *Backend
	result  Result
	rest    string
	err     error
}

// query renders one script and races it across the portfolio.
func (p *Portfolio) query(ctx context.Context, f formula.Formula, valueVars []*formula.Var, kind string) (Result, Assignment, error) {
	if p.session == "" {
		return ResultUnknown, nil, fmt.Errorf("%w: no active session", ErrSolverFailure)
	}
	script, err := Script(f, valueVars)
	if err != nil {
		return ResultUnknown, nil, fmt.Errorf("%w: %v", ErrSolverFailure, err)
	}

	queryCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.QueryTimeout > 0 {
		queryCtx, cancel = context.WithTimeout(ctx, p.cfg.QueryTimeout)
	} else {
		queryCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	results := make(chan outcome, len(p.backends))
	g, raceCtx := errgroup.WithContext(queryCtx)
	for _, b := range p.backends {
		b := b
		g.Go(func() error {
			result, rest, err := b.run(raceCtx, script)
			results <- outcome{backend: b, result: result, rest: rest, err: err}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	var firstErr error
	for i := 0; i < len(p.backends); i++ {
		o := <-results
		if o.err != nil {
			if queryCtx.Err() == nil && firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		if o.result == ResultUnknown {
			p.logger.Debug("solver answered unknown",
				zap.String("session", p.session),
				zap.String("solver", o.backend.Name),
				zap.String("kind", kind))
			continue
		}

		// Definitive verdict: stop the rest of the portfolio.
		cancel()
		elapsed := time.Since(start)
		p.cfg.Instrumentation.ObserveSolverQuery(o.backend.Name, kind, o.result.String(), elapsed)
		p.logger.Debug("solver query answered",
			zap.String("session", p.session),
			zap.String("solver", o.backend.Name),
			zap.String("kind", kind),
			zap.Stringer("result", o.result),
			zap.Duration("elapsed", elapsed))

		var model Assignment
		if len(valueVars) > 0 && o.result == ResultSat {
			model, err = parseModel(o.rest)
			if err != nil {
				return ResultUnknown, nil, fmt.Errorf("%w: %s: %v", ErrSolverFailure, o.backend.Name, err)
			}
		}
		return o.result, model, nil
	}

	if err := queryCtx.Err(); err != nil {
		return ResultUnknown, nil, fmt.Errorf("%w: %s query aborted: %v", ErrSolverFailure, kind, err)
	}
	if firstErr != nil {
		return ResultUnknown, nil, firstErr
	}
	return ResultUnknown, nil, fmt.Errorf("%w: every solver answered unknown for %s query", ErrSolverFailure, kind)
}
