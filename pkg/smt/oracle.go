// Package smt connects the symbolic engine to external SMT solvers. It
// lowers formulas to SMT-LIB2 scripts, runs them through a portfolio of
// solver processes raced against each other, and parses verdicts and models
// back out.
//
// The engine treats the portfolio as an opaque oracle: every query is
// synchronous, and free bit-vector variables are existential by virtue of
// plain satisfiability checking.
package smt

import (
	"context"
	"errors"
	"math/big"

	"github.com/jortvanleenen/Octopus/pkg/formula"
)

// ErrSolverFailure marks an unknown verdict, a timeout, or a crashed solver
// process. The engine aborts on it: a partial worklist is not a certificate.
var ErrSolverFailure = errors.New("solver failure")

// Result is a solver verdict.
type Result int

// The three possible verdicts of a satisfiability query.
const (
	ResultUnknown Result = iota
	ResultSat
	ResultUnsat
)

func (r Result) String() string {
	switch r {
	case ResultSat:
		return "sat"
	case ResultUnsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Assignment maps variable names to the concrete bit-vector values of a
// model.
type Assignment map[string]*big.Int

// Oracle is the solver interface the engine consumes.
//
// Model reports values under the most recent satisfiable IsSat formula;
// calling it without a preceding satisfiable IsSat is an error.
type Oracle interface {
	BeginSession(ctx context.Context) error
	IsSat(ctx context.Context, f formula.Formula) (bool, error)
	IsValid(ctx context.Context, f formula.Formula) (bool, error)
	Model(ctx context.Context, vars []*formula.Var) (Assignment, error)
	EndSession() error
}
