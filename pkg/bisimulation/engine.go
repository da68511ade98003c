// Package bisimulation implements the symbolic equivalence check: a worklist
// of guarded formulas over the product of two parser programs, driven by an
// SMT oracle for subsumption, branch pruning and counterexample extraction,
// and accelerated by multi-bit leaps.
package bisimulation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jortvanleenen/Octopus/pkg/constraint"
	"github.com/jortvanleenen/Octopus/pkg/formula"
	"github.com/jortvanleenen/Octopus/pkg/metrics"
	"github.com/jortvanleenen/Octopus/pkg/program"
	"github.com/jortvanleenen/Octopus/pkg/smt"
)

// Options tunes one equivalence check.
type Options struct {
	// EnableLeaps consumes as many stream bits per round as both sides can
	// absorb, instead of a single bit.
	EnableLeaps bool
	// FilterAccepting, when set, must be satisfiable whenever both sides
	// accept; otherwise the pair is a counterexample.
	FilterAccepting *constraint.Constraint
	// FilterDisagreeing, when set, absorbs accept/non-accept mismatches it
	// is satisfiable on instead of reporting them.
	FilterDisagreeing *constraint.Constraint
}

// Result is the verdict of a run: a certificate when the parsers are
// equivalent, a counterexample trace when they are not.
type Result struct {
	Equivalent     bool
	Certificate    []*formula.GuardedFormula
	Counterexample *Trace
}

// Engine runs the symbolic bisimulation of two parser programs. It is
// single-threaded and deterministic given a fixed solver configuration.
type Engine struct {
	left  *program.Program
	right *program.Program

	oracle  smt.Oracle
	manager *formula.Manager
	opts    Options
	sides   constraint.Sides

	// initialVars remembers the variable first installed per field, so the
	// store-agreement check can tell written fields from untouched ones.
	initialVars map[formula.HeaderKey]*formula.Var

	logger *zap.Logger
	inst   *metrics.Instrumentation
}

// New builds an engine over the two sides of the product. The left program
// must have been built with left=true and the right one with left=false.
func New(left, right *program.Program, oracle smt.Oracle, opts Options, logger *zap.Logger, inst *metrics.Instrumentation) (*Engine, error) {
	if !left.Left || right.Left {
		return nil, fmt.Errorf("programs are not a left/right pair")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		left:        left,
		right:       right,
		oracle:      oracle,
		manager:     formula.NewManager(),
		opts:        opts,
		sides:       constraint.Sides{OutputLeft: left.OutputName, OutputRight: right.OutputName},
		initialVars: make(map[formula.HeaderKey]*formula.Var),
		logger:      logger,
		inst:        inst,
	}, nil
}

// Run executes the worklist until it empties (equivalent) or a disagreement
// is found. Solver failures abort the run; a partial worklist is not a
// certificate.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	initial, err := e.initialFormula()
	if err != nil {
		return nil, err
	}

	if err := e.oracle.BeginSession(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = e.oracle.EndSession() }()

	var knowledge []*formula.GuardedFormula
	queue := []*formula.GuardedFormula{initial}

	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		e.inst.FormulaExplored()

		relevant := relevantFormulas(knowledge, g.Guard)

		known, err := e.hasNoNewInformation(ctx, g, relevant)
		if err != nil {
			return nil, err
		}
		if known {
			e.logger.Debug("guarded formula carries no new information", zap.Stringer("guard", g.Guard))
			e.inst.FormulaSubsumed()
			continue
		}

		acceptL := g.StateL == program.StateAccept
		acceptR := g.StateR == program.StateAccept

		if acceptL != acceptR {
			report, err := e.disagreementStands(ctx, g)
			if err != nil {
				return nil, err
			}
			if report {
				trace, err := e.buildTrace(ctx, g, g.PF.Root)
				if err != nil {
					return nil, err
				}
				return &Result{Equivalent: false, Counterexample: trace}, nil
			}
			knowledge = append(knowledge, g)
			continue
		}

		if acceptL && acceptR {
			agree, witness, err := e.storesAgree(ctx, g)
			if err != nil {
				return nil, err
			}
			if !agree {
				trace, err := e.buildTrace(ctx, g, witness)
				if err != nil {
					return nil, err
				}
				return &Result{Equivalent: false, Counterexample: trace}, nil
			}
		}

		if program.IsTerminal(g.StateL) && program.IsTerminal(g.StateR) {
			e.logger.Debug("both states terminal", zap.Stringer("guard", g.Guard))
			knowledge = append(knowledge, g)
			continue
		}

		successors, err := e.expand(g)
		if err != nil {
			return nil, err
		}
		queue = append(queue, successors...)
		e.inst.SuccessorsEnqueued(len(successors))
		knowledge = append(knowledge, g)
	}

	return &Result{Equivalent: true, Certificate: knowledge}, nil
}

// initialFormula allocates one fresh variable per declared store field on
// each side and installs them into the root guarded formula.
func (e *Engine) initialFormula() (*formula.GuardedFormula, error) {
	g := formula.InitialGuard()
	for _, p := range []*program.Program{e.left, e.right} {
		fields, err := p.AllFieldPaths()
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			v := e.manager.Fresh(f.Bits)
			g.PF.SetHeaderVar(f.Path, p.Left, v)
			e.initialVars[formula.HeaderKey{Path: f.Path, Left: p.Left}] = v
		}
	}
	return g, nil
}

// relevantFormulas returns the pure formulas already recorded under the same
// guard.
func relevantFormulas(knowledge []*formula.GuardedFormula, guard formula.Guard) []*formula.PureFormula {
	var out []*formula.PureFormula
	for _, seen := range knowledge {
		if seen.Guard == guard {
			out = append(out, seen.PF)
		}
	}
	return out
}

// hasNoNewInformation checks subsumption: g is redundant when its formula
// implies the disjunction of the recorded formulas with the same guard. The
// empty disjunction is false, so an unsatisfiable formula is also dropped
// here.
func (e *Engine) hasNoNewInformation(ctx context.Context, g *formula.GuardedFormula, relevant []*formula.PureFormula) (bool, error) {
	roots := make([]formula.Formula, len(relevant))
	for i, pf := range relevant {
		roots[i] = pf.Root
	}
	return e.oracle.IsValid(ctx, formula.Implies(g.PF.Root, formula.Disj(roots...)))
}

// disagreementStands decides whether an accept/non-accept mismatch is
// reported. Without a disagreeing filter every mismatch stands; with one,
// the mismatch is absorbed when the filter is satisfiable on the formula.
func (e *Engine) disagreementStands(ctx context.Context, g *formula.GuardedFormula) (bool, error) {
	if e.opts.FilterDisagreeing == nil {
		return true, nil
	}
	holds, err := e.filterSatisfiable(ctx, e.opts.FilterDisagreeing, g)
	if err != nil {
		return false, err
	}
	return !holds, nil
}

// storesAgree decides whether an accepting pair's observable stores match.
// With an accepting filter the user's relation replaces the default check;
// without one, every field written on at least one side must coincide with
// its counterpart: the pair is a counterexample when some stream drives the
// two stores apart. The returned witness formula is satisfied exactly by the
// distinguishing streams.
func (e *Engine) storesAgree(ctx context.Context, g *formula.GuardedFormula) (bool, formula.Formula, error) {
	if e.opts.FilterAccepting != nil {
		holds, err := e.filterSatisfiable(ctx, e.opts.FilterAccepting, g)
		return holds, g.PF.Root, err
	}

	var disagreements []formula.Formula
	leftPrefix := e.left.OutputName + "."
	rightPrefix := e.right.OutputName + "."
	for _, key := range g.PF.HeaderKeys() {
		if !key.Left {
			continue
		}
		rel := strings.TrimPrefix(key.Path, leftPrefix)
		lVar := g.PF.HeaderVar(key.Path, true)
		rVar := g.PF.HeaderVar(rightPrefix+rel, false)
		if rVar == nil {
			continue
		}
		lTouched := lVar != e.initialVars[formula.HeaderKey{Path: key.Path, Left: true}]
		rTouched := rVar != e.initialVars[formula.HeaderKey{Path: rightPrefix + rel, Left: false}]
		if !lTouched && !rTouched {
			continue
		}
		// Fields the two stores shape differently are not comparable; only
		// shared, equal-width fields constitute observable agreement.
		if lVar.Bits != rVar.Bits {
			e.logger.Debug("skipping store field with differing widths", zap.String("field", rel))
			continue
		}
		disagreements = append(disagreements, &formula.Not{Sub: &formula.Equals{Left: lVar, Right: rVar}})
	}
	if len(disagreements) == 0 {
		return true, nil, nil
	}
	witness := formula.Conj(g.PF.Root, formula.Disj(disagreements...))
	diverges, err := e.oracle.IsSat(ctx, witness)
	if err != nil {
		return false, nil, err
	}
	return !diverges, witness, nil
}

// filterSatisfiable instantiates a relation against g's formula and checks
// satisfiability together with it. An omitted relation (every comparison
// unresolved) counts as satisfied.
func (e *Engine) filterSatisfiable(ctx context.Context, c *constraint.Constraint, g *formula.GuardedFormula) (bool, error) {
	f, ok, err := c.Formula(g.PF, e.sides)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return e.oracle.IsSat(ctx, formula.Conj(f, g.PF.Root))
}

// sideView bundles the per-side data of one expansion round.
type sideView struct {
	state    *program.State
	terminal bool
	bufLen   int
	gap      int
}

func (e *Engine) side(p *program.Program, stateName string, bufLen int) sideView {
	st := p.State(stateName)
	if st == nil {
		return sideView{terminal: true}
	}
	return sideView{state: st, bufLen: bufLen, gap: st.Ops.Size - bufLen}
}

// expand performs one round: leap computation, buffer extension, strongest
// postconditions, symbolic transitions, and the Cartesian successor build.
func (e *Engine) expand(g *formula.GuardedFormula) ([]*formula.GuardedFormula, error) {
	l := e.side(e.left, g.StateL, g.BufLenL)
	r := e.side(e.right, g.StateR, g.BufLenR)

	leap := e.leap(l, r)
	e.inst.ObserveLeap(leap)

	pf := g.PF.Clone()
	if leap > 0 {
		newBits := e.manager.Fresh(leap)
		pf.SetLastFresh(newBits)
		for _, side := range []struct {
			view sideView
			left bool
		}{{l, true}, {r, false}} {
			if side.view.terminal {
				continue
			}
			e.extendBuffer(pf, side.left, newBits)
		}
	}

	transitionL := !l.terminal && l.bufLen+leap == l.state.Ops.Size
	transitionR := !r.terminal && r.bufLen+leap == r.state.Ops.Size
	e.logger.Debug("expansion round",
		zap.Stringer("guard", g.Guard),
		zap.Int("leap", leap),
		zap.Bool("transition_left", transitionL),
		zap.Bool("transition_right", transitionR))

	if transitionL {
		if err := l.state.Ops.SP(e.manager, pf); err != nil {
			return nil, err
		}
	}
	if transitionR {
		if err := r.state.Ops.SP(e.manager, pf); err != nil {
			return nil, err
		}
	}

	leftCases, err := e.cases(l, transitionL, g.StateL, pf)
	if err != nil {
		return nil, err
	}
	rightCases, err := e.cases(r, transitionR, g.StateR, pf)
	if err != nil {
		return nil, err
	}

	nextBufL := g.BufLenL + leap
	if transitionL {
		nextBufL = 0
	}
	nextBufR := g.BufLenR + leap
	if transitionR {
		nextBufR = 0
	}

	successors := make([]*formula.GuardedFormula, 0, len(leftCases)*len(rightCases))
	for _, cl := range leftCases {
		for _, cr := range rightCases {
			succ := pf.Clone()
			succ.Root = formula.Conj(pf.Root, cl.Guard, cr.Guard)
			successors = append(successors, &formula.GuardedFormula{
				Guard: formula.Guard{
					StateL:  cl.Target,
					StateR:  cr.Target,
					BufLenL: nextBufL,
					BufLenR: nextBufR,
				},
				PF:   succ,
				Prev: g,
			})
		}
	}
	return successors, nil
}

// leap picks the stream bits consumed this round. A side whose operation
// block is already fully buffered fires without new bits, so such rounds run
// with a zero leap; otherwise the leap is the smallest remaining gap, or a
// single bit when leaps are disabled.
func (e *Engine) leap(l, r sideView) int {
	if (!l.terminal && l.gap == 0) || (!r.terminal && r.gap == 0) {
		return 0
	}
	if !e.opts.EnableLeaps {
		return 1
	}
	switch {
	case !l.terminal && !r.terminal:
		return min(l.gap, r.gap)
	case !l.terminal:
		return l.gap
	default:
		return r.gap
	}
}

// extendBuffer appends the round's fresh stream bits to one side's buffer
// variable, allocating a wider variable and recording the concatenation.
func (e *Engine) extendBuffer(pf *formula.PureFormula, left bool, newBits *formula.Var) {
	old := pf.BufferVar(left)
	if old == nil {
		pf.SetBufferVar(left, newBits)
		return
	}
	wider := e.manager.Fresh(old.Bits + newBits.Bits)
	pf.Root = formula.Conj(pf.Root, &formula.Equals{
		Left:  wider,
		Right: &formula.Concat{Left: old, Right: newBits},
	})
	pf.SetBufferVar(left, wider)
}

// cases enumerates one side's transitions: the symbolic transition of its
// block when it fires this round, or staying put.
func (e *Engine) cases(v sideView, fires bool, current string, pf *formula.PureFormula) ([]program.SymbolicCase, error) {
	if !fires {
		return []program.SymbolicCase{{Guard: formula.True{}, Target: current}}, nil
	}
	return v.state.Trans.SymbolicTransition(pf)
}
