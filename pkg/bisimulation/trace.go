package bisimulation

import (
	"context"
	"fmt"
	"strings"

	"github.com/jortvanleenen/Octopus/pkg/formula"
)

// Step is one expansion round of a counterexample trace.
type Step struct {
	StateL, StateR     string
	BufLenL, BufLenR   int
	BufBitsL, BufBitsR int
}

// Stream is the concrete input on which the two parsers disagree.
type Stream struct {
	Bits   string
	Length int
}

// Trace is a counterexample: the distinguishing stream, the step-by-step
// path of the product, and the header fields each side had resolved at the
// point of disagreement.
type Trace struct {
	Stream  *Stream
	Steps   []Step
	FieldsL []string
	FieldsR []string
}

// buildTrace walks the predecessor chain of g, extracts a model of the
// witness formula from the solver, and assembles the distinguishing stream
// from the fresh bits of every round.
func (e *Engine) buildTrace(ctx context.Context, g *formula.GuardedFormula, witness formula.Formula) (*Trace, error) {
	var chain []*formula.GuardedFormula
	for cur := g; cur != nil; cur = cur.Prev {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	trace := &Trace{}
	// The stream is the concatenation of the fresh bits of every round, in
	// arrival order; the buffer variables themselves are usually consumed by
	// the time a formula is recorded.
	var streamVars []*formula.Var
	for _, step := range chain {
		if v := step.PF.LastFresh(); v != nil {
			if len(streamVars) == 0 || streamVars[len(streamVars)-1] != v {
				streamVars = append(streamVars, v)
			}
		}
		bufL := step.PF.BufferVar(true)
		bufR := step.PF.BufferVar(false)
		trace.Steps = append(trace.Steps, Step{
			StateL:   step.StateL,
			StateR:   step.StateR,
			BufLenL:  step.BufLenL,
			BufLenR:  step.BufLenR,
			BufBitsL: widthOf(bufL),
			BufBitsR: widthOf(bufR),
		})
	}

	for _, key := range g.PF.HeaderKeys() {
		if key.Left {
			trace.FieldsL = append(trace.FieldsL, key.Path)
		} else {
			trace.FieldsR = append(trace.FieldsR, key.Path)
		}
	}

	if len(streamVars) == 0 {
		return trace, nil
	}

	// A surviving formula is satisfiable: an unsatisfiable one would have
	// been subsumed by the empty disjunction.
	sat, err := e.oracle.IsSat(ctx, witness)
	if err != nil {
		return nil, err
	}
	if !sat {
		return nil, fmt.Errorf("disagreeing formula is unsatisfiable, cannot extract a stream")
	}
	model, err := e.oracle.Model(ctx, streamVars)
	if err != nil {
		return nil, err
	}
	var bits strings.Builder
	length := 0
	for _, v := range streamVars {
		value, ok := model[v.Name]
		if !ok {
			return nil, fmt.Errorf("model misses stream variable %s", v.Name)
		}
		fmt.Fprintf(&bits, "%0*b", v.Bits, value)
		length += v.Bits
	}
	trace.Stream = &Stream{Bits: bits.String(), Length: length}
	return trace, nil
}

func widthOf(v *formula.Var) int {
	if v == nil {
		return 0
	}
	return v.Bits
}

func (t *Trace) String() string {
	var b strings.Builder
	if t.Stream != nil {
		fmt.Fprintf(&b, "A stream for which both parsers differ is:\n0b%s\nLength: %d bits\n\n", t.Stream.Bits, t.Stream.Length)
	} else {
		b.WriteString("A stream for which both parsers differ is:\nN/A (no buffered input)\n\n")
	}
	for i, s := range t.Steps {
		fmt.Fprintf(&b, "Step %d (left, right):\n", i)
		b.WriteString("  At start:\n")
		fmt.Fprintf(&b, "  - State:   %s, %s\n", s.StateL, s.StateR)
		fmt.Fprintf(&b, "  - Buffer:  %d, %d\n", s.BufLenL, s.BufLenR)
		b.WriteString("  After operation(s):\n")
		fmt.Fprintf(&b, "  - Buffer:  %d, %d\n", s.BufBitsL, s.BufBitsR)
		b.WriteString("\n")
	}
	if len(t.FieldsL) > 0 || len(t.FieldsR) > 0 {
		fmt.Fprintf(&b, "Resolved fields (left):  %s\n", strings.Join(t.FieldsL, ", "))
		fmt.Fprintf(&b, "Resolved fields (right): %s\n", strings.Join(t.FieldsR, ", "))
	}
	return b.String()
}

// CertificateString renders the bisimulation certificate: every guarded
// formula recorded as knowledge, in exploration order.
func (r *Result) CertificateString() string {
	var b strings.Builder
	for _, g := range r.Certificate {
		b.WriteString(g.String())
		b.WriteString("\n")
	}
	return b.String()
}
