package formula

import "fmt"

// Guard is the "program counter" of the product automaton: the two state
// names plus the number of buffered-but-unparsed bits on each side.
type Guard struct {
	StateL  string
	StateR  string
	BufLenL int
	BufLenR int
}

func (g Guard) String() string {
	return fmt.Sprintf("(%s, %s, %d, %d)", g.StateL, g.StateR, g.BufLenL, g.BufLenR)
}

// GuardedFormula pairs a guard with the pure formula describing the stores
// and buffers reachable under it. Prev points at the formula this one was
// expanded from; the chain is walked to reconstruct counterexample traces.
type GuardedFormula struct {
	Guard
	PF   *PureFormula
	Prev *GuardedFormula
}

// InitialGuard returns the root guarded formula. In P4 the initial state is
// always called "start".
func InitialGuard() *GuardedFormula {
	return &GuardedFormula{
		Guard: Guard{StateL: "start", StateR: "start"},
		PF:    NewPureFormula(),
	}
}

func (g *GuardedFormula) String() string {
	return fmt.Sprintf("%s |> %s", g.Guard, g.PF)
}
