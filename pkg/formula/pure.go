package formula

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tiendc/go-deepcopy"
)

// HeaderKey identifies a header-field variable: the dotted store path plus
// the side of the product it belongs to.
type HeaderKey struct {
	Path string
	Left bool
}

func (k HeaderKey) String() string {
	side := "R"
	if k.Left {
		side = "L"
	}
	return fmt.Sprintf("%s<%s>", k.Path, side)
}

// PureFormula is a conjunctive bit-vector formula together with the
// per-side header-field and input-buffer variables that interpret it.
//
// The free variables of Root are treated as existentially quantified by the
// solver's satisfiability queries; no explicit quantifier is ever emitted.
type PureFormula struct {
	// Root is the conjunction accumulated so far.
	Root Formula

	headerVars map[HeaderKey]*Var
	bufVars    map[bool]*Var
	lastFresh  *Var
}

// NewPureFormula returns the trivially true pure formula with no variables
// installed.
func NewPureFormula() *PureFormula {
	return &PureFormula{
		Root:       True{},
		headerVars: make(map[HeaderKey]*Var),
		bufVars:    make(map[bool]*Var),
	}
}

// HeaderVar returns the variable currently interpreting the given header
// field on the given side, or nil.
func (pf *PureFormula) HeaderVar(path string, left bool) *Var {
	return pf.headerVars[HeaderKey{Path: path, Left: left}]
}

// SetHeaderVar installs v as the current interpretation of the given header
// field on the given side.
func (pf *PureFormula) SetHeaderVar(path string, left bool, v *Var) {
	pf.headerVars[HeaderKey{Path: path, Left: left}] = v
}

// BufferVar returns the undigested-input variable of the given side, or nil
// when that side's buffer is empty.
func (pf *PureFormula) BufferVar(left bool) *Var {
	return pf.bufVars[left]
}

// SetBufferVar installs v as the buffer variable of the given side. A nil v
// records that the buffer has been consumed entirely.
func (pf *PureFormula) SetBufferVar(left bool, v *Var) {
	if v == nil {
		delete(pf.bufVars, left)
		return
	}
	pf.bufVars[left] = v
}

// LastFresh returns the stream variable allocated by the most recent buffer
// extension, or nil for the initial formula.
func (pf *PureFormula) LastFresh() *Var { return pf.lastFresh }

// SetLastFresh records the stream variable of the current round.
func (pf *PureFormula) SetLastFresh(v *Var) { pf.lastFresh = v }

// HeaderKeys returns the installed header-field keys in deterministic order.
func (pf *PureFormula) HeaderKeys() []HeaderKey {
	keys := make([]HeaderKey, 0, len(pf.headerVars))
	for k := range pf.headerVars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Left != keys[j].Left {
			return keys[i].Left
		}
		return keys[i].Path < keys[j].Path
	})
	return keys
}

// Substitute rewrites Root with the given variable-to-expression mapping.
// The header and buffer maps are left untouched: substitution is used to
// rewrite knowledge about variables, not to rename them.
func (pf *PureFormula) Substitute(mapping map[string]Expr) {
	pf.Root = SubstituteFormula(pf.Root, mapping)
}

// Vars returns every variable reachable from the formula: the free variables
// of Root plus the installed header and buffer variables.
func (pf *PureFormula) Vars() map[string]*Var {
	vars := make(map[string]*Var)
	FormulaVars(pf.Root, vars)
	for _, v := range pf.headerVars {
		vars[v.Name] = v
	}
	for _, v := range pf.bufVars {
		vars[v.Name] = v
	}
	return vars
}

// Clone returns a pure formula that shares no mutable state with pf. The
// formula tree itself is shared because nodes are immutable; the variable
// maps are deep-copied.
func (pf *PureFormula) Clone() *PureFormula {
	out := &PureFormula{
		Root:      pf.Root,
		lastFresh: pf.lastFresh,
	}
	if err := deepcopy.Copy(&out.headerVars, pf.headerVars); err != nil {
		panic(fmt.Sprintf("formula: clone header vars: %v", err))
	}
	if err := deepcopy.Copy(&out.bufVars, pf.bufVars); err != nil {
		panic(fmt.Sprintf("formula: clone buffer vars: %v", err))
	}
	if out.headerVars == nil {
		out.headerVars = make(map[HeaderKey]*Var)
	}
	if out.bufVars == nil {
		out.bufVars = make(map[bool]*Var)
	}
	return out
}

func (pf *PureFormula) String() string {
	vars := pf.Vars()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	decls := make([]string, len(names))
	for i, name := range names {
		decls[i] = vars[name].String()
	}
	return fmt.Sprintf("E %s. %s", strings.Join(decls, ", "), pf.Root)
}
