package formula

import "strconv"

// Manager is the monotonic source of fresh variable names for one checker
// run. It is not safe for concurrent use; the engine is single-threaded by
// design.
type Manager struct {
	next int
}

// NewManager returns a manager whose first variable is named "v0".
func NewManager() *Manager {
	return &Manager{}
}

// FreshName returns a name never handed out before by this manager.
func (m *Manager) FreshName() string {
	name := "v" + strconv.Itoa(m.next)
	m.next++
	return name
}

// Fresh allocates a fresh variable of the given positive width.
func (m *Manager) Fresh(bits int) *Var {
	if bits <= 0 {
		panic("formula: fresh variable width must be positive")
	}
	return &Var{Name: m.FreshName(), Bits: bits}
}
