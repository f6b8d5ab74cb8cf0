// Package debugmap records which source-level variable name currently
// denotes which IR value, built by observing llvm.dbg.value intrinsic
// calls during traversal and consulted only when rendering a
// counterexample.
package debugmap

import "github.com/llir/llvm/ir/value"

// entry pairs a variable name with the value it currently denotes.
type entry struct {
	name string
	val  value.Value
}

// Map is an insertion-ordered association from source variable name to
// current IR value. Insertion order is preserved across Update calls on
// an already-present name, so a counterexample lists variables in the
// order the function first bound them, not alphabetically or by
// last-write.
type Map struct {
	order   []string
	entries map[string]*entry
}

// New returns an empty debug-name map, reset (like everything else) at
// the start of each function's analysis.
func New() *Map {
	return &Map{entries: make(map[string]*entry)}
}

// Update records that name now denotes v. The first Update for a given
// name fixes its position in iteration order; later Updates only change
// the bound value.
func (m *Map) Update(name string, v value.Value) {
	if e, ok := m.entries[name]; ok {
		e.val = v
		return
	}
	e := &entry{name: name, val: v}
	m.entries[name] = e
	m.order = append(m.order, name)
}

// Lookup returns the value currently bound to name, if any.
func (m *Map) Lookup(name string) (value.Value, bool) {
	e, ok := m.entries[name]
	if !ok {
		return nil, false
	}
	return e.val, true
}

// Names returns the bound variable names in first-bound order.
func (m *Map) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len reports how many distinct variable names are currently bound.
func (m *Map) Len() int { return len(m.order) }
