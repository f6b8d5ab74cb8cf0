// Package symtab maintains a bijection between IR values and solver
// symbols, named by a monotonically increasing counter scoped to the
// current function.
package symtab

import (
	"fmt"

	"github.com/ajalab/go-z3/z3"
	"github.com/llir/llvm/ir/value"
)

// Symbol is an opaque solver name, created on first demand for an IR
// value and cached thereafter.
type Symbol struct {
	id   int
	name string
}

func (s Symbol) String() string { return s.name }

// Table is a bijection between IR values and Symbols: two distinct IR
// values receive distinct symbols, and identical IR values receive
// identical symbols. A Table is scoped to exactly one function; create a
// fresh one (via New) at function entry.
type Table struct {
	counter int
	symbols map[value.Value]Symbol
}

// New creates an empty symbol table for a single function's analysis.
func New() *Table {
	return &Table{symbols: make(map[value.Value]Symbol)}
}

// SymbolFor is idempotent: the first call for a given IR value creates
// and caches a fresh symbol; every subsequent call for the same value
// returns the same symbol.
func (t *Table) SymbolFor(v value.Value) Symbol {
	if sym, ok := t.symbols[v]; ok {
		return sym
	}
	t.counter++
	sym := Symbol{id: t.counter, name: fmt.Sprintf("v%d", t.counter)}
	t.symbols[v] = sym
	return sym
}

// Lookup is non-creating: it reports whether v already has a symbol,
// without allocating one.
func (t *Table) Lookup(v value.Value) (Symbol, bool) {
	sym, ok := t.symbols[v]
	return sym, ok
}

// Len reports how many distinct IR values have been assigned symbols;
// used by tests to confirm the table does not grow on repeated lookups
// of the same value.
func (t *Table) Len() int { return len(t.symbols) }

// ConstFor returns the solver constant for v's symbol at the given
// bit-width. The width must match the width v was first registered with;
// exprbuilder is responsible for enforcing that via the IR's own type,
// since the symbol table has no notion of width itself — it exists
// purely to keep naming stable.
func (t *Table) ConstFor(ctx *z3.Context, v value.Value, width int) z3.BV {
	sym := t.SymbolFor(v)
	return ctx.BVConst(sym.name, width)
}
