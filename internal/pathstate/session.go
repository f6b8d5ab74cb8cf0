// Package pathstate holds one SMT solver session per analyzed function,
// plus a push/pop stack of scopes tagged by the basic block the
// traversal is currently inside.
package pathstate

import (
	"fmt"

	"github.com/ajalab/go-z3/z3"
)

// CheckResult mirrors the solver's three-valued answer.
type CheckResult int

const (
	Unsat CheckResult = iota
	Sat
	Unknown
)

func (r CheckResult) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// scope is one push/pop level, tagged with the basic block label entered
// to reach it, so a failing path can be displayed.
type scope struct {
	tag string
}

// Session is the solver plus its scope stack for one function's analysis.
// Create a fresh one (via NewSession) at the start of every function.
type Session struct {
	ctx    *z3.Context
	solver *z3.Solver
	scopes []scope
}

// NewSession creates a fresh solver session. Call once per analyzed
// function; do not reuse across functions; the symbol table and
// debug-name map the session's expressions reference are also
// function-scoped.
func NewSession() *Session {
	var cfg z3.Config
	ctx := z3.NewContext(&cfg)
	return &Session{
		ctx:    ctx,
		solver: ctx.NewSolver(),
	}
}

// Context returns the underlying z3 context, for building sorts and
// constants in internal/symtab and internal/exprbuilder.
func (s *Session) Context() *z3.Context { return s.ctx }

// BVSort returns the bit-vector sort of the given width. Only widths 1
// and 32 are legal in this system; callers enforce that, not this
// package.
func (s *Session) BVSort(width int) *z3.Sort {
	return s.ctx.BVSort(width)
}

// BVVal returns a bit-vector literal of the given width.
func (s *Session) BVVal(val int64, width int) z3.BV {
	e := s.ctx.FromInt(val, s.BVSort(width))
	return e.(z3.BV)
}

// BVConst returns a named bit-vector constant, i.e. the expression form of
// a symbol table entry.
func (s *Session) BVConst(name string, width int) z3.BV {
	return s.ctx.BVConst(name, width)
}

// Push opens a new scope tagged with the basic block being entered.
func (s *Session) Push(tag string) {
	s.solver.Push()
	s.scopes = append(s.scopes, scope{tag: tag})
}

// Pop discards the assertions added since the matching Push. Popping an
// empty stack is a programming error in the traverser (every Push must
// have exactly one matching Pop on every exit path) and panics rather
// than silently desynchronizing the solver's scope count from ours.
func (s *Session) Pop() {
	if len(s.scopes) == 0 {
		panic("pathstate: Pop called with no matching Push")
	}
	s.solver.Pop(1)
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// Depth reports the current scope-stack depth, used by tests to confirm
// push/pop balance.
func (s *Session) Depth() int { return len(s.scopes) }

// Path returns the tags of every currently-open scope, innermost last,
// for display when an obligation fails mid-exploration.
func (s *Session) Path() []string {
	tags := make([]string, len(s.scopes))
	for i, sc := range s.scopes {
		tags[i] = sc.tag
	}
	return tags
}

// Assert adds a boolean constraint to the current (innermost) scope.
func (s *Session) Assert(cond z3.Bool) {
	s.solver.Assert(cond)
}

// AssertEq asserts that two bit-vectors of matching width are equal; the
// primary way instruction results enter the solver.
func (s *Session) AssertEq(a, b z3.BV) {
	s.solver.Assert(a.Eq(b))
}

// Check invokes the solver and translates its three-valued answer.
func (s *Session) Check() CheckResult {
	switch s.solver.Check() {
	case z3.Sat:
		return Sat
	case z3.Unsat:
		return Unsat
	default:
		return Unknown
	}
}

// Model returns the satisfying assignment from the most recent Sat Check.
// Calling it after any other result is a programming error.
func (s *Session) Model() *Model {
	return &Model{m: s.solver.Model(), ctx: s.ctx}
}

// Model wraps a z3 model, exposing only the evaluation operation the
// counterexample renderer needs: given an expression, produce its
// concrete integer value if the model binds it.
type Model struct {
	m   *z3.Model
	ctx *z3.Context
}

// Context returns the context the model's expressions were built in, so
// internal/counterexample can construct the same symbol constants the
// model was solved against.
func (m *Model) Context() *z3.Context { return m.ctx }

// EvalInt evaluates e against the model without completion (i.e. without
// inventing a value for unconstrained symbols): bound reports whether the
// model actually assigns e a value.
func (m *Model) EvalInt(e z3.BV) (val int64, bound bool) {
	result, ok := m.m.Eval(e, false)
	if !ok {
		return 0, false
	}
	bv, ok := result.(z3.BV)
	if !ok {
		return 0, false
	}
	v, isLiteral, fits := bv.AsInt64()
	if !isLiteral || !fits {
		return 0, false
	}
	return v, true
}

func (m *Model) String() string {
	return fmt.Sprintf("%v", m.m)
}
