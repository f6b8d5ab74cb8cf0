// Package obligation issues the solver queries the traverser needs
// against contract calls and unsafe arithmetic: assertion, precondition,
// and division safety. Fatal outcomes panic with a diag.Diagnostic,
// recovered at the driver's per-function boundary; warnings are returned
// so the caller can hand them to a diag.Reporter without this package
// needing to know about output streams.
package obligation

import (
	"github.com/ajalab/go-z3/z3"

	"z0/internal/counterexample"
	"z0/internal/debugmap"
	"z0/internal/diag"
	"z0/internal/pathstate"
	"z0/internal/symtab"
)

func fail(fn string, kind diag.Kind, format string, args ...any) {
	panic(diag.Fatal(fn, kind, format, args...))
}

func trueBV(sess *pathstate.Session) z3.BV  { return sess.BVVal(1, 1) }
func falseBV(sess *pathstate.Session) z3.BV { return sess.BVVal(0, 1) }

// renderFailure builds the counterexample for the current model and
// attaches it to a Fatal diagnostic of kind.
func renderFailure(fn string, sess *pathstate.Session, tab *symtab.Table, dbg *debugmap.Map, markerPrefix string, kind diag.Kind, format string, args ...any) diag.Diagnostic {
	lines := counterexample.Render(sess.Model(), tab, dbg, markerPrefix)
	return diag.Fatal(fn, kind, format, args...).WithCounterexample(lines)
}

// CheckAssertion is used for assert, ensures, and loop_invariant calls
// alike — all three are asserted to be infeasible-when-false, and proved
// by driving the negation to unsat.
//
// On return, cond has been assumed true in the caller's current (outer)
// scope, whether the check succeeded, failed with a warning, or (in the
// sat case) this function already panicked and there is no "on return".
func CheckAssertion(fn string, sess *pathstate.Session, tab *symtab.Table, dbg *debugmap.Map, markerPrefix string, cond z3.BV) *diag.Diagnostic {
	sess.Push("assert-negation")
	sess.Assert(cond.Eq(trueBV(sess)).Not())
	result := sess.Check()

	switch result {
	case pathstate.Unsat:
		sess.Pop()
		sess.Assert(cond.Eq(trueBV(sess)))
		return nil

	case pathstate.Sat:
		d := renderFailure(fn, sess, tab, dbg, markerPrefix, diag.KindAssertionViolated,
			"assertion is falsifiable")
		panic(d)

	default: // Unknown
		sess.Pop()
		sess.Assert(cond.Eq(trueBV(sess)))
		warning := diag.Warn(fn, diag.KindVerificationUnknown, "solver returned unknown while checking an assertion")
		return &warning
	}
}

// CheckPrecondition treats a requires() condition as an assumption, not
// a goal — it is added directly, then checked for contradiction with
// what is already known.
func CheckPrecondition(fn string, sess *pathstate.Session, cond z3.BV) *diag.Diagnostic {
	sess.Assert(cond.Eq(trueBV(sess)))
	switch sess.Check() {
	case pathstate.Unsat:
		fail(fn, diag.KindPreconditionUnsatisfiable, "precondition contradicts the facts accumulated so far")
		return nil
	default:
		return nil
	}
}

// CheckDivisionSafety checks a division or modulo where a is the
// numerator and b the denominator, both 32-bit signed. Returns a non-nil
// warning when the division may fault; never aborts the function — it
// emits a diagnostic and continues. After this call the denominator is
// assumed safe in the caller's outer scope, regardless of outcome.
func CheckDivisionSafety(fn string, sess *pathstate.Session, tab *symtab.Table, dbg *debugmap.Map, markerPrefix string, a, b z3.BV) *diag.Diagnostic {
	zero32 := sess.BVVal(0, 32)
	intMin := sess.BVVal(-1<<31, 32)
	negOne := sess.BVVal(-1, 32)

	faults := b.Eq(zero32).Or(a.Eq(intMin).And(b.Eq(negOne)))

	sess.Push("div-safety")
	sess.Assert(faults)
	result := sess.Check()

	var warning *diag.Diagnostic
	switch result {
	case pathstate.Sat:
		lines := counterexample.Render(sess.Model(), tab, dbg, markerPrefix)
		d := diag.Warn(fn, diag.KindDivisionUnsafe,
			"division may divide by zero or overflow (INT32_MIN / -1)").WithCounterexample(lines)
		warning = &d
	case pathstate.Unknown:
		w := diag.Warn(fn, diag.KindVerificationUnknown, "solver returned unknown while checking division safety")
		warning = &w
	}
	sess.Pop()
	sess.Assert(faults.Not())
	return warning
}
