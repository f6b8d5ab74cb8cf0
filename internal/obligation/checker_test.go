package obligation

import (
	"testing"

	"github.com/ajalab/go-z3/z3"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z0/internal/debugmap"
	"z0/internal/diag"
	"z0/internal/pathstate"
	"z0/internal/symtab"
)

// boolAsBV mirrors exprbuilder's boolToBV: tests build conditions with
// the same Bool comparison operators exprbuilder would, then need the
// 1-bit-bit-vector convention obligation's public API takes.
func boolAsBV(sess *pathstate.Session, b z3.Bool) z3.BV {
	one := sess.BVVal(1, 1)
	zero := sess.BVVal(0, 1)
	return sess.Context().Ite(b, one, zero).(z3.BV)
}

func TestCheckAssertionProvedPopsAndAssumes(t *testing.T) {
	sess := pathstate.NewSession()
	tab := symtab.New()
	dbg := debugmap.New()

	x := sess.BVConst("x", 32)
	sess.Push("entry")
	sess.Assert(x.SGT(sess.BVVal(0, 32)))

	cond := x.SGT(sess.BVVal(-1, 32)) // x > -1, provable given x > 0
	condBV := boolAsBV(sess, cond)

	depthBefore := sess.Depth()
	w := CheckAssertion("f", sess, tab, dbg, "_c0v_", condBV)
	assert.Nil(t, w)
	assert.Equal(t, depthBefore, sess.Depth())

	// cond is now assumed true in the outer scope: asserting its
	// negation should be unsat.
	sess.Push("check")
	sess.Assert(condBV.Eq(sess.BVVal(0, 1)))
	assert.Equal(t, pathstate.Unsat, sess.Check())
	sess.Pop()
	sess.Pop()
}

func TestCheckAssertionFalsifiablePanics(t *testing.T) {
	sess := pathstate.NewSession()
	tab := symtab.New()
	dbg := debugmap.New()

	x := sess.BVConst("x", 32)
	sess.Push("entry")

	cond := x.SGT(sess.BVVal(0, 32)) // not provable: x is unconstrained
	condBV := boolAsBV(sess, cond)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		d, ok := r.(diag.Diagnostic)
		require.True(t, ok)
		assert.Equal(t, diag.KindAssertionViolated, d.Kind)
		sess.Pop()
	}()
	CheckAssertion("f", sess, tab, dbg, "_c0v_", condBV)
}

func TestCheckPreconditionContradictionFails(t *testing.T) {
	sess := pathstate.NewSession()
	x := sess.BVConst("x", 32)
	sess.Push("entry")
	sess.Assert(x.Eq(sess.BVVal(0, 32)))

	cond := boolAsBV(sess, x.Eq(sess.BVVal(1, 32)))

	defer func() {
		r := recover()
		require.NotNil(t, r)
		d, ok := r.(diag.Diagnostic)
		require.True(t, ok)
		assert.Equal(t, diag.KindPreconditionUnsatisfiable, d.Kind)
		sess.Pop()
	}()
	CheckPrecondition("f", sess, cond)
}

func TestCheckDivisionSafetyWarnsOnPossibleZero(t *testing.T) {
	sess := pathstate.NewSession()
	tab := symtab.New()
	dbg := debugmap.New()

	a := sess.BVConst("a", 32)
	bParam := ir.NewParam("b", types.I32)
	b := tab.ConstFor(sess.Context(), bParam, 32)
	dbg.Update("_c0v_b", bParam) // the counterexample lists Debug-Name Map entries
	sess.Push("entry")

	w := CheckDivisionSafety("f", sess, tab, dbg, "_c0v_", a, b)
	require.NotNil(t, w)
	assert.Equal(t, diag.KindDivisionUnsafe, w.Kind)
	assert.NotEmpty(t, w.Counterexample)

	// b == 0 should now be infeasible in the outer scope.
	sess.Push("check")
	sess.Assert(b.Eq(sess.BVVal(0, 32)))
	assert.Equal(t, pathstate.Unsat, sess.Check())
	sess.Pop()
	sess.Pop()
}

func TestCheckDivisionSafetySafeWhenDenominatorNonzeroConstant(t *testing.T) {
	sess := pathstate.NewSession()
	tab := symtab.New()
	dbg := debugmap.New()

	a := sess.BVConst("a", 32)
	b := sess.BVVal(2, 32)
	sess.Push("entry")

	w := CheckDivisionSafety("f", sess, tab, dbg, "_c0v_", a, b)
	assert.Nil(t, w)
	sess.Pop()
}
