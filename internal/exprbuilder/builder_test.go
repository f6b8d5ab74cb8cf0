package exprbuilder

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z0/internal/diag"
	"z0/internal/pathstate"
	"z0/internal/symtab"
)

func newFixture() (*pathstate.Session, *symtab.Table) {
	return pathstate.NewSession(), symtab.New()
}

func expectDiag(t *testing.T, kind diag.Kind, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		d, ok := r.(diag.Diagnostic)
		require.True(t, ok, "expected a diag.Diagnostic panic, got %T", r)
		assert.Equal(t, kind, d.Kind)
	}()
	fn()
}

func TestTranslateConstant(t *testing.T) {
	sess, tab := newFixture()
	c := constant.NewInt(types.I32, 7)

	bv := Translate("f", sess, tab, c)
	val, isLiteral, ok := bv.AsInt64()
	require.True(t, isLiteral)
	require.True(t, ok)
	assert.EqualValues(t, 7, val)
}

func TestTranslateConstantRejectsBadWidth(t *testing.T) {
	sess, tab := newFixture()
	c := constant.NewInt(types.I16, 7)

	expectDiag(t, diag.KindUnsupportedWidth, func() {
		Translate("f", sess, tab, c)
	})
}

func TestDefineAddAssertedEqualToSymbol(t *testing.T) {
	sess, tab := newFixture()
	x := ir.NewParam("x", types.I32)
	y := ir.NewParam("y", types.I32)
	add := &ir.InstAdd{X: x, Y: y}
	add.Typ = types.I32

	sym := tab.ConstFor(sess.Context(), add, 32)
	expr := Define("f", sess, tab, add)
	sess.AssertEq(sym, expr)

	sess.Push("b")
	sess.Assert(tab.ConstFor(sess.Context(), x, 32).Eq(sess.BVVal(2, 32)))
	sess.Assert(tab.ConstFor(sess.Context(), y, 32).Eq(sess.BVVal(3, 32)))
	sess.Assert(sym.Eq(sess.BVVal(6, 32)))
	require.Equal(t, pathstate.Unsat, sess.Check())
	sess.Pop()

	sess.Push("c")
	sess.Assert(tab.ConstFor(sess.Context(), x, 32).Eq(sess.BVVal(2, 32)))
	sess.Assert(tab.ConstFor(sess.Context(), y, 32).Eq(sess.BVVal(3, 32)))
	sess.Assert(sym.Eq(sess.BVVal(5, 32)))
	require.Equal(t, pathstate.Sat, sess.Check())
	sess.Pop()
}

func TestDefineRejectsUnsignedDivision(t *testing.T) {
	sess, tab := newFixture()
	x := ir.NewParam("x", types.I32)
	y := ir.NewParam("y", types.I32)
	udiv := &ir.InstUDiv{X: x, Y: y}
	udiv.Typ = types.I32

	expectDiag(t, diag.KindUnsignedArithmeticUnsupported, func() {
		Define("f", sess, tab, udiv)
	})
}

func TestDefineCmpProducesOneBitResult(t *testing.T) {
	sess, tab := newFixture()
	x := ir.NewParam("x", types.I32)
	y := ir.NewParam("y", types.I32)
	cmp := &ir.InstICmp{Pred: enum.IPredSLT, X: x, Y: y}
	cmp.Typ = types.I1

	sym := tab.ConstFor(sess.Context(), cmp, 1)
	expr := Define("f", sess, tab, cmp)
	sess.AssertEq(sym, expr)

	sess.Push("b")
	sess.Assert(tab.ConstFor(sess.Context(), x, 32).Eq(sess.BVVal(1, 32)))
	sess.Assert(tab.ConstFor(sess.Context(), y, 32).Eq(sess.BVVal(2, 32)))
	sess.Assert(sym.Eq(sess.BVVal(0, 1)))
	require.Equal(t, pathstate.Unsat, sess.Check())
	sess.Pop()
}

func TestDefineRejectsUnsignedComparison(t *testing.T) {
	sess, tab := newFixture()
	x := ir.NewParam("x", types.I32)
	y := ir.NewParam("y", types.I32)
	cmp := &ir.InstICmp{Pred: enum.IPredULT, X: x, Y: y}
	cmp.Typ = types.I1

	expectDiag(t, diag.KindUnsignedArithmeticUnsupported, func() {
		Define("f", sess, tab, cmp)
	})
}

func TestDefineTruncExtractsLowBits(t *testing.T) {
	sess, tab := newFixture()
	x := ir.NewParam("x", types.I32)
	trunc := &ir.InstTrunc{From: x, To: types.I1}

	sym := tab.ConstFor(sess.Context(), trunc, 1)
	expr := Define("f", sess, tab, trunc)
	sess.AssertEq(sym, expr)

	sess.Push("b")
	sess.Assert(tab.ConstFor(sess.Context(), x, 32).Eq(sess.BVVal(2, 32))) // ...10, low bit 0
	sess.Assert(sym.Eq(sess.BVVal(1, 1)))
	require.Equal(t, pathstate.Unsat, sess.Check())
	sess.Pop()
}
