package driver

import (
	"bytes"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z0/internal/config"
	"z0/internal/diag"
)

func newFixtureReporter() (*diag.Reporter, *bytes.Buffer, *bytes.Buffer) {
	var results, errs bytes.Buffer
	return diag.NewReporter(&results, &errs), &results, &errs
}

func cmp(pred enum.IPred, x, y value.Value) *ir.InstICmp {
	c := &ir.InstICmp{Pred: pred, X: x, Y: y}
	c.Typ = types.I1
	return c
}

func callVoid(callee *ir.Function, args ...value.Value) *ir.InstCall {
	c := &ir.InstCall{Callee: callee, Args: args}
	c.Typ = types.Void
	return c
}

var requiresFn = &ir.Function{Name: "z0_requires"}
var assertFn = &ir.Function{Name: "z0_assert"}
var idivFn = &ir.Function{Name: "c0_idiv"}

// scenario 1: int f(int x) { requires(x > 0); assert(x + 1 > 1); return 0; }
// expect: OK!
func buildScenario1() *ir.Function {
	x := ir.NewParam("x", types.I32)
	reqCond := cmp(enum.IPredSGT, x, constant.NewInt(types.I32, 0))
	req := callVoid(requiresFn, reqCond)

	add := &ir.InstAdd{X: x, Y: constant.NewInt(types.I32, 1)}
	add.Typ = types.I32
	assertCond := cmp(enum.IPredSGT, add, constant.NewInt(types.I32, 1))
	assertCall := callVoid(assertFn, assertCond)

	entry := &ir.Block{
		Insts: []ir.Instruction{reqCond, req, add, assertCond, assertCall},
		Term:  &ir.TermRet{},
	}
	return &ir.Function{Name: "_c0_f1", Params: []*ir.Param{x}, Blocks: []*ir.Block{entry}}
}

// scenario 2: int f(int x) { requires(x >= 0); assert(x > 0); return 0; }
// expect: AssertionViolated, counterexample x = 0.
func buildScenario2() *ir.Function {
	x := ir.NewParam("x", types.I32)
	reqCond := cmp(enum.IPredSGE, x, constant.NewInt(types.I32, 0))
	req := callVoid(requiresFn, reqCond)

	assertCond := cmp(enum.IPredSGT, x, constant.NewInt(types.I32, 0))
	assertCall := callVoid(assertFn, assertCond)

	entry := &ir.Block{
		Insts: []ir.Instruction{reqCond, req, assertCond, assertCall},
		Term:  &ir.TermRet{},
	}
	return &ir.Function{Name: "_c0_f2", Params: []*ir.Param{x}, Blocks: []*ir.Block{entry}}
}

// scenario 3: int f(int a, int b) { requires(b != 0); return a / b; }
// expect: OK!, no division warning.
func buildScenario3() *ir.Function {
	a := ir.NewParam("a", types.I32)
	b := ir.NewParam("b", types.I32)
	reqCond := cmp(enum.IPredNE, b, constant.NewInt(types.I32, 0))
	req := callVoid(requiresFn, reqCond)

	div := callVoid(idivFn, a, b)
	div.Typ = types.I32

	entry := &ir.Block{
		Insts: []ir.Instruction{reqCond, req, div},
		Term:  &ir.TermRet{},
	}
	return &ir.Function{Name: "_c0_f3", Params: []*ir.Param{a, b}, Blocks: []*ir.Block{entry}}
}

// scenario 4: int f(int a, int b) { return a / b; }
// expect: division-safety warning, counterexample b = 0.
func buildScenario4() *ir.Function {
	a := ir.NewParam("a", types.I32)
	b := ir.NewParam("b", types.I32)
	div := callVoid(idivFn, a, b)
	div.Typ = types.I32

	entry := &ir.Block{Insts: []ir.Instruction{div}, Term: &ir.TermRet{}}
	return &ir.Function{Name: "_c0_f4", Params: []*ir.Param{a, b}, Blocks: []*ir.Block{entry}}
}

// scenario 5: int f(int a) { requires(a == 1); requires(a == 2); return 0; }
// expect: PreconditionUnsatisfiable.
func buildScenario5() *ir.Function {
	a := ir.NewParam("a", types.I32)
	cond1 := cmp(enum.IPredEQ, a, constant.NewInt(types.I32, 1))
	req1 := callVoid(requiresFn, cond1)
	cond2 := cmp(enum.IPredEQ, a, constant.NewInt(types.I32, 2))
	req2 := callVoid(requiresFn, cond2)

	entry := &ir.Block{
		Insts: []ir.Instruction{cond1, req1, cond2, req2},
		Term:  &ir.TermRet{},
	}
	return &ir.Function{Name: "_c0_f5", Params: []*ir.Param{a}, Blocks: []*ir.Block{entry}}
}

// scenario 6: int f(int x) { if (x > 0) assert(x > 0); else assert(x <= 0); return 0; }
// expect: OK! (both branches verify independently).
func buildScenario6() *ir.Function {
	x := ir.NewParam("x", types.I32)
	branchCond := cmp(enum.IPredSGT, x, constant.NewInt(types.I32, 0))

	thenAssert := callVoid(assertFn, branchCond)
	then := &ir.Block{Insts: []ir.Instruction{thenAssert}, Term: &ir.TermRet{}}

	elseCond := cmp(enum.IPredSLE, x, constant.NewInt(types.I32, 0))
	elseAssert := callVoid(assertFn, elseCond)
	els := &ir.Block{Insts: []ir.Instruction{elseCond, elseAssert}, Term: &ir.TermRet{}}

	entry := &ir.Block{
		Insts: []ir.Instruction{branchCond},
		Term:  &ir.TermCondBr{Cond: branchCond, TargetTrue: then, TargetFalse: els},
	}
	return &ir.Function{Name: "_c0_f6", Params: []*ir.Param{x}, Blocks: []*ir.Block{entry, then, els}}
}

func runOne(t *testing.T, f *ir.Function) ([]Result, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	rep, results, errs := newFixtureReporter()
	m := &ir.Module{Funcs: []*ir.Function{f}}
	res, _ := Run(m, config.Default(), rep)
	return res, results, errs
}

func TestScenario1RequiresThenProvableAssertVerifies(t *testing.T) {
	res, results, _ := runOne(t, buildScenario1())
	require.Len(t, res, 1)
	assert.True(t, res[0].Verified)
	assert.Nil(t, res[0].Fatal)
	assert.Contains(t, results.String(), "OK!")
}

func TestScenario2UnprovableAssertViolated(t *testing.T) {
	res, _, _ := runOne(t, buildScenario2())
	require.Len(t, res, 1)
	assert.False(t, res[0].Verified)
	require.NotNil(t, res[0].Fatal)
	assert.Equal(t, diag.KindAssertionViolated, res[0].Fatal.Kind)
}

func TestScenario3GuardedDivisionHasNoWarning(t *testing.T) {
	res, _, _ := runOne(t, buildScenario3())
	require.Len(t, res, 1)
	assert.True(t, res[0].Verified)
	assert.Empty(t, res[0].Warnings)
}

func TestScenario4UnguardedDivisionWarns(t *testing.T) {
	res, _, _ := runOne(t, buildScenario4())
	require.Len(t, res, 1)
	assert.True(t, res[0].Verified)
	require.Len(t, res[0].Warnings, 1)
	assert.Equal(t, diag.KindDivisionUnsafe, res[0].Warnings[0].Kind)
}

func TestScenario5ContradictoryPreconditionsFail(t *testing.T) {
	res, _, _ := runOne(t, buildScenario5())
	require.Len(t, res, 1)
	assert.False(t, res[0].Verified)
	require.NotNil(t, res[0].Fatal)
	assert.Equal(t, diag.KindPreconditionUnsatisfiable, res[0].Fatal.Kind)
}

func TestScenario6BothBranchesVerifyIndependently(t *testing.T) {
	res, _, _ := runOne(t, buildScenario6())
	require.Len(t, res, 1)
	assert.True(t, res[0].Verified)
	assert.Nil(t, res[0].Fatal)
}

func TestRunSkipsFunctionsWithoutMatchingPrefix(t *testing.T) {
	rep, _, _ := newFixtureReporter()
	f := &ir.Function{Name: "not_analyzed", Blocks: []*ir.Block{{Term: &ir.TermRet{}}}}
	m := &ir.Module{Funcs: []*ir.Function{f}}

	res, ok := Run(m, config.Default(), rep)
	assert.Empty(t, res)
	assert.True(t, ok)
}

func TestRunContinuesAfterAFailingFunction(t *testing.T) {
	rep, _, _ := newFixtureReporter()
	m := &ir.Module{Funcs: []*ir.Function{buildScenario2(), buildScenario1()}}

	res, ok := Run(m, config.Default(), rep)
	require.Len(t, res, 2)
	assert.False(t, ok)
	assert.False(t, res[0].Verified)
	assert.True(t, res[1].Verified)
}
