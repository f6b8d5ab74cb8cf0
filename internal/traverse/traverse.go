// Package traverse implements the analyzer's CFG walk: a depth-first
// exploration of a function's control-flow graph that resolves φ-nodes on
// block entry, translates the body via internal/exprbuilder, dispatches
// contract/intrinsic calls, and forks Path State scopes at conditional
// branches.
//
// The walk is recursive: translate a block's body, then dispatch on its
// terminator, recursing into each reachable successor with a fresh
// pushed/popped solver scope. Loop back-edges are resolved via
// internal/loopcut rather than rejected or unrolled.
package traverse

import (
	"fmt"
	"strings"

	"github.com/ajalab/go-z3/z3"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/metadata"
	"github.com/llir/llvm/ir/value"

	"z0/internal/config"
	"z0/internal/debugmap"
	"z0/internal/diag"
	"z0/internal/exprbuilder"
	"z0/internal/loopcut"
	"z0/internal/obligation"
	"z0/internal/pathstate"
	"z0/internal/symtab"
)

// Traverser holds the per-function state the walk needs: the resources
// reset at function entry (symbol table, debug map, solver session) plus
// the loop-cut information computed once up front.
type Traverser struct {
	fn       string
	cfg      config.Config
	sess     *pathstate.Session
	tab      *symtab.Table
	dbg      *debugmap.Map
	cuts     *loopcut.Info
	reporter diag.Sink

	warnedHeaders map[*ir.Block]bool
}

// New builds a Traverser for one function's analysis. Every argument is
// function-scoped state created fresh by the caller (internal/driver) at
// the start of each function's analysis. reporter need only satisfy
// diag.Sink: a bare *diag.Reporter works, as does internal/driver's
// collecting wrapper.
func New(fn string, cfg config.Config, sess *pathstate.Session, tab *symtab.Table, dbg *debugmap.Map, reporter diag.Sink) *Traverser {
	return &Traverser{
		fn:            fn,
		cfg:           cfg,
		sess:          sess,
		tab:           tab,
		dbg:           dbg,
		reporter:      reporter,
		warnedHeaders: make(map[*ir.Block]bool),
	}
}

// Run walks f from its entry block with no predecessor. It returns true
// iff at least one explored path reached a return terminator on a
// satisfiable path condition, or reached an unreachable terminator.
func (t *Traverser) Run(f *ir.Function) bool {
	if len(f.Blocks) == 0 {
		return false
	}
	t.cuts = loopcut.Analyze(f)
	return t.walk(f.Blocks[0], nil)
}

func (t *Traverser) walk(block *ir.Block, from *ir.Block) bool {
	t.resolvePhis(block, from)
	for _, inst := range block.Insts {
		t.handleInst(inst)
	}
	return t.handleTerminator(block)
}

// resolvePhis binds each φ-instruction's symbol to the operand coming
// from `from`. If from is nil (function entry) there is nothing to bind.
// A loop header is entered only along its forward edge (back-edges are
// cut), so its φ-nodes are bound to their forward incoming values and are
// never equated to their back-edge operands. The loop body is therefore
// explored with the values of the first iteration only; loop-carried
// values are not havoced and later iterations are not modelled.
func (t *Traverser) resolvePhis(block *ir.Block, from *ir.Block) {
	if from == nil {
		return
	}
	for _, inst := range block.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			continue
		}
		for _, inc := range phi.Incs {
			if inc.Pred != from {
				continue
			}
			w := exprbuilder.ResultWidth(t.fn, phi)
			sym := t.tab.ConstFor(t.sess.Context(), phi, w)
			val := exprbuilder.Translate(t.fn, t.sess, t.tab, inc.X)
			t.sess.AssertEq(sym, val)
			break
		}
	}
}

func (t *Traverser) handleInst(inst ir.Instruction) {
	switch in := inst.(type) {
	case *ir.InstPhi:
		// Resolved on block entry by resolvePhis.
	case *ir.InstCall:
		t.handleCall(in)
	default:
		v, ok := inst.(value.Value)
		if !ok {
			fail(t.fn, diag.KindUnknownUnary, "instruction %v produces no value", inst)
		}
		w := exprbuilder.ResultWidth(t.fn, v)
		expr := exprbuilder.Define(t.fn, t.sess, t.tab, v)
		sym := t.tab.ConstFor(t.sess.Context(), v, w)
		t.sess.AssertEq(sym, expr)
	}
}

// handleCall classifies a call by callee name: a contract call, a
// division/modulo intrinsic, a debug-value annotation, a debug-declare
// annotation (ignored), or an unrecognized call (fatal).
func (t *Traverser) handleCall(call *ir.InstCall) {
	name, ok := calleeName(call.Callee)
	if !ok {
		fail(t.fn, diag.KindUnknownCall, "call to a non-function value")
	}

	switch {
	case strings.HasPrefix(name, t.cfg.AssertMarkerPrefix):
		t.handleContractCall(name, call)

	case name == t.cfg.DivIntrinsic || name == t.cfg.ModIntrinsic:
		t.handleDivMod(name, call)

	case name == t.cfg.DbgValueIntrinsic:
		t.handleDbgValue(call)

	case name == t.cfg.DbgDeclareIntrinsic:
		// Ignored: declare-site annotations carry no value to track.

	default:
		fail(t.fn, diag.KindUnknownCall, "unknown call %q", name)
	}
}

func (t *Traverser) handleContractCall(name string, call *ir.InstCall) {
	if len(call.Args) != 1 {
		fail(t.fn, diag.KindUnknownCall, "contract call %q expects exactly one condition argument", name)
	}
	cond := exprbuilder.Translate(t.fn, t.sess, t.tab, call.Args[0])

	if name == t.cfg.AssertMarkerPrefix+"requires" {
		obligation.CheckPrecondition(t.fn, t.sess, cond)
		return
	}
	if w := obligation.CheckAssertion(t.fn, t.sess, t.tab, t.dbg, t.cfg.UserVarMarkerPrefix, cond); w != nil {
		t.reporter.Report(*w)
	}
}

func (t *Traverser) handleDivMod(name string, call *ir.InstCall) {
	if len(call.Args) != 2 {
		fail(t.fn, diag.KindUnknownCall, "%q expects exactly two operands", name)
	}
	a := exprbuilder.Translate(t.fn, t.sess, t.tab, call.Args[0])
	b := exprbuilder.Translate(t.fn, t.sess, t.tab, call.Args[1])

	if w := obligation.CheckDivisionSafety(t.fn, t.sess, t.tab, t.dbg, t.cfg.UserVarMarkerPrefix, a, b); w != nil {
		t.reporter.Report(*w)
	}

	var result z3.BV
	if name == t.cfg.DivIntrinsic {
		result = a.SDiv(b)
	} else {
		result = a.SRem(b)
	}
	w := exprbuilder.ResultWidth(t.fn, call)
	sym := t.tab.ConstFor(t.sess.Context(), call, w)
	t.sess.AssertEq(sym, result)
}

// handleDbgValue updates the Debug-Name Map, but only for names the
// user-variable marker identifies or the synthesized result name;
// compiler-temporary names are ignored.
func (t *Traverser) handleDbgValue(call *ir.InstCall) {
	name, val, ok := debugValueOperands(call)
	if !ok {
		return
	}
	if !strings.HasPrefix(name, t.cfg.UserVarMarkerPrefix) && name != t.cfg.ResultName {
		return
	}
	t.dbg.Update(name, val)
}

func (t *Traverser) handleTerminator(block *ir.Block) bool {
	switch term := block.Term.(type) {
	case *ir.TermRet:
		return t.isReachable()

	case *ir.TermUnreachable:
		return true

	case *ir.TermBr:
		return t.followEdge(block, term.Target)

	case *ir.TermCondBr:
		cond := exprbuilder.Translate(t.fn, t.sess, t.tab, term.Cond)
		trueReach := t.exploreConditional(block, term.TargetTrue, cond, true)
		falseReach := t.exploreConditional(block, term.TargetFalse, cond, false)
		return trueReach || falseReach

	default:
		fail(t.fn, diag.KindUnknownTerminator, "unrecognized terminator %v", block.Term)
		panic("unreachable")
	}
}

// followEdge handles an unconditional branch: push a scope, recurse, pop.
// A back-edge is cut rather than followed.
func (t *Traverser) followEdge(from, to *ir.Block) bool {
	if t.cuts.IsBackEdge(from, to) {
		t.warnUnsoundLoopIfNoInvariant(to)
		return false
	}
	t.sess.Push(blockLabel(to))
	reach := t.walk(to, from)
	t.sess.Pop()
	return reach
}

// exploreConditional explores one successor of a conditional branch: push
// scope, assert the branch condition, test reachability (skip silently if
// unsat), then recurse unless the edge is a loop back-edge.
func (t *Traverser) exploreConditional(from, to *ir.Block, cond z3.BV, want bool) bool {
	t.sess.Push(blockLabel(to))
	var wantBV z3.BV
	if want {
		wantBV = t.sess.BVVal(1, 1)
	} else {
		wantBV = t.sess.BVVal(0, 1)
	}
	t.sess.Assert(cond.Eq(wantBV))

	if !t.isReachable() {
		t.sess.Pop()
		return false
	}
	if t.cuts.IsBackEdge(from, to) {
		t.warnUnsoundLoopIfNoInvariant(to)
		t.sess.Pop()
		return false
	}
	reach := t.walk(to, from)
	t.sess.Pop()
	return reach
}

// isReachable reports false only on a solver-confirmed unsat; unknown is
// conservatively treated as reachable.
func (t *Traverser) isReachable() bool {
	return t.sess.Check() != pathstate.Unsat
}

// warnUnsoundLoopIfNoInvariant warns once per header that a cut loop
// whose header does not open with a loop_invariant call is unsound: the
// back-edge value is havoced with nothing asserted to constrain it.
func (t *Traverser) warnUnsoundLoopIfNoInvariant(header *ir.Block) {
	if t.warnedHeaders[header] {
		return
	}
	t.warnedHeaders[header] = true

	if len(header.Insts) > 0 {
		if call, ok := header.Insts[0].(*ir.InstCall); ok {
			if name, ok := calleeName(call.Callee); ok && name == t.cfg.AssertMarkerPrefix+"loop_invariant" {
				return
			}
		}
	}
	t.reporter.Report(diag.Warn(t.fn, diag.KindVerificationUnknown,
		"loop has no loop_invariant at its header; cutting it is unsound"))
}

func fail(fn string, kind diag.Kind, format string, args ...any) {
	panic(diag.Fatal(fn, kind, format, args...))
}

func calleeName(v value.Value) (string, bool) {
	f, ok := v.(*ir.Function)
	if !ok {
		return "", false
	}
	return f.Name, true
}

func blockLabel(b *ir.Block) string {
	return fmt.Sprintf("block_%p", b)
}

// debugValueOperands extracts the source-variable name and the IR value
// it currently denotes from an llvm.dbg.value call. The variable name is
// carried in a DILocalVariable metadata operand; the
// value operand may itself be wrapped as metadata (LLVM's
// ValueAsMetadata), so both forms are accepted.
func debugValueOperands(call *ir.InstCall) (name string, val value.Value, ok bool) {
	if len(call.Args) < 2 {
		return "", nil, false
	}
	di, ok := unwrapDILocalVariable(call.Args[1])
	if !ok {
		return "", nil, false
	}
	val, ok = unwrapValue(call.Args[0])
	if !ok {
		return "", nil, false
	}
	return di.Name, val, true
}

func unwrapDILocalVariable(v value.Value) (*metadata.DILocalVariable, bool) {
	if mv, ok := v.(*metadata.Value); ok {
		di, ok := mv.Value.(*metadata.DILocalVariable)
		return di, ok
	}
	di, ok := v.(*metadata.DILocalVariable)
	return di, ok
}

func unwrapValue(v value.Value) (value.Value, bool) {
	if mv, ok := v.(*metadata.Value); ok {
		if inner, ok := mv.Value.(value.Value); ok {
			return inner, true
		}
		return nil, false
	}
	return v, true
}
