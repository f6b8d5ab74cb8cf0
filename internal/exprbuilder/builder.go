// Package exprbuilder translates IR values into bit-vector expressions of
// matching width.
//
// Two operations are exposed:
//
//   - Translate resolves v as an *operand*: a constant becomes its literal,
//     an instruction result or argument becomes the symbol already bound to
//     it. It never expands an instruction's operands recursively — SSA
//     values are bound once, at the point the traverser visits their
//     defining instruction, not re-expanded at every use.
//   - Define computes the bit-vector expression an instruction's operation
//     denotes, from its *own* operands (each resolved via Translate). The
//     traverser asserts the instruction's symbol equal to this expression
//     as it visits the instruction.
package exprbuilder

import (
	"fmt"

	"github.com/ajalab/go-z3/z3"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"z0/internal/diag"
	"z0/internal/pathstate"
	"z0/internal/symtab"
)

// legal widths: the source language has only 1-bit booleans and 32-bit
// signed integers.
const (
	widthBool = 1
	widthInt  = 32
)

func isLegalWidth(w int) bool { return w == widthBool || w == widthInt }

// fail panics with a diag.Diagnostic, to be recovered at the driver's
// per-function boundary.
func fail(fn string, kind diag.Kind, format string, args ...any) {
	panic(diag.Fatal(fn, kind, format, args...))
}

// widthOf returns the bit-width of v's type, failing with
// UnsupportedValueKind if v is not an integer.
func widthOf(fn string, v value.Value) int {
	it, ok := v.Type().(*types.IntType)
	if !ok {
		fail(fn, diag.KindUnsupportedValueKind, "value %v has non-integer type %v", v, v.Type())
	}
	return int(it.BitSize)
}

// ResultWidth is widthOf plus the legal-width check, exported for
// internal/traverse to size the symbol constant it binds an instruction's
// defining equation to.
func ResultWidth(fn string, v value.Value) int {
	w := widthOf(fn, v)
	if !isLegalWidth(w) {
		fail(fn, diag.KindUnsupportedWidth, "value %v has unsupported width %d", v, w)
	}
	return w
}

// Translate resolves v as an operand reference: a constant integer
// becomes its literal; an instruction result or a function argument
// becomes the constant term named by its symbol. Any other value kind
// fails with UnsupportedValueKind.
func Translate(fn string, sess *pathstate.Session, tab *symtab.Table, v value.Value) z3.BV {
	if c, ok := v.(*constant.Int); ok {
		w := int(c.Typ.BitSize)
		if !isLegalWidth(w) {
			fail(fn, diag.KindUnsupportedWidth, "constant %v has unsupported width %d", c, w)
		}
		return sess.BVVal(c.X.Int64(), w)
	}

	switch v.(type) {
	case *ir.Param, *ir.InstAdd, *ir.InstSub, *ir.InstMul,
		*ir.InstAnd, *ir.InstOr, *ir.InstXor, *ir.InstShl, *ir.InstLShr, *ir.InstAShr,
		*ir.InstUDiv, *ir.InstSDiv, *ir.InstURem, *ir.InstSRem,
		*ir.InstICmp, *ir.InstTrunc, *ir.InstZExt, *ir.InstSExt,
		*ir.InstCall, *ir.InstPhi:
		w := widthOf(fn, v)
		if !isLegalWidth(w) {
			fail(fn, diag.KindUnsupportedWidth, "value %v has unsupported width %d", v, w)
		}
		return tab.ConstFor(sess.Context(), v, w)
	default:
		fail(fn, diag.KindUnsupportedValueKind, "value %v has unsupported kind %T", v, v)
		panic("unreachable")
	}
}

// Define computes the expression an instruction's operation denotes, from
// its own operands. The caller (internal/traverse) is responsible for
// asserting the instruction's symbol equal to this result.
//
// An instruction with two operands is translated by binop or cmp; an
// instruction with one operand is translated as a cast. Calls and
// φ-nodes are handled elsewhere and never reach Define.
func Define(fn string, sess *pathstate.Session, tab *symtab.Table, inst value.Value) z3.BV {
	switch in := inst.(type) {
	case *ir.InstAdd, *ir.InstSub, *ir.InstMul,
		*ir.InstAnd, *ir.InstOr, *ir.InstXor,
		*ir.InstShl, *ir.InstAShr, *ir.InstSDiv, *ir.InstSRem,
		*ir.InstUDiv, *ir.InstURem, *ir.InstLShr:
		return defineBinop(fn, sess, tab, in)
	case *ir.InstICmp:
		return defineCmp(fn, sess, tab, in)
	case *ir.InstTrunc, *ir.InstZExt, *ir.InstSExt:
		return defineCast(fn, sess, tab, in)
	default:
		fail(fn, diag.KindUnknownUnary, "instruction %v is not a recognized binary, comparison, or cast operation", inst)
		panic("unreachable")
	}
}

func checkOperandWidths(fn string, inst value.Value, x, y value.Value) {
	w := widthOf(fn, inst)
	if !isLegalWidth(w) {
		fail(fn, diag.KindUnsupportedWidth, "instruction %v has unsupported width %d", inst, w)
	}
	_ = widthOf(fn, x)
	_ = widthOf(fn, y)
}

func defineBinop(fn string, sess *pathstate.Session, tab *symtab.Table, inst value.Value) z3.BV {
	get := func(x, y value.Value) (z3.BV, z3.BV) {
		checkOperandWidths(fn, inst, x, y)
		return Translate(fn, sess, tab, x), Translate(fn, sess, tab, y)
	}

	switch in := inst.(type) {
	case *ir.InstAdd:
		a, b := get(in.X, in.Y)
		return a.Add(b)
	case *ir.InstSub:
		a, b := get(in.X, in.Y)
		return a.Sub(b)
	case *ir.InstMul:
		a, b := get(in.X, in.Y)
		return a.Mul(b)
	case *ir.InstAnd:
		a, b := get(in.X, in.Y)
		return a.And(b)
	case *ir.InstOr:
		a, b := get(in.X, in.Y)
		return a.Or(b)
	case *ir.InstXor:
		a, b := get(in.X, in.Y)
		return a.Xor(b)
	case *ir.InstShl:
		a, b := get(in.X, in.Y)
		return a.Lsh(b)
	case *ir.InstAShr:
		a, b := get(in.X, in.Y)
		return a.SRsh(b)
	case *ir.InstSDiv:
		a, b := get(in.X, in.Y)
		return a.SDiv(b)
	case *ir.InstSRem:
		a, b := get(in.X, in.Y)
		return a.SRem(b)
	case *ir.InstUDiv, *ir.InstURem, *ir.InstLShr:
		fail(fn, diag.KindUnsignedArithmeticUnsupported, "unsigned operation %v is not supported (C0 has only signed ints)", inst)
	}
	fail(fn, diag.KindUnknownUnary, "unrecognized binary instruction %v", inst)
	panic("unreachable")
}

func defineCmp(fn string, sess *pathstate.Session, tab *symtab.Table, in *ir.InstICmp) z3.BV {
	wx := widthOf(fn, in.X)
	if !isLegalWidth(wx) {
		fail(fn, diag.KindUnsupportedWidth, "comparison operand %v has unsupported width %d", in.X, wx)
	}
	_ = widthOf(fn, in.Y)
	x := Translate(fn, sess, tab, in.X)
	y := Translate(fn, sess, tab, in.Y)

	var b z3.Bool
	switch in.Pred {
	case enum.IPredEQ:
		b = x.Eq(y)
	case enum.IPredNE:
		b = x.Eq(y).Not()
	case enum.IPredSGT:
		b = x.SGT(y)
	case enum.IPredSGE:
		b = x.SGE(y)
	case enum.IPredSLT:
		b = x.SLT(y)
	case enum.IPredSLE:
		b = x.SLE(y)
	case enum.IPredUGT, enum.IPredUGE, enum.IPredULT, enum.IPredULE:
		fail(fn, diag.KindUnsignedArithmeticUnsupported, "unsigned comparison %v is not supported", in)
		panic("unreachable")
	default:
		fail(fn, diag.KindUnknownUnary, "unrecognized comparison predicate in %v", in)
		panic("unreachable")
	}
	return boolToBV(sess, b)
}

// boolToBV encodes a solver boolean as a 1-bit bit-vector: 0 for false,
// 1 for true.
func boolToBV(sess *pathstate.Session, b z3.Bool) z3.BV {
	one := sess.BVVal(1, widthBool)
	zero := sess.BVVal(0, widthBool)
	return sess.Context().Ite(b, one, zero).(z3.BV)
}

func defineCast(fn string, sess *pathstate.Session, tab *symtab.Table, inst value.Value) z3.BV {
	var from value.Value
	var to types.Type
	switch in := inst.(type) {
	case *ir.InstTrunc:
		from, to = in.From, in.To
	case *ir.InstZExt:
		from, to = in.From, in.To
	case *ir.InstSExt:
		from, to = in.From, in.To
	default:
		fail(fn, diag.KindUnsupportedCast, "unrecognized cast %v", inst)
	}

	srcIT, srcOK := from.Type().(*types.IntType)
	dstIT, dstOK := to.(*types.IntType)
	if !srcOK || !dstOK {
		fail(fn, diag.KindUnsupportedCast, "cast %v requires integer source and destination", inst)
	}
	src := int(srcIT.BitSize)
	dst := int(dstIT.BitSize)
	if !isLegalWidth(src) {
		fail(fn, diag.KindUnsupportedWidth, "cast %v has unsupported source width %d", inst, src)
	}
	if !isLegalWidth(dst) {
		fail(fn, diag.KindUnsupportedWidth, "cast %v has unsupported destination width %d", inst, dst)
	}
	x := Translate(fn, sess, tab, from)

	switch inst.(type) {
	case *ir.InstTrunc:
		if dst > src {
			fail(fn, diag.KindUnsupportedCast, "trunc %v: destination wider than source", inst)
		}
		return x.Extract(dst-1, 0)
	case *ir.InstZExt:
		if dst < src {
			fail(fn, diag.KindUnsupportedCast, "zext %v: destination narrower than source", inst)
		}
		return x.ZeroExtend(dst - src)
	case *ir.InstSExt:
		if dst < src {
			fail(fn, diag.KindUnsupportedCast, "sext %v: destination narrower than source", inst)
		}
		return x.SignExtend(dst - src)
	}
	fail(fn, diag.KindUnsupportedCast, "unrecognized cast %v", inst)
	panic(fmt.Sprintf("unreachable: %v", inst))
}
