// Package counterexample renders a satisfying model and the Debug-Name
// Map into `name = value` lines for the functions that reported a
// failing assertion or an unsafe division. Each variable's value is
// obtained on demand via internal/pathstate.Model.EvalInt, evaluating
// that variable's own constant against the model rather than
// pre-indexing every declaration.
package counterexample

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"z0/internal/debugmap"
	"z0/internal/pathstate"
	"z0/internal/symtab"
)

// Render produces the counterexample lines for a failed obligation,
// iterating dbg in insertion order. markerPrefix is the user-variable
// marker (e.g. "_c0v_") stripped from each name before display; the
// synthesized result name (e.g. "\result") is printed unstripped since
// it carries no marker prefix.
func Render(model *pathstate.Model, tab *symtab.Table, dbg *debugmap.Map, markerPrefix string) []string {
	lines := make([]string, 0, dbg.Len())
	for _, name := range dbg.Names() {
		display := strings.TrimPrefix(name, markerPrefix)
		v, _ := dbg.Lookup(name)

		if ci, ok := v.(*constant.Int); ok {
			lines = append(lines, fmt.Sprintf("%s = %s", display, ci.X.String()))
			continue
		}

		it, isInt := v.Type().(*types.IntType)
		if !isInt {
			lines = append(lines, fmt.Sprintf("%s = *", display))
			continue
		}

		sym, ok := tab.Lookup(v)
		if !ok {
			lines = append(lines, fmt.Sprintf("%s = *", display))
			continue
		}

		expr := tab.ConstFor(model.Context(), v, int(it.BitSize))
		val, bound := model.EvalInt(expr)
		if bound {
			lines = append(lines, fmt.Sprintf("%s = %d", display, val))
		} else {
			lines = append(lines, fmt.Sprintf("%s = %s?", display, sym.String()))
		}
	}
	return lines
}
