// Package driver runs the top-level orchestration: a single-threaded
// batch pass over an in-memory IR module that iterates every function
// matching the configured analysis prefix, analyzes each one behind its
// own panic/recover boundary, and reports results on the two output
// streams z0 writes to.
package driver

import (
	"strings"

	"github.com/llir/llvm/ir"

	"z0/internal/config"
	"z0/internal/debugmap"
	"z0/internal/diag"
	"z0/internal/pathstate"
	"z0/internal/symtab"
	"z0/internal/traverse"
)

// Result summarizes one function's analysis outcome, for callers (cmd/z0,
// internal/lspserver) that want structured results rather than just the
// two printed streams.
type Result struct {
	Function string
	Verified bool // true iff the function completed with no fatal diagnostic
	Fatal    *diag.Diagnostic
	Warnings []diag.Diagnostic
}

// Run analyzes every function in m whose name begins with
// cfg.FunctionPrefix, in the order the module lists them, and reports
// progress/results through rep. It returns one Result per analyzed
// function and a module-wide ok flag, false iff any function aborted
// with a fatal diagnostic.
func Run(m *ir.Module, cfg config.Config, rep *diag.Reporter) ([]Result, bool) {
	var results []Result
	allOK := true

	for _, f := range m.Funcs {
		if !strings.HasPrefix(f.Name, cfg.FunctionPrefix) {
			continue
		}
		res := runFunction(f, cfg, rep)
		results = append(results, res)
		if !res.Verified {
			allOK = false
		}
	}
	return results, allOK
}

// runFunction analyzes a single function behind a panic/recover boundary:
// a fatal diag.Diagnostic panicked from anywhere in internal/traverse (or
// the packages it calls) is caught here, reported, and turned into a
// failed Result, letting the driver continue with the next function
// rather than aborting the whole module.
func runFunction(f *ir.Function, cfg config.Config, rep *diag.Reporter) (result Result) {
	rep.AnalyzingFunction(f.Name)
	result.Function = f.Name

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		d, ok := r.(diag.Diagnostic)
		if !ok {
			// A non-diagnostic panic (e.g. a genuine programming error, or
			// a solver-internal panic from the cgo boundary) is reported
			// as SolverInternal rather than re-panicked, so one
			// function's failure never takes down the whole batch run.
			d = diag.Fatal(f.Name, diag.KindSolverInternal, "%v", r)
		}
		rep.Report(d)
		rep.StopReason(f.Name, d.Error())
		result.Verified = false
		result.Fatal = &d
	}()

	sess := pathstate.NewSession()
	tab := symtab.New()
	dbg := debugmap.New()
	sink := &collectingSink{rep: rep}

	tr := traverse.New(f.Name, cfg, sess, tab, dbg, sink)
	tr.Run(f)

	result.Verified = true
	result.Warnings = sink.warnings
	rep.OK()
	return result
}

// collectingSink implements diag.Sink, forwarding every diagnostic to the
// real output streams (unchanged user-visible behavior) while also
// retaining it on the Result for structured callers like
// internal/lspserver, which republishes diagnostics rather than printing
// them.
type collectingSink struct {
	rep      *diag.Reporter
	warnings []diag.Diagnostic
}

func (c *collectingSink) Report(d diag.Diagnostic) {
	c.warnings = append(c.warnings, d)
	c.rep.Report(d)
}
