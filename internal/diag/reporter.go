package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Reporter formats diagnostics onto two output streams: a "results"
// stream (Analyzing function F… / OK! / counterexample blocks) and an
// error stream (warnings, unknowns, stop reasons). Diagnostics are
// anchored to IR function/value identity, not to source text, since the
// input is already-compiled IR — there is no source-line/caret
// rendering to do.
type Reporter struct {
	Results io.Writer
	Errors  io.Writer
}

// NewReporter builds a Reporter writing to the given streams.
func NewReporter(results, errs io.Writer) *Reporter {
	return &Reporter{Results: results, Errors: errs}
}

// AnalyzingFunction announces that analysis of a function has begun.
func (r *Reporter) AnalyzingFunction(name string) {
	fmt.Fprintf(r.Results, "Analyzing function %s...\n", name)
}

// OK announces that a function verified cleanly.
func (r *Reporter) OK() {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Fprintf(r.Results, "%s\n", green("OK!"))
}

// Counterexample prints a rendered counterexample block to the results
// stream under an "=== Counterexample: ===" header.
func (r *Reporter) Counterexample(lines []string) {
	fmt.Fprintln(r.Results, "=== Counterexample: ===")
	for _, line := range lines {
		fmt.Fprintln(r.Results, line)
	}
}

// Report writes a single diagnostic to the appropriate stream, colored
// by severity, and prints its counterexample block (if any) to the
// results stream first, so the model is shown before the stop reason.
func (r *Reporter) Report(d Diagnostic) {
	if len(d.Counterexample) > 0 {
		r.Counterexample(d.Counterexample)
	}

	var levelColor func(a ...interface{}) string
	var label string
	switch d.Severity {
	case SeverityFatal:
		levelColor = color.New(color.FgRed, color.Bold).SprintFunc()
		label = "error"
	default:
		levelColor = color.New(color.FgYellow, color.Bold).SprintFunc()
		label = "warning"
	}

	fmt.Fprintf(r.Errors, "%s[%s]: %s: %s\n", levelColor(label), d.Kind, d.Function, d.Message)
}

// StopReason prints the "Z0 Stopped: ..." line for a function-scoped
// abort.
func (r *Reporter) StopReason(fn string, why string) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	fmt.Fprintf(r.Errors, "%s: %s\n", red("Z0 Stopped"), strings.TrimSpace(why))
}
