// Package diag holds the fixed set of analyzer-internal diagnostic
// kinds, and a reporter that formats them onto the two output streams
// z0 writes to.
package diag

import "fmt"

// Kind is one of the analyzer-internal diagnostic kinds. These are not
// surfaced to an end user editing source text — they describe
// constructs of the compiled IR that fall outside z0's supported
// subset, or solver-derived facts about the program being checked.
type Kind string

const (
	// KindAssertionViolated: a contract assertion was falsifiable.
	// Terminates the current function's analysis.
	KindAssertionViolated Kind = "AssertionViolated"

	// KindPreconditionUnsatisfiable: a requires() contradicts
	// accumulated facts. Terminates the current function.
	KindPreconditionUnsatisfiable Kind = "PreconditionUnsatisfiable"

	// KindDivisionUnsafe: a division/modulo denominator may be zero, or
	// may overflow (INT_MIN / -1). Warning only; analysis continues
	// under the assumption the division was in fact safe.
	KindDivisionUnsafe Kind = "DivisionUnsafe"

	// KindVerificationUnknown: the solver returned "unknown" for an
	// obligation. Logged as a warning.
	KindVerificationUnknown Kind = "VerificationUnknown"

	// KindUnsupportedWidth: an integer value has a bit-width other than
	// 1 or 32.
	KindUnsupportedWidth Kind = "UnsupportedWidth"

	// KindUnsupportedValueKind: an IR value is neither a constant, an
	// instruction result, nor an integer-typed argument.
	KindUnsupportedValueKind Kind = "UnsupportedValueKind"

	// KindUnsupportedCast: a cast is not a trunc/zext/sext between
	// integer types.
	KindUnsupportedCast Kind = "UnsupportedCast"

	// KindUnsignedArithmeticUnsupported: an unsigned operation was
	// encountered; the source language has only signed integers.
	KindUnsignedArithmeticUnsupported Kind = "UnsignedArithmeticUnsupported"

	// KindUnknownCall: a call to a function that is none of the
	// recognized contract/intrinsic/debug markers.
	KindUnknownCall Kind = "UnknownCall"

	// KindUnknownTerminator: a basic block terminator other than
	// return, branch, conditional branch, or unreachable.
	KindUnknownTerminator Kind = "UnknownTerminator"

	// KindUnknownUnary: a single-operand instruction that is not a cast.
	KindUnknownUnary Kind = "UnknownUnary"

	// KindSolverInternal: the SMT solver raised an exception.
	KindSolverInternal Kind = "SolverInternal"
)

// Sink is the minimal diagnostic-reporting surface internal/traverse
// depends on. *Reporter satisfies it directly; internal/driver wraps a
// *Reporter in a Sink that also retains warnings on the function's
// Result, for callers (internal/lspserver) that republish diagnostics
// instead of printing them.
type Sink interface {
	Report(Diagnostic)
}

// Severity distinguishes diagnostics that abort the current function's
// analysis from those that are merely reported and survived.
type Severity int

const (
	// SeverityFatal aborts the current function (AssertionViolated,
	// PreconditionUnsatisfiable, every UnsupportedX/UnknownX, and
	// SolverInternal).
	SeverityFatal Severity = iota
	// SeverityWarning is reported but does not stop the function
	// (DivisionUnsafe, VerificationUnknown).
	SeverityWarning
)

// Diagnostic is a single reported fact about a function under analysis.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Function string // the analyzed function's source-visible name
	Message  string
	// Counterexample, when non-empty, is the pre-rendered
	// "name = value" lines produced by internal/counterexample.
	Counterexample []string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Function, d.Kind, d.Message)
}

// Fatal builds a function-aborting diagnostic.
func Fatal(fn string, kind Kind, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Severity: SeverityFatal,
		Function: fn,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Warn builds a non-aborting diagnostic.
func Warn(fn string, kind Kind, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Severity: SeverityWarning,
		Function: fn,
		Message:  fmt.Sprintf(format, args...),
	}
}

// WithCounterexample attaches rendered counterexample lines to a
// diagnostic and returns it for chaining. There is no source-position
// plumbing to carry alongside it: a diagnostic is anchored to IR
// function/value identity, not to source text.
func (d Diagnostic) WithCounterexample(lines []string) Diagnostic {
	d.Counterexample = lines
	return d
}
