package ports

import (
	"context"
	"io"

	"github.com/ahrav/go-nodeflow/internal/domain"
)

// EvalMode selects how a script source is interpreted.
type EvalMode int

const (
	// ModeAuto evaluates single-line sources as expressions and falls back
	// to block mode for statements, multi-line sources, and definitions.
	ModeAuto EvalMode = iota
	// ModeExpression evaluates the source as one expression.
	ModeExpression
	// ModeBlock executes the source as a statement block and resolves a
	// result from its functions, result variables, last line, or output.
	ModeBlock
)

// String returns the mode name used in errors and traces.
func (m EvalMode) String() string {
	switch m {
	case ModeExpression:
		return "expression"
	case ModeBlock:
		return "block"
	default:
		return "auto"
	}
}

// Script is one sandboxed evaluation request. The evaluator may read only
// Bindings and its own builtin allowlist.
type Script struct {
	// Name labels the script in error positions and traces.
	Name string
	// Source is the expression or statement block.
	Source string
	// Mode selects expression or block interpretation.
	Mode EvalMode
	// Bindings are the variables visible to the script.
	Bindings map[string]domain.Value
	// Primary is passed to a process/transform/main function in block mode.
	Primary domain.Value
	// Output receives printed text. Nil discards it.
	Output io.Writer
	// Minimal restricts builtins to the connection-logic set, which omits
	// abs, range, and print.
	Minimal bool
}

// Evaluator runs user snippets in a capability-scoped sandbox.
type Evaluator interface {
	// Run evaluates script and returns its result. Errors are *EvalError.
	Run(ctx context.Context, script Script) (domain.Value, error)

	// ParseLiteral converts literal source text ("42", "[1, 2]", "'x'")
	// into a value. It reports false for anything that is not a literal.
	ParseLiteral(src string) (domain.Value, bool)
}
