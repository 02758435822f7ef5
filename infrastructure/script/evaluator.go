// Package script provides the restricted snippet evaluator used by transform
// and sink nodes and by the scripted connection-logic strategies. Snippets
// run in a Starlark interpreter (a Python dialect) with no filesystem,
// network, environment, or load access, a fixed builtin allowlist, and a
// bounded execution-step budget.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

var _ ports.Evaluator = (*Evaluator)(nil)

// DefaultMaxSteps bounds the Starlark computation steps a single snippet
// may take.
const DefaultMaxSteps = 1_000_000

// entryFunctions are called, in order, when a block defines them.
var entryFunctions = []string{"process", "transform", "main"}

// resultVariables are read, in order, when a block binds them.
var resultVariables = []string{"output", "result", "res"}

// Config controls the sandbox limits.
type Config struct {
	// MaxSteps caps Starlark execution steps per run. Zero selects
	// DefaultMaxSteps.
	MaxSteps uint64 `yaml:"max_steps" json:"max_steps" validate:"omitempty,min=1000"`
}

// DefaultConfig returns the sandbox limits used when none are configured.
func DefaultConfig() Config {
	return Config{MaxSteps: DefaultMaxSteps}
}

// Evaluator runs snippets in a Starlark sandbox. It is stateless between
// runs and safe for concurrent use.
type Evaluator struct {
	maxSteps    uint64
	fileOptions *syntax.FileOptions
	standard    starlark.StringDict
	minimal     starlark.StringDict
	tracer      trace.Tracer
}

// NewEvaluator creates an evaluator with the given limits.
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Evaluator{
		maxSteps: cfg.MaxSteps,
		fileOptions: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
		},
		standard: buildPredeclared(StandardBuiltins),
		minimal:  buildPredeclared(MinimalBuiltins),
		tracer:   otel.Tracer("nodeflow/script"),
	}
}

// Run evaluates a script. In expression mode the value of the expression is
// returned. In block mode the result is resolved, in order, from a
// process/transform/main function called with the primary input, an
// output/result/res variable, the last non-blank line read as an
// expression, the printed text, and finally nil.
func (e *Evaluator) Run(ctx context.Context, s ports.Script) (domain.Value, error) {
	name := s.Name
	if name == "" {
		name = "snippet"
	}
	mode := e.resolveMode(s)

	ctx, span := e.tracer.Start(ctx, "script.Run", trace.WithAttributes(
		attribute.String("script.name", name),
		attribute.String("script.mode", mode.String()),
	))
	defer span.End()

	var printed bytes.Buffer
	thread := e.newThread(name, &printed, s.Output)
	stop := context.AfterFunc(ctx, func() { thread.Cancel(ctx.Err().Error()) })
	defer stop()

	env := e.environment(s)

	var (
		result domain.Value
		err    error
	)
	switch mode {
	case ports.ModeExpression:
		result, err = e.evalExpression(thread, name, s.Source, env)
	default:
		result, err = e.execBlock(thread, name, s, env, &printed)
	}

	if err != nil {
		err = ports.NewEvalError(name, mode, e.classify(ctx, thread, err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "snippet failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("script.steps", int64(thread.ExecutionSteps())))
	return result, nil
}

// resolveMode picks expression or block interpretation for auto mode.
func (e *Evaluator) resolveMode(s ports.Script) ports.EvalMode {
	if s.Mode != ports.ModeAuto {
		return s.Mode
	}
	src := strings.TrimSpace(s.Source)
	if strings.Contains(src, "\n") || strings.HasPrefix(src, "def ") {
		return ports.ModeBlock
	}
	if _, err := e.fileOptions.ParseExpr("probe", src, 0); err != nil {
		return ports.ModeBlock
	}
	return ports.ModeExpression
}

func (e *Evaluator) newThread(name string, printed *bytes.Buffer, out io.Writer) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			printed.WriteString(msg)
			printed.WriteByte('\n')
			if out != nil {
				fmt.Fprintln(out, msg)
			}
		},
		Load: func(*starlark.Thread, string) (starlark.StringDict, error) {
			return nil, errors.New("load is not available in this sandbox")
		},
	}
	thread.SetMaxExecutionSteps(e.maxSteps)
	return thread
}

// environment merges the builtin allowlist with the caller's bindings.
// Bindings shadow builtins of the same name.
func (e *Evaluator) environment(s ports.Script) starlark.StringDict {
	base := e.standard
	if s.Minimal {
		base = e.minimal
	}
	env := make(starlark.StringDict, len(base)+len(s.Bindings))
	for k, v := range base {
		env[k] = v
	}
	for k, v := range toStringDict(s.Bindings) {
		env[k] = v
	}
	return env
}

func (e *Evaluator) evalExpression(thread *starlark.Thread, name, src string, env starlark.StringDict) (domain.Value, error) {
	v, err := starlark.EvalOptions(e.fileOptions, thread, name, strings.TrimSpace(src), env)
	if err != nil {
		return nil, err
	}
	return fromStarlark(v), nil
}

func (e *Evaluator) execBlock(
	thread *starlark.Thread,
	name string,
	s ports.Script,
	env starlark.StringDict,
	printed *bytes.Buffer,
) (domain.Value, error) {
	globals, err := starlark.ExecFileOptions(e.fileOptions, thread, name, s.Source, env)
	if err != nil {
		return nil, err
	}

	for _, fn := range entryFunctions {
		callable, ok := globals[fn].(starlark.Callable)
		if !ok {
			continue
		}
		var args starlark.Tuple
		if f, ok := callable.(*starlark.Function); !ok || f.NumParams() > 0 {
			args = starlark.Tuple{toStarlark(s.Primary)}
		}
		v, err := starlark.Call(thread, callable, args, nil)
		if err != nil {
			return nil, err
		}
		return fromStarlark(v), nil
	}

	for _, varName := range resultVariables {
		if v, ok := globals[varName]; ok && v != starlark.None {
			return fromStarlark(v), nil
		}
	}

	if v, ok := e.evalLastLine(thread, name, s.Source, env, globals); ok {
		return v, nil
	}

	if text := strings.TrimRight(printed.String(), "\n"); text != "" {
		return text, nil
	}
	return nil, nil
}

// evalLastLine evaluates the last non-blank, non-comment line as an
// expression against the block's globals. Calls to print are skipped so the
// text is not emitted twice.
func (e *Evaluator) evalLastLine(
	thread *starlark.Thread,
	name, src string,
	env, globals starlark.StringDict,
) (domain.Value, bool) {
	lines := strings.Split(src, "\n")
	var last string
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		// An indented last line belongs to a compound statement.
		if strings.HasPrefix(lines[i], " ") || strings.HasPrefix(lines[i], "\t") {
			return nil, false
		}
		last = l
		break
	}
	if last == "" {
		return nil, false
	}

	expr, err := e.fileOptions.ParseExpr(name, last, 0)
	if err != nil {
		return nil, false
	}
	if call, ok := expr.(*syntax.CallExpr); ok {
		if id, ok := call.Fn.(*syntax.Ident); ok && id.Name == "print" {
			return nil, false
		}
	}

	scope := make(starlark.StringDict, len(env)+len(globals))
	for k, v := range env {
		scope[k] = v
	}
	for k, v := range globals {
		scope[k] = v
	}
	v, err := starlark.EvalExprOptions(e.fileOptions, thread, expr, scope)
	if err != nil || v == starlark.None {
		return nil, false
	}
	return fromStarlark(v), true
}

// classify maps interpreter errors onto the package's sentinel errors while
// keeping the interpreter's message and backtrace.
func (e *Evaluator) classify(ctx context.Context, thread *starlark.Thread, err error) error {
	if ctx.Err() != nil || thread.ExecutionSteps() >= e.maxSteps {
		return fmt.Errorf("%w: %v", ports.ErrScriptBudget, err)
	}

	var syntaxErr syntax.Error
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: %s", ports.ErrScriptSyntax, syntaxErr.Error())
	}
	var resolveErrs resolve.ErrorList
	if errors.As(err, &resolveErrs) {
		return fmt.Errorf("%w: %s", ports.ErrScriptSyntax, resolveErrs.Error())
	}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return fmt.Errorf("%w: %s", ports.ErrScriptRuntime, evalErr.Backtrace())
	}
	return fmt.Errorf("%w: %v", ports.ErrScriptRuntime, err)
}
