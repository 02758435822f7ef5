package script

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// MinimalBuiltins is the builtin allowlist for connection-logic expressions.
var MinimalBuiltins = []string{
	"len", "sum", "min", "max", "sorted", "any", "all",
	"str", "int", "float", "bool", "list", "dict", "set",
}

// StandardBuiltins is the builtin allowlist for node snippets.
var StandardBuiltins = append(append([]string{}, MinimalBuiltins...), "abs", "range", "print")

// constants stay visible in every sandbox.
var constants = map[string]bool{"None": true, "True": true, "False": true}

// custom holds builtins the Starlark universe lacks or that must behave
// like their Python counterparts.
var custom = starlark.StringDict{
	"sum": starlark.NewBuiltin("sum", builtinSum),
	"abs": starlark.NewBuiltin("abs", builtinAbs),
}

// buildPredeclared returns the predeclared environment for an allowlist.
// Universe names outside the allowlist are shadowed by a builtin that
// fails, so the sandbox exposes exactly the listed functions.
func buildPredeclared(allow []string) starlark.StringDict {
	allowed := make(map[string]bool, len(allow))
	for _, name := range allow {
		allowed[name] = true
	}

	env := make(starlark.StringDict, len(starlark.Universe)+len(custom))
	for name := range starlark.Universe {
		if constants[name] || allowed[name] {
			continue
		}
		env[name] = disabled(name)
	}
	for _, name := range allow {
		if fn, ok := custom[name]; ok {
			env[name] = fn
			continue
		}
		if fn, ok := starlark.Universe[name]; ok {
			env[name] = fn
		}
	}
	return env
}

func disabled(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		return nil, fmt.Errorf("%s is not available in this sandbox", name)
	})
}

// builtinSum implements sum(iterable, start=0).
func builtinSum(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var start starlark.Value = starlark.MakeInt(0)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &iterable, &start); err != nil {
		return nil, err
	}

	iter := iterable.Iterate()
	defer iter.Done()

	acc := start
	var x starlark.Value
	for iter.Next(&x) {
		if _, ok := x.(starlark.String); ok {
			return nil, fmt.Errorf("sum: can't sum strings, use str.join")
		}
		next, err := starlark.Binary(syntax.PLUS, acc, x)
		if err != nil {
			return nil, fmt.Errorf("sum: %w", err)
		}
		acc = next
	}
	return acc, nil
}

// builtinAbs implements abs(x) for ints and floats.
func builtinAbs(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}

	switch t := x.(type) {
	case starlark.Int:
		if t.Sign() < 0 {
			return starlark.Binary(syntax.MINUS, starlark.MakeInt(0), t)
		}
		return t, nil
	case starlark.Float:
		return starlark.Float(math.Abs(float64(t))), nil
	default:
		return nil, fmt.Errorf("abs: got %s, want int or float", x.Type())
	}
}
