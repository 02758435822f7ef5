// Package logic provides the connection-logic strategies that decide how
// an edge combines the value already held by its destination port with a
// newly arriving value.
package logic

import (
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// Registered strategy names.
const (
	NamePassthrough = "passthrough"
	NameList        = "list"
	NameUnique      = "unique"
	NameConcat      = "concat"
	NameSwitch      = "switch"
	NameLatest      = "latest"
	NameCoalesce    = "coalesce"
	NamePyEval      = "py_eval"
	NamePyMap       = "py_map"
	NamePyFilter    = "py_filter"
)

// Builtins returns every built-in strategy. The scripted strategies run
// their expressions through evaluator.
func Builtins(evaluator ports.Evaluator) []ports.Strategy {
	return []ports.Strategy{
		Passthrough{},
		List{},
		Unique{},
		Concat{},
		Switch{},
		Latest{},
		Coalesce{},
		NewPyEval(evaluator),
		NewPyMap(evaluator),
		NewPyFilter(evaluator),
	}
}

// stringOption returns config[key] when it holds a string and def otherwise.
func stringOption(config map[string]any, key, def string) string {
	if s, ok := config[key].(string); ok {
		return s
	}
	return def
}

// boolOption returns config[key] when it holds a bool and def otherwise.
func boolOption(config map[string]any, key string, def bool) bool {
	if b, ok := config[key].(bool); ok {
		return b
	}
	return def
}

// objectSchema builds a JSON schema for a flat config object.
func objectSchema(properties map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}
