package script

import (
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ahrav/go-nodeflow/internal/domain"
)

// ParseLiteral converts literal source text into a value. Only strings,
// numbers, booleans, None, and lists, tuples, and dicts of those are
// accepted; identifiers and calls are rejected without being evaluated.
func (e *Evaluator) ParseLiteral(src string) (domain.Value, bool) {
	expr, err := e.fileOptions.ParseExpr("literal", src, 0)
	if err != nil || !isLiteral(expr) {
		return nil, false
	}

	thread := &starlark.Thread{Name: "literal"}
	v, err := starlark.EvalExprOptions(e.fileOptions, thread, expr, nil)
	if err != nil {
		return nil, false
	}
	return fromStarlark(v), true
}

func isLiteral(expr syntax.Expr) bool {
	switch t := expr.(type) {
	case *syntax.Literal:
		return true
	case *syntax.Ident:
		return constants[t.Name]
	case *syntax.ParenExpr:
		return isLiteral(t.X)
	case *syntax.UnaryExpr:
		return (t.Op == syntax.MINUS || t.Op == syntax.PLUS) && isLiteral(t.X)
	case *syntax.ListExpr:
		return allLiteral(t.List)
	case *syntax.TupleExpr:
		return allLiteral(t.List)
	case *syntax.DictExpr:
		for _, entry := range t.List {
			e, ok := entry.(*syntax.DictEntry)
			if !ok || !isLiteral(e.Key) || !isLiteral(e.Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func allLiteral(list []syntax.Expr) bool {
	for _, el := range list {
		if !isLiteral(el) {
			return false
		}
	}
	return true
}
