package script

import (
	"go.starlark.net/starlark"

	"github.com/ahrav/go-nodeflow/internal/domain"
)

// toStarlark converts an engine value into a Starlark value. Types outside
// the value model cross the boundary as their string form.
func toStarlark(v domain.Value) starlark.Value {
	switch t := v.(type) {
	case nil:
		return starlark.None
	case string:
		return starlark.String(t)
	case bool:
		return starlark.Bool(t)
	case int:
		return starlark.MakeInt(t)
	case int32:
		return starlark.MakeInt64(int64(t))
	case int64:
		return starlark.MakeInt64(t)
	case uint64:
		return starlark.MakeUint64(t)
	case float32:
		return starlark.Float(t)
	case float64:
		return starlark.Float(t)
	case []domain.Value:
		elems := make([]starlark.Value, len(t))
		for i, el := range t {
			elems[i] = toStarlark(el)
		}
		return starlark.NewList(elems)
	case map[string]domain.Value:
		d := starlark.NewDict(len(t))
		for k, el := range t {
			// SetKey only fails for unhashable keys or frozen dicts.
			_ = d.SetKey(starlark.String(k), toStarlark(el))
		}
		return d
	default:
		return starlark.String(domain.Stringify(t))
	}
}

// fromStarlark converts a Starlark value back into the engine value model.
// Tuples and sets become lists, dict keys are stringified, and values with
// no engine counterpart (functions, builtins) become their repr.
func fromStarlark(v starlark.Value) domain.Value {
	switch t := v.(type) {
	case nil, starlark.NoneType:
		return nil
	case starlark.String:
		return string(t)
	case starlark.Bool:
		return bool(t)
	case starlark.Int:
		if i, ok := t.Int64(); ok {
			return i
		}
		return t.String()
	case starlark.Float:
		return float64(t)
	case *starlark.List:
		out := make([]domain.Value, t.Len())
		for i := 0; i < t.Len(); i++ {
			out[i] = fromStarlark(t.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]domain.Value, len(t))
		for i, el := range t {
			out[i] = fromStarlark(el)
		}
		return out
	case *starlark.Dict:
		out := make(map[string]domain.Value, t.Len())
		for _, item := range t.Items() {
			key := item[0]
			if s, ok := key.(starlark.String); ok {
				out[string(s)] = fromStarlark(item[1])
				continue
			}
			out[key.String()] = fromStarlark(item[1])
		}
		return out
	case *starlark.Set:
		out := make([]domain.Value, 0, t.Len())
		iter := t.Iterate()
		defer iter.Done()
		var el starlark.Value
		for iter.Next(&el) {
			out = append(out, fromStarlark(el))
		}
		return out
	default:
		return v.String()
	}
}

// toStringDict converts bindings into Starlark globals.
func toStringDict(bindings map[string]domain.Value) starlark.StringDict {
	out := make(starlark.StringDict, len(bindings))
	for k, v := range bindings {
		out[k] = toStarlark(v)
	}
	return out
}
