package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Signature identifies the effective inputs of a node: its lowercased kind,
// its content, and its input values sorted by port name. Two computations
// with equal signatures produce equal outputs for pure nodes.
type Signature string

// ComputeSignature builds the signature for a node state. Lists and maps are
// encoded structurally so that equal values always produce equal
// signatures regardless of map iteration order.
func ComputeSignature(kind, content string, inputs map[string]Value) Signature {
	var b strings.Builder
	b.WriteString(NormalizeKind(kind))
	b.WriteByte(0)
	b.WriteString(content)
	b.WriteByte(0)
	for _, port := range slices.Sorted(maps.Keys(inputs)) {
		b.WriteString(strconv.Quote(port))
		b.WriteByte('=')
		encodeValue(&b, inputs[port])
		b.WriteByte(';')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return Signature(hex.EncodeToString(sum[:]))
}

// encodeValue writes a type-tagged canonical encoding of v.
func encodeValue(b *strings.Builder, v Value) {
	switch t := normalizeNumber(v).(type) {
	case nil:
		b.WriteString("n")
	case string:
		b.WriteString("s")
		b.WriteString(strconv.Quote(t))
	case bool:
		b.WriteString("b")
		b.WriteString(strconv.FormatBool(t))
	case int64:
		b.WriteString("i")
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		// Integral floats encode like ints so 1 and 1.0 share a signature,
		// consistent with Equal.
		if t == float64(int64(t)) {
			b.WriteString("i")
			b.WriteString(strconv.FormatInt(int64(t), 10))
			return
		}
		b.WriteString("f")
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case []Value:
		b.WriteString("(")
		for _, el := range t {
			encodeValue(b, el)
			b.WriteByte(',')
		}
		b.WriteString(")")
	case map[string]Value:
		b.WriteString("{")
		for _, k := range slices.Sorted(maps.Keys(t)) {
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			encodeValue(b, t[k])
			b.WriteByte(',')
		}
		b.WriteString("}")
	default:
		b.WriteString("?")
		b.WriteString(Stringify(t))
	}
}
