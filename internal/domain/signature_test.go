package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSignature(t *testing.T) {
	base := ComputeSignature("transform", "input * 2", map[string]Value{"input": int64(2)})

	tests := []struct {
		name    string
		kind    string
		content string
		inputs  map[string]Value
		same    bool
	}{
		{name: "identical", kind: "transform", content: "input * 2", inputs: map[string]Value{"input": int64(2)}, same: true},
		{name: "kind case and spacing", kind: " Transform ", content: "input * 2", inputs: map[string]Value{"input": int64(2)}, same: true},
		{name: "int width", kind: "transform", content: "input * 2", inputs: map[string]Value{"input": 2}, same: true},
		{name: "integral float", kind: "transform", content: "input * 2", inputs: map[string]Value{"input": 2.0}, same: true},
		{name: "different kind", kind: "process", content: "input * 2", inputs: map[string]Value{"input": int64(2)}},
		{name: "different content", kind: "transform", content: "input * 3", inputs: map[string]Value{"input": int64(2)}},
		{name: "different value", kind: "transform", content: "input * 2", inputs: map[string]Value{"input": int64(3)}},
		{name: "string instead of int", kind: "transform", content: "input * 2", inputs: map[string]Value{"input": "2"}},
		{name: "different port", kind: "transform", content: "input * 2", inputs: map[string]Value{"value": int64(2)}},
		{name: "extra nil port", kind: "transform", content: "input * 2", inputs: map[string]Value{"input": int64(2), "other": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSignature(tt.kind, tt.content, tt.inputs)
			if tt.same {
				assert.Equal(t, base, got)
			} else {
				assert.NotEqual(t, base, got)
			}
		})
	}
}

func TestComputeSignature_Structured(t *testing.T) {
	a := ComputeSignature("sink", "", map[string]Value{
		"items": []Value{"a", nil, map[string]Value{"x": int64(1), "y": true}},
		"go":    nil,
	})
	b := ComputeSignature("sink", "", map[string]Value{
		"go":    nil,
		"items": []Value{"a", nil, map[string]Value{"y": true, "x": 1}},
	})
	assert.Equal(t, a, b, "map order and int width must not matter")

	c := ComputeSignature("sink", "", map[string]Value{
		"items": []Value{"a", map[string]Value{"x": int64(1), "y": true}},
	})
	assert.NotEqual(t, a, c, "list positions are significant")

	assert.Len(t, string(a), 64)
}
