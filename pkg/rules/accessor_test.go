package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery(t *testing.T) {
	obj := map[string]any{
		"name": "Ada",
		"address": map[string]any{
			"city": "London",
		},
		"orders": []any{
			map[string]any{"total": float64(10)},
			map[string]any{"total": float64(20)},
			"not-an-object",
		},
		"tags": []any{"a", "b"},
	}

	tests := []struct {
		name string
		path string
		want []any
	}{
		{"top level", "name", []any{"Ada"}},
		{"nested", "address.city", []any{"London"}},
		{"through array", "orders.total", []any{float64(10), float64(20)}},
		{"array value", "tags", []any{[]any{"a", "b"}}},
		{"missing", "address.zip", nil},
		{"missing root", "nope.deep", nil},
		{"empty path", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Query(obj, tt.path))
		})
	}
}

func TestQueryNilObject(t *testing.T) {
	assert.Nil(t, Query(nil, "a.b"))
}

func TestQueryOne(t *testing.T) {
	obj := map[string]any{"a": map[string]any{"b": "v"}}

	got, ok := QueryOne(obj, "a.b")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = QueryOne(obj, "a.c")
	assert.False(t, ok)
}

func TestScalars(t *testing.T) {
	values := []any{"x", []any{"y", "z"}, float64(1)}

	assert.Equal(t, []any{"x", "y", "z", float64(1)}, Scalars(values))
}
