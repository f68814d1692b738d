package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"name":  "Ada",
			"plan":  "pro",
			"score": float64(42),
		},
		"event": map[string]any{
			"name": "purchase",
		},
	}

	tests := []struct {
		name     string
		template string
		expected any
	}{
		{
			name:     "plain string passes through",
			template: "hello",
			expected: "hello",
		},
		{
			name:     "user field",
			template: "{{.user.name}}",
			expected: "Ada",
		},
		{
			name:     "interpolation inside text",
			template: "plan: {{.user.plan}}",
			expected: "plan: pro",
		},
		{
			name:     "numeric output coerced to float",
			template: "{{.user.score}}",
			expected: float64(42),
		},
		{
			name:     "boolean output coerced",
			template: "true",
			expected: true,
		},
		{
			name:     "json object output parsed",
			template: `{"name": "{{.user.name}}"}`,
			expected: map[string]any{"name": "Ada"},
		},
		{
			name:     "json array output parsed",
			template: `[1, 2]`,
			expected: []any{float64(1), float64(2)},
		},
		{
			name:     "event field",
			template: "{{.event.name}}",
			expected: "purchase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRenderInvalidTemplate(t *testing.T) {
	_, err := Render("{{.user.name", nil)
	assert.Error(t, err)
}

func TestRenderMap(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{"name": "Ada", "visits": float64(3)},
	}

	out, err := RenderMap(map[string]any{
		"greeting": "hi {{.user.name}}",
		"visits":   "{{.user.visits}}",
		"static":   float64(7),
		"nested": map[string]any{
			"name": "{{.user.name}}",
		},
	}, data)
	require.NoError(t, err)

	assert.Equal(t, "hi Ada", out["greeting"])
	assert.Equal(t, float64(3), out["visits"])
	assert.Equal(t, float64(7), out["static"])
	assert.Equal(t, map[string]any{"name": "Ada"}, out["nested"])
}

func TestRenderMapReportsFailingField(t *testing.T) {
	_, err := RenderMap(map[string]any{"bad": "{{.user.name"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}
