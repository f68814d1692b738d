// Package template renders dynamic expressions embedded in rule values and
// step payloads.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Render evaluates a template string against the given data. The rendered
// output is coerced back into a JSON value when it parses as one, so a
// template producing `{"a": 1}` yields a map and one producing `42` yields a
// number.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("render").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"ago": func(expr string) string {
				t, ok := RelativeDate(expr+" ago", time.Now())
				if !ok {
					return ""
				}

				return t.UTC().Format(time.RFC3339)
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", result, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderMap renders every string leaf of a template map, returning a new map
// with rendered values. Non-string leaves pass through untouched.
func RenderMap(tmpl map[string]any, data any) (map[string]any, error) {
	out := make(map[string]any, len(tmpl))

	for key, value := range tmpl {
		switch v := value.(type) {
		case string:
			rendered, err := Render(v, data)
			if err != nil {
				return nil, fmt.Errorf("failed to render field %q: %w", key, err)
			}

			out[key] = rendered
		case map[string]any:
			rendered, err := RenderMap(v, data)
			if err != nil {
				return nil, err
			}

			out[key] = rendered
		default:
			out[key] = value
		}
	}

	return out, nil
}
