package rules

import "strings"

// Query extracts the values at a dot-separated path inside a nested
// JSON-like object. Arrays along the path are traversed element-wise, so a
// path through a slice of objects yields one value per element. Missing or
// mistyped fields yield an empty result set, never an error.
func Query(obj map[string]any, path string) []any {
	if obj == nil || path == "" {
		return nil
	}

	current := []any{obj}

	for _, segment := range strings.Split(path, ".") {
		var next []any

		for _, candidate := range current {
			switch v := candidate.(type) {
			case map[string]any:
				if value, ok := v[segment]; ok {
					next = append(next, value)
				}
			case []any:
				for _, elem := range v {
					m, ok := elem.(map[string]any)
					if !ok {
						continue
					}

					if value, ok := m[segment]; ok {
						next = append(next, value)
					}
				}
			}
		}

		current = next
		if len(current) == 0 {
			return nil
		}
	}

	return current
}

// QueryOne returns the first value at the path, if any.
func QueryOne(obj map[string]any, path string) (any, bool) {
	values := Query(obj, path)
	if len(values) == 0 {
		return nil, false
	}

	return values[0], true
}

// Scalars expands one level of array nesting so scalar operators compare
// against elements rather than whole slices.
func Scalars(values []any) []any {
	out := make([]any, 0, len(values))

	for _, v := range values {
		if arr, ok := v.([]any); ok {
			out = append(out, arr...)

			continue
		}

		out = append(out, v)
	}

	return out
}
