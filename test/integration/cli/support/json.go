package support

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// lookupJSON follows a dotted path such as "files.0.error" into a decoded
// JSON document.
func lookupJSON(data []byte, field string) (any, error) {
	var current any
	if err := json.Unmarshal(data, &current); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w\n%s", err, data)
	}
	for _, part := range strings.Split(field, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found (missing %q)", field, part)
			}
			current = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("field %q: bad array index %q", field, part)
			}
			current = node[i]
		default:
			return nil, fmt.Errorf("field %q: %q is not an object or array", field, part)
		}
	}
	return current, nil
}

// jsonFieldEquals compares the printed form of a JSON value.
func jsonFieldEquals(data []byte, field, expected string) error {
	v, err := lookupJSON(data, field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("field %q is %q, want %q", field, got, expected)
	}
	return nil
}
