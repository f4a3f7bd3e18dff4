package jsonutil

import (
	"encoding/json"
	"fmt"
)

// Stringify converts a decoded JSON value (as produced by unmarshalling into
// map[string]any) to a flat string, for CSV export cells. Integers round-trip
// without a trailing ".0"; structured values fall back to their compact JSON
// representation.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return fmt.Sprintf("%t", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case json.Number:
		return val.String()
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(encoded)
	}
}
