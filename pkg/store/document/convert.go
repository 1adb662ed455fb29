package document

import "time"

// AsTime extracts a time.Time from a document field value. Real backends
// round-trip values through JSON, so timestamps usually arrive as
// RFC3339 strings; in-memory test doubles may keep the original time.Time
// unchanged. Both are accepted so callers don't need to care which.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// AsInt extracts an int from a document field value, accepting both the
// float64 JSON numeric decode and native Go integer types.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// AsInt64 extracts an int64 from a document field value.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// AsString extracts a string from a document field value.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
