// Package value converts raw configuration values to typed ones.
//
// Values come either from a decoded TOML document (string, int64, float64,
// bool, []any) or from the environment, where everything is a string. Each
// conversion accepts both forms and reports false when the value cannot be
// represented.
package value

import (
	"strconv"
	"strings"
	"time"
)

// String returns v as a string. Scalars from a TOML file are not stringified.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Int returns v as an int. Floats are truncated.
func Int(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	}
	return 0, false
}

// Float returns v as a float64. Integers are widened, so "age_weight = 1"
// reads as 1.0.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// Bool returns v as a bool. Strings accept the forms strconv.ParseBool does.
func Bool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	}
	return false, false
}

// Strings returns v as a string slice. A string is split on commas and
// blank items are dropped; non-string array items are skipped.
func Strings(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	case string:
		var out []string
		for _, part := range strings.Split(x, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, true
	}
	return nil, false
}

// Duration returns v as a time.Duration. Strings use time.ParseDuration
// ("90s", "5m"); bare integers are seconds.
func Duration(v any) (time.Duration, bool) {
	switch x := v.(type) {
	case time.Duration:
		return x, true
	case int:
		return time.Duration(x) * time.Second, true
	case int64:
		return time.Duration(x) * time.Second, true
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(x))
		return d, err == nil
	}
	return 0, false
}
