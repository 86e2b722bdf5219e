package common

import (
	"fmt"
	"math"
	"strings"
)

// Argument names shared by the inbox tools.
const (
	ArgEmailID  = "emailId"
	ArgEmailIDs = "emailIds"
)

// EmailIDFromArgs returns the email a call acts on, for audit and span
// attributes. Batch calls report their IDs comma-separated.
func EmailIDFromArgs(args map[string]any) string {
	if id, ok := args[ArgEmailID].(string); ok {
		return strings.TrimSpace(id)
	}
	switch v := args[ArgEmailIDs].(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				ids = append(ids, s)
			}
		}
		return strings.Join(ids, ",")
	}
	return ""
}

// StringArg returns a trimmed string argument, or "" when absent.
func StringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

// RequiredStringArg returns a non-empty string argument.
func RequiredStringArg(args map[string]any, name string) (string, error) {
	s := StringArg(args, name)
	if s == "" {
		return "", fmt.Errorf("'%s' is required", name)
	}
	return s, nil
}

// IntArg returns a whole-number argument in [1, upper], or def when absent.
// JSON numbers arrive as float64.
func IntArg(args map[string]any, name string, def, upper int) (int, error) {
	var n float64
	switch v := args[name].(type) {
	case nil:
		return def, nil
	case float64:
		n = v
	case int:
		n = float64(v)
	default:
		return 0, fmt.Errorf("'%s' must be a number", name)
	}
	if n != math.Trunc(n) || n < 1 || n > float64(upper) {
		return 0, fmt.Errorf("'%s' must be a whole number between 1 and %d", name, upper)
	}
	return int(n), nil
}
