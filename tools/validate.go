package tools

import (
	"math"
	"slices"
	"sort"
	"strings"
)

// validateArgs checks args against schema: required fields present and
// non-null, declared fields of the declared JSON type, enum membership.
// Undeclared fields are ignored.
func validateArgs(tool string, schema InputSchema, args map[string]any) error {
	for _, name := range schema.Required {
		if v, ok := args[name]; !ok || v == nil {
			return invalidArgs(tool, "missing required argument %q", name)
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, declared := schema.Properties[name]
		v := args[name]
		if !declared || v == nil {
			continue
		}
		if !matchesType(prop.Type, v) {
			return invalidArgs(tool, "argument %q must be of type %s", name, prop.Type)
		}
		if len(prop.Enum) > 0 {
			s, _ := v.(string)
			if !slices.Contains(prop.Enum, s) {
				return invalidArgs(tool, "argument %q must be one of %s", name, strings.Join(prop.Enum, ", "))
			}
		}
	}
	return nil
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := toFloat(v)
		return ok
	case "integer":
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
