package catalog

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"
)

// Issue describes one problem found while validating a parameter blob.
type Issue struct {
	Param   string `json:"param"`
	Message string `json:"message"`
}

func (i Issue) String() string { return i.Param + ": " + i.Message }

// ValidateParameters checks params against the definition's parameter schema
// and returns a repaired copy. Unknown keys are removed, values of the wrong
// kind are replaced by the declared default (or removed when there is none),
// enum values outside allowedValues are treated the same way, and missing
// required parameters are filled from their defaults. The input map is not
// modified.
//
// A definition without a schema accepts nothing: every key is reported as
// unknown.
func ValidateParameters(def NodeDefinition, params map[string]any) (map[string]any, []Issue) {
	out := make(map[string]any, len(params))
	var issues []Issue

	keys := slices.Collect(maps.Keys(params))
	sort.Strings(keys)
	for _, name := range keys {
		v := params[name]
		spec, ok := def.Param(name)
		if !ok {
			issues = append(issues, Issue{Param: name, Message: "unknown parameter removed"})
			continue
		}
		if msg := checkKind(spec, v); msg != "" {
			if spec.Default != nil {
				out[name] = CloneValue(spec.Default)
				issues = append(issues, Issue{Param: name, Message: msg + "; default applied"})
			} else {
				issues = append(issues, Issue{Param: name, Message: msg + "; removed"})
			}
			continue
		}
		out[name] = v
	}

	for _, spec := range def.ParameterSchema {
		if !spec.Required {
			continue
		}
		if _, ok := out[spec.Name]; ok {
			continue
		}
		if spec.Default != nil {
			out[spec.Name] = CloneValue(spec.Default)
			continue
		}
		issues = append(issues, Issue{Param: spec.Name, Message: "required parameter missing"})
	}
	return out, issues
}

func checkKind(spec ParameterSpec, v any) string {
	switch spec.Kind {
	case KindString:
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("expected string, got %T", v)
		}
	case KindNumber:
		if _, ok := toFloat(v); !ok {
			return fmt.Sprintf("expected number, got %T", v)
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("expected boolean, got %T", v)
		}
	case KindObject:
		switch v.(type) {
		case map[string]any, []any:
		default:
			return fmt.Sprintf("expected object, got %T", v)
		}
	case KindEnum:
		if !slices.ContainsFunc(spec.AllowedValues, func(a any) bool { return equalValue(a, v) }) {
			return fmt.Sprintf("value %v not in allowed values", v)
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// equalValue compares scalars decoded from YAML or JSON, where the same
// number may arrive as int or float64.
func equalValue(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// CloneValue deep-copies a value made of maps, slices and scalars, as
// produced by YAML and JSON decoding.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneParameters(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// CloneParameters deep-copies a parameter map. A nil map yields an empty one.
func CloneParameters(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}
