package tools

import (
	"encoding/json"
	"fmt"
	"sort"

	"gridpilot/model"
)

// Validate checks a proposed call against its declared schema. It returns
// nil when the call is well-formed, otherwise an error whose message is
// the first failure found (unknown operation, then missing required
// arguments, then undeclared arguments, then type mismatches). Validation
// must run before any side-effecting call; a failed validation never
// reaches the document driver.
func (r *Registry) Validate(call model.ToolCall) error {
	spec, ok := r.specs[call.Name]
	if !ok {
		return fmt.Errorf("unknown tool %q", call.Name)
	}

	for _, a := range spec.Args {
		if !a.Required {
			continue
		}
		if _, present := call.Arguments[a.Name]; !present {
			return fmt.Errorf("tool %q: missing required argument %q", call.Name, a.Name)
		}
	}

	// Deterministic iteration so the "first failure" is stable.
	names := make([]string, 0, len(call.Arguments))
	for name := range call.Arguments {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		decl, declared := spec.Arg(name)
		if !declared {
			if spec.Closed {
				return fmt.Errorf("tool %q: unexpected argument %q", call.Name, name)
			}
			continue
		}
		if err := checkType(call.Arguments[name], decl.Type); err != nil {
			return fmt.Errorf("tool %q: argument %q %v", call.Name, name, err)
		}
	}

	return nil
}

func checkType(v any, want ArgType) error {
	switch want {
	case ArgString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("must be a string, got %s", jsonTypeName(v))
		}
	case ArgNumber:
		switch v.(type) {
		case float64, float32, int, int64, json.Number:
		default:
			return fmt.Errorf("must be a number, got %s", jsonTypeName(v))
		}
	case ArgBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("must be a boolean, got %s", jsonTypeName(v))
		}
	case ArgArray:
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("must be an array, got %s", jsonTypeName(v))
		}
	case ArgObject:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("must be an object, got %s", jsonTypeName(v))
		}
	}
	return nil
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
