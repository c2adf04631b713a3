// Package tools declares the fixed set of spreadsheet operations the model
// may invoke, validates proposed calls against their schemas, and converts
// the schemas into each backend's native tool wire format.
//
// The operation set is static: it is declared once at process start and
// never discovered or extended at runtime.
package tools

import (
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ArgType is the primitive JSON type an argument must carry at runtime.
type ArgType string

const (
	ArgString  ArgType = "string"
	ArgNumber  ArgType = "number"
	ArgBoolean ArgType = "boolean"
	ArgArray   ArgType = "array"
	ArgObject  ArgType = "object"
)

// ArgSpec declares a single argument of an operation.
type ArgSpec struct {
	Name        string
	Type        ArgType
	Required    bool
	Description string
}

// Class buckets operations for risk assessment.
type Class int

const (
	// ClassRead: read-only against the document, never risky.
	ClassRead Class = iota
	// ClassMutate: changes the document; risky when approval mode is on.
	ClassMutate
	// ClassBulkWrite: mutating cell writes that additionally get a
	// WriteRisk inspection of the target range before approval.
	ClassBulkWrite
	// ClassExternal: leaves the document (network); always risky.
	ClassExternal
)

// Spec is one declared operation: its argument shape and its risk class.
// Closed specs reject arguments that are not declared.
type Spec struct {
	Name        string
	Description string
	Args        []ArgSpec
	Closed      bool
	Class       Class
}

// Arg returns the declaration for a named argument.
func (s Spec) Arg(name string) (ArgSpec, bool) {
	for _, a := range s.Args {
		if a.Name == name {
			return a, true
		}
	}
	return ArgSpec{}, false
}

// Mutating reports whether the operation changes the document.
func (s Spec) Mutating() bool {
	return s.Class == ClassMutate || s.Class == ClassBulkWrite
}

// MCPTool renders the spec as an MCP tool schema, the canonical form the
// provider converters start from.
func (s Spec) MCPTool() mcptypes.Tool {
	props := make(map[string]any, len(s.Args))
	var required []string
	for _, a := range s.Args {
		props[a.Name] = map[string]any{
			"type":        string(a.Type),
			"description": a.Description,
		}
		if a.Required {
			required = append(required, a.Name)
		}
	}
	return mcptypes.Tool{
		Name:        s.Name,
		Description: s.Description,
		InputSchema: mcptypes.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
	}
}
