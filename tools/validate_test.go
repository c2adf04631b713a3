package tools

import (
	"strings"
	"testing"

	"gridpilot/model"
)

func TestValidate(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		call    model.ToolCall
		wantErr string // empty means the call must be accepted
	}{
		{
			name: "valid read",
			call: model.ToolCall{
				Name:      "read_range",
				Arguments: map[string]any{"range": "Sheet1!A1:C3"},
			},
		},
		{
			name: "valid bulk write",
			call: model.ToolCall{
				Name: "write_values",
				Arguments: map[string]any{
					"range":  "Sheet1!A1:B2",
					"values": []any{[]any{1.0, 2.0}, []any{3.0, 4.0}},
				},
			},
		},
		{
			name: "unknown operation",
			call: model.ToolCall{
				Name:      "delete_workbook",
				Arguments: map[string]any{},
			},
			wantErr: "unknown tool",
		},
		{
			name: "missing required argument names it",
			call: model.ToolCall{
				Name:      "write_values",
				Arguments: map[string]any{"range": "Sheet1!A1"},
			},
			wantErr: `missing required argument "values"`,
		},
		{
			name: "undeclared argument under closed schema",
			call: model.ToolCall{
				Name: "read_range",
				Arguments: map[string]any{
					"range": "Sheet1!A1",
					"force": true,
				},
			},
			wantErr: `unexpected argument "force"`,
		},
		{
			name: "wrong argument type",
			call: model.ToolCall{
				Name: "sort_range",
				Arguments: map[string]any{
					"range":  "Sheet1!A1:B9",
					"column": "first",
				},
			},
			wantErr: "must be a number",
		},
		{
			name: "optional argument wrong type",
			call: model.ToolCall{
				Name: "sort_range",
				Arguments: map[string]any{
					"range":      "Sheet1!A1:B9",
					"column":     1.0,
					"descending": "yes",
				},
			},
			wantErr: "must be a boolean",
		},
		{
			name: "optional arguments may be absent",
			call: model.ToolCall{
				Name: "format_range",
				Arguments: map[string]any{
					"range": "Sheet1!A1:A9",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.call)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate rejected valid call: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate accepted call, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRegistryDeclaresExpectedOperations(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{
		"read_range", "write_values", "write_formulas", "format_range",
		"sort_range", "filter_range", "add_sheet", "rename_sheet",
		"add_comment", "conditional_format", "data_validation",
		"create_chart", "create_pivot", "list_tables", "list_errors",
		"trace_precedents", "web_search",
	} {
		if !r.Has(name) {
			t.Errorf("registry is missing operation %q", name)
		}
	}
}

func TestRegistryClasses(t *testing.T) {
	r := NewRegistry()

	web, _ := r.Get("web_search")
	if web.Class != ClassExternal {
		t.Errorf("web_search class = %v, want ClassExternal", web.Class)
	}

	for _, name := range []string{"write_values", "write_formulas"} {
		s, _ := r.Get(name)
		if s.Class != ClassBulkWrite {
			t.Errorf("%s class = %v, want ClassBulkWrite", name, s.Class)
		}
	}

	read, _ := r.Get("read_range")
	if read.Mutating() {
		t.Error("read_range reported as mutating")
	}
}

func TestMCPToolRendering(t *testing.T) {
	r := NewRegistry()
	spec, _ := r.Get("write_values")
	tool := spec.MCPTool()

	if tool.InputSchema.Type != "object" {
		t.Errorf("schema type = %q, want object", tool.InputSchema.Type)
	}
	if len(tool.InputSchema.Required) != 2 {
		t.Errorf("required = %v, want range and values", tool.InputSchema.Required)
	}
	if _, ok := tool.InputSchema.Properties["values"]; !ok {
		t.Error("schema missing values property")
	}
}
