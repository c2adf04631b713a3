package tools

import (
	"sort"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Registry holds the declared operations. Immutable after construction.
type Registry struct {
	specs map[string]Spec
}

// NewRegistry builds the full static registry of spreadsheet operations.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]Spec)}
	for _, s := range builtinSpecs() {
		r.specs[s.Name] = s
	}
	return r
}

// Get retrieves an operation spec by name.
func (r *Registry) Get(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// All returns every spec sorted by name.
func (r *Registry) All() []Spec {
	out := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MCPTools renders every spec as an MCP tool schema.
func (r *Registry) MCPTools() []mcptypes.Tool {
	specs := r.All()
	out := make([]mcptypes.Tool, len(specs))
	for i, s := range specs {
		out[i] = s.MCPTool()
	}
	return out
}

// Names returns all operation names, sorted.
func (r *Registry) Names() []string {
	specs := r.All()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// Has reports whether an operation is declared.
func (r *Registry) Has(name string) bool {
	_, ok := r.specs[name]
	return ok
}

func builtinSpecs() []Spec {
	rangeArg := func(desc string) ArgSpec {
		return ArgSpec{Name: "range", Type: ArgString, Required: true, Description: desc}
	}

	return []Spec{
		{
			Name:        "read_range",
			Description: "Read values, formulas and formats from a range, e.g. Sheet1!A1:C10.",
			Args:        []ArgSpec{rangeArg("Range address to read")},
			Closed:      true,
			Class:       ClassRead,
		},
		{
			Name:        "write_values",
			Description: "Write a 2D array of raw values into a range. Overwrites existing content.",
			Args: []ArgSpec{
				rangeArg("Target range; its top-left cell anchors the data"),
				{Name: "values", Type: ArgArray, Required: true, Description: "2D array of rows of cell values"},
			},
			Closed: true,
			Class:  ClassBulkWrite,
		},
		{
			Name:        "write_formulas",
			Description: "Write a 2D array of formula strings (each starting with =) into a range.",
			Args: []ArgSpec{
				rangeArg("Target range; its top-left cell anchors the formulas"),
				{Name: "formulas", Type: ArgArray, Required: true, Description: "2D array of rows of formula strings"},
			},
			Closed: true,
			Class:  ClassBulkWrite,
		},
		{
			Name:        "format_range",
			Description: "Apply number format, bold/italic and colors to a range.",
			Args: []ArgSpec{
				rangeArg("Range to format"),
				{Name: "number_format", Type: ArgString, Description: "Number format code, e.g. 0.00 or #,##0"},
				{Name: "bold", Type: ArgBoolean, Description: "Bold on/off"},
				{Name: "italic", Type: ArgBoolean, Description: "Italic on/off"},
				{Name: "font_color", Type: ArgString, Description: "Font color, e.g. #FF0000"},
				{Name: "fill_color", Type: ArgString, Description: "Fill color, e.g. #FFFF00"},
			},
			Closed: true,
			Class:  ClassMutate,
		},
		{
			Name:        "sort_range",
			Description: "Sort the rows of a range by one of its columns.",
			Args: []ArgSpec{
				rangeArg("Range to sort"),
				{Name: "column", Type: ArgNumber, Required: true, Description: "1-based column offset within the range"},
				{Name: "descending", Type: ArgBoolean, Description: "Sort descending instead of ascending"},
			},
			Closed: true,
			Class:  ClassMutate,
		},
		{
			Name:        "filter_range",
			Description: "Filter the rows of a range by a criteria on one column (e.g. \">100\", \"=North\", \"overdue\").",
			Args: []ArgSpec{
				rangeArg("Range to filter"),
				{Name: "column", Type: ArgNumber, Required: true, Description: "1-based column offset within the range"},
				{Name: "criteria", Type: ArgString, Required: true, Description: "Filter criteria"},
			},
			Closed: true,
			Class:  ClassMutate,
		},
		{
			Name:        "add_sheet",
			Description: "Add a new empty worksheet.",
			Args: []ArgSpec{
				{Name: "name", Type: ArgString, Required: true, Description: "Name of the new sheet"},
			},
			Closed: true,
			Class:  ClassMutate,
		},
		{
			Name:        "rename_sheet",
			Description: "Rename an existing worksheet.",
			Args: []ArgSpec{
				{Name: "old_name", Type: ArgString, Required: true, Description: "Current sheet name"},
				{Name: "new_name", Type: ArgString, Required: true, Description: "New sheet name"},
			},
			Closed: true,
			Class:  ClassMutate,
		},
		{
			Name:        "add_comment",
			Description: "Attach a comment to a cell.",
			Args: []ArgSpec{
				rangeArg("Cell to comment on"),
				{Name: "text", Type: ArgString, Required: true, Description: "Comment text"},
			},
			Closed: true,
			Class:  ClassMutate,
		},
		{
			Name:        "conditional_format",
			Description: "Apply a conditional-formatting rule to a range.",
			Args: []ArgSpec{
				rangeArg("Range the rule applies to"),
				{Name: "condition", Type: ArgString, Required: true, Description: "Condition, e.g. \">100\" or \"contains:overdue\""},
				{Name: "fill_color", Type: ArgString, Description: "Fill color when the condition matches"},
				{Name: "font_color", Type: ArgString, Description: "Font color when the condition matches"},
			},
			Closed: true,
			Class:  ClassMutate,
		},
		{
			Name:        "data_validation",
			Description: "Restrict what may be entered in a range.",
			Args: []ArgSpec{
				rangeArg("Range the rule applies to"),
				{Name: "kind", Type: ArgString, Required: true, Description: "Rule kind: list, number or date"},
				{Name: "values", Type: ArgArray, Description: "Allowed values for list validation"},
				{Name: "min", Type: ArgString, Description: "Minimum for number/date validation"},
				{Name: "max", Type: ArgString, Description: "Maximum for number/date validation"},
			},
			Closed: true,
			Class:  ClassMutate,
		},
		{
			Name:        "create_chart",
			Description: "Create or update a chart from a data range.",
			Args: []ArgSpec{
				{Name: "name", Type: ArgString, Required: true, Description: "Chart name; reusing a name updates that chart"},
				{Name: "type", Type: ArgString, Required: true, Description: "Chart type: line, bar, column, pie, scatter"},
				{Name: "data_range", Type: ArgString, Required: true, Description: "Source data range"},
				{Name: "title", Type: ArgString, Description: "Chart title"},
			},
			Closed: true,
			Class:  ClassMutate,
		},
		{
			Name:        "create_pivot",
			Description: "Create or update a pivot table.",
			Args: []ArgSpec{
				{Name: "name", Type: ArgString, Required: true, Description: "Pivot name; reusing a name updates that pivot"},
				{Name: "source_range", Type: ArgString, Required: true, Description: "Source data range"},
				{Name: "target_cell", Type: ArgString, Required: true, Description: "Top-left cell of the pivot output"},
				{Name: "rows", Type: ArgArray, Description: "Row field names"},
				{Name: "columns", Type: ArgArray, Description: "Column field names"},
				{Name: "values", Type: ArgArray, Description: "Data field names"},
			},
			Closed: true,
			Class:  ClassMutate,
		},
		{
			Name:        "list_tables",
			Description: "List the tables defined in the workbook with their ranges and columns.",
			Closed:      true,
			Class:       ClassRead,
		},
		{
			Name:        "list_errors",
			Description: "List cells whose computed value is an error such as #DIV/0! or #REF!.",
			Closed:      true,
			Class:       ClassRead,
		},
		{
			Name:        "trace_precedents",
			Description: "List the ranges referenced by the formulas in a range.",
			Args:        []ArgSpec{rangeArg("Range whose formulas to inspect")},
			Closed:      true,
			Class:       ClassRead,
		},
		{
			Name:        "web_search",
			Description: "Search the web for external information, e.g. current exchange rates.",
			Args: []ArgSpec{
				{Name: "query", Type: ArgString, Required: true, Description: "Search query"},
			},
			Closed: true,
			Class:  ClassExternal,
		},
	}
}
