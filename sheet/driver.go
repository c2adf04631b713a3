package sheet

// TableInfo describes one table known to the document.
type TableInfo struct {
	Name    string
	Address string
	Columns []string
}

// ChartInfo describes one chart.
type ChartInfo struct {
	Name      string
	Type      string
	DataRange string
	Title     string
	SheetName string
}

// PivotInfo describes one pivot table.
type PivotInfo struct {
	Name        string
	SourceRange string
	TargetCell  string
	RowFields   []string
	ColFields   []string
	DataFields  []string
}

// CellError is a cell whose computed value is an error (#DIV/0!, #REF!, ...).
type CellError struct {
	Address string
	Error   string
}

// SortSpec orders a range by one column.
type SortSpec struct {
	Column     int // 1-based column offset within the range
	Descending bool
}

// FormatSpec describes formatting applied to a range. Empty fields are
// left untouched.
type FormatSpec struct {
	NumberFormat string
	Bold         *bool
	Italic       *bool
	FontColor    string
	FillColor    string
}

// ConditionalRule is a conditional-formatting rule.
type ConditionalRule struct {
	Condition string // e.g. ">100", "=0", "contains:overdue"
	FillColor string
	FontColor string
}

// ValidationRule restricts what may be entered in a range.
type ValidationRule struct {
	Kind    string // "list", "number", "date"
	Values  []string
	Min     string
	Max     string
	Message string
}

// Driver is the document-manipulation boundary. Implementations are thin
// I/O wrappers over a host document with no interesting internal state;
// the in-memory Workbook in this package is the reference implementation.
//
// Mutating calls do not themselves produce change records: the caller is
// responsible for pairing every mutation with a pre- and post-snapshot so
// the change ledger can compute a diff.
type Driver interface {
	// ReadRange captures the current state of a range.
	ReadRange(address string) (*RangeSnapshot, error)

	// WriteValues writes a grid of raw values anchored at the range's
	// top-left corner. Writing a value clears any formula in the cell.
	WriteValues(address string, data [][]any) error

	// WriteFormulas writes a grid of formula strings.
	WriteFormulas(address string, formulas [][]string) error

	// ApplySnapshot restores a range to a previously captured snapshot:
	// values, formulas and formats. Used by the change ledger to revert.
	ApplySnapshot(snap *RangeSnapshot) error

	// Discovery, read-only.
	ActiveSheet() string
	ActiveSelection() string
	UsedRange(sheetName string) (string, error)
	ListTables() ([]TableInfo, error)
	ListCharts() ([]ChartInfo, error)
	ListPivots() ([]PivotInfo, error)
	ListErrors() ([]CellError, error)
	TracePrecedents(address string) ([]string, error)

	// Mutations beyond cell writes.
	FormatRange(address string, spec FormatSpec) error
	SortRange(address string, spec SortSpec) error
	FilterRange(address string, column int, criteria string) error
	AddSheet(name string) error
	RenameSheet(oldName, newName string) error
	AddComment(address, text string) error
	SetConditionalFormat(address string, rule ConditionalRule) error
	SetDataValidation(address string, rule ValidationRule) error
	CreateChart(info ChartInfo) error
	CreatePivot(info PivotInfo) error
}
