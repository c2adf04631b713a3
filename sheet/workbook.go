package sheet

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type cell struct {
	value   any
	formula string
	format  string
}

type worksheet struct {
	cells map[[2]int]*cell // [row, col], 1-based
}

func newWorksheet() *worksheet {
	return &worksheet{cells: make(map[[2]int]*cell)}
}

func (ws *worksheet) at(row, col int) *cell {
	if c, ok := ws.cells[[2]int{row, col}]; ok {
		return c
	}
	c := &cell{}
	ws.cells[[2]int{row, col}] = c
	return c
}

func (ws *worksheet) peek(row, col int) *cell {
	return ws.cells[[2]int{row, col}]
}

// Workbook is an in-memory Driver implementation. It backs tests and the
// standalone CLI; a host-document binding (Office.js bridge, Sheets API)
// would implement the same interface.
type Workbook struct {
	sheets    map[string]*worksheet
	order     []string
	active    string
	selection string
	tables    []TableInfo
	charts    []ChartInfo
	pivots    []PivotInfo
}

// NewWorkbook creates a workbook with a single empty sheet.
func NewWorkbook(firstSheet string) *Workbook {
	if firstSheet == "" {
		firstSheet = "Sheet1"
	}
	return &Workbook{
		sheets:    map[string]*worksheet{firstSheet: newWorksheet()},
		order:     []string{firstSheet},
		active:    firstSheet,
		selection: firstSheet + "!A1",
	}
}

// SetSelection updates the active selection address.
func (w *Workbook) SetSelection(address string) {
	w.selection = Normalize(address)
	if addr, err := ParseAddress(address); err == nil && addr.Sheet != "" {
		if _, ok := w.sheets[addr.Sheet]; ok {
			w.active = addr.Sheet
		}
	}
}

func (w *Workbook) resolve(address string) (Address, *worksheet, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return Address{}, nil, err
	}
	if addr.Sheet == "" {
		addr.Sheet = w.active
	}
	ws, ok := w.sheets[addr.Sheet]
	if !ok {
		return Address{}, nil, fmt.Errorf("unknown sheet %q", addr.Sheet)
	}
	return addr, ws, nil
}

// ReadRange implements Driver.
func (w *Workbook) ReadRange(address string) (*RangeSnapshot, error) {
	addr, ws, err := w.resolve(address)
	if err != nil {
		return nil, err
	}
	snap := NewRangeSnapshot(addr)
	for r := 0; r < addr.Rows(); r++ {
		for c := 0; c < addr.Cols(); c++ {
			if cl := ws.peek(addr.StartRow+r, addr.StartCol+c); cl != nil {
				snap.Values[r][c] = cl.value
				snap.Formulas[r][c] = cl.formula
				snap.Formats[r][c] = cl.format
			}
		}
	}
	return snap, nil
}

// WriteValues implements Driver. The data grid is anchored at the range's
// top-left corner; writing a value clears any formula in the cell.
func (w *Workbook) WriteValues(address string, data [][]any) error {
	addr, ws, err := w.resolve(address)
	if err != nil {
		return err
	}
	for r, row := range data {
		for c, v := range row {
			cl := ws.at(addr.StartRow+r, addr.StartCol+c)
			cl.value = v
			cl.formula = ""
		}
	}
	return nil
}

// WriteFormulas implements Driver.
func (w *Workbook) WriteFormulas(address string, formulas [][]string) error {
	addr, ws, err := w.resolve(address)
	if err != nil {
		return err
	}
	for r, row := range formulas {
		for c, f := range row {
			cl := ws.at(addr.StartRow+r, addr.StartCol+c)
			cl.formula = f
		}
	}
	return nil
}

// ApplySnapshot implements Driver: restores values, formulas and formats
// for the snapshot's full range, clearing cells the snapshot holds as
// empty.
func (w *Workbook) ApplySnapshot(snap *RangeSnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	addr, ws, err := w.resolve(snap.Address.String())
	if err != nil {
		return err
	}
	for r := 0; r < addr.Rows(); r++ {
		for c := 0; c < addr.Cols(); c++ {
			cl := ws.at(addr.StartRow+r, addr.StartCol+c)
			cl.value = snap.ValueAt(r, c)
			cl.formula = snap.FormulaAt(r, c)
			cl.format = snap.FormatAt(r, c)
		}
	}
	return nil
}

// ActiveSheet implements Driver.
func (w *Workbook) ActiveSheet() string { return w.active }

// ActiveSelection implements Driver.
func (w *Workbook) ActiveSelection() string { return w.selection }

// UsedRange implements Driver: the bounding box of all non-empty cells.
func (w *Workbook) UsedRange(sheetName string) (string, error) {
	if sheetName == "" {
		sheetName = w.active
	}
	ws, ok := w.sheets[sheetName]
	if !ok {
		return "", fmt.Errorf("unknown sheet %q", sheetName)
	}
	minR, minC, maxR, maxC := 0, 0, 0, 0
	for pos, cl := range ws.cells {
		if cl.value == nil && cl.formula == "" && cl.format == "" {
			continue
		}
		r, c := pos[0], pos[1]
		if minR == 0 || r < minR {
			minR = r
		}
		if minC == 0 || c < minC {
			minC = c
		}
		if r > maxR {
			maxR = r
		}
		if c > maxC {
			maxC = c
		}
	}
	if minR == 0 {
		return sheetName + "!A1", nil
	}
	addr := Address{Sheet: sheetName, StartRow: minR, StartCol: minC, EndRow: maxR, EndCol: maxC}
	return addr.String(), nil
}

// ListTables implements Driver.
func (w *Workbook) ListTables() ([]TableInfo, error) { return w.tables, nil }

// ListCharts implements Driver.
func (w *Workbook) ListCharts() ([]ChartInfo, error) { return w.charts, nil }

// ListPivots implements Driver.
func (w *Workbook) ListPivots() ([]PivotInfo, error) { return w.pivots, nil }

// ListErrors implements Driver: cells whose computed value is an error
// literal such as #DIV/0! or #REF!.
func (w *Workbook) ListErrors() ([]CellError, error) {
	var errs []CellError
	for name, ws := range w.sheets {
		for pos, cl := range ws.cells {
			s, ok := cl.value.(string)
			if !ok || !strings.HasPrefix(s, "#") {
				continue
			}
			addr := Address{Sheet: name, StartRow: pos[0], StartCol: pos[1], EndRow: pos[0], EndCol: pos[1]}
			errs = append(errs, CellError{Address: addr.String(), Error: s})
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Address < errs[j].Address })
	return errs, nil
}

var formulaRefPattern = regexp.MustCompile(`(?:'[^']+'|[A-Za-z0-9_]+)?!?\$?[A-Za-z]{1,3}\$?[0-9]+(?::\$?[A-Za-z]{1,3}\$?[0-9]+)?`)

// TracePrecedents implements Driver: the ranges referenced by the
// formulas inside the given range.
func (w *Workbook) TracePrecedents(address string) ([]string, error) {
	snap, err := w.ReadRange(address)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var refs []string
	for r := range snap.Formulas {
		for c := range snap.Formulas[r] {
			f := snap.Formulas[r][c]
			if f == "" {
				continue
			}
			for _, m := range formulaRefPattern.FindAllString(f, -1) {
				norm := Normalize(m)
				if !seen[norm] {
					seen[norm] = true
					refs = append(refs, norm)
				}
			}
		}
	}
	return refs, nil
}

// FormatRange implements Driver.
func (w *Workbook) FormatRange(address string, spec FormatSpec) error {
	addr, ws, err := w.resolve(address)
	if err != nil {
		return err
	}
	for r := 0; r < addr.Rows(); r++ {
		for c := 0; c < addr.Cols(); c++ {
			cl := ws.at(addr.StartRow+r, addr.StartCol+c)
			cl.format = renderFormat(cl.format, spec)
		}
	}
	return nil
}

func renderFormat(existing string, spec FormatSpec) string {
	parts := []string{}
	if spec.NumberFormat != "" {
		parts = append(parts, spec.NumberFormat)
	} else if existing != "" {
		parts = append(parts, existing)
	}
	if spec.Bold != nil && *spec.Bold {
		parts = append(parts, "bold")
	}
	if spec.Italic != nil && *spec.Italic {
		parts = append(parts, "italic")
	}
	if spec.FontColor != "" {
		parts = append(parts, "fg:"+spec.FontColor)
	}
	if spec.FillColor != "" {
		parts = append(parts, "bg:"+spec.FillColor)
	}
	return strings.Join(parts, ";")
}

// SortRange implements Driver: stable sort of the range's rows by one
// column. Formulas travel with their row.
func (w *Workbook) SortRange(address string, spec SortSpec) error {
	snap, err := w.ReadRange(address)
	if err != nil {
		return err
	}
	if spec.Column < 1 || spec.Column > snap.Address.Cols() {
		return fmt.Errorf("sort column %d out of range for %s", spec.Column, snap.Address.String())
	}

	order := make([]int, snap.Address.Rows())
	for i := range order {
		order[i] = i
	}
	col := spec.Column - 1
	sort.SliceStable(order, func(i, j int) bool {
		less := compareCells(snap.ValueAt(order[i], col), snap.ValueAt(order[j], col))
		if spec.Descending {
			return !less
		}
		return less
	})

	sorted := NewRangeSnapshot(snap.Address)
	for to, from := range order {
		for c := 0; c < snap.Address.Cols(); c++ {
			sorted.Values[to][c] = snap.ValueAt(from, c)
			sorted.Formulas[to][c] = snap.FormulaAt(from, c)
			sorted.Formats[to][c] = snap.FormatAt(from, c)
		}
	}
	return w.ApplySnapshot(sorted)
}

func compareCells(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af < bf
	}
	if aNum != bNum {
		return aNum // numbers sort before text
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// FilterRange implements Driver: clears rows that do not match the
// criteria in the given column. Criteria supports "=x", ">n", "<n" and
// bare substring match.
func (w *Workbook) FilterRange(address string, column int, criteria string) error {
	snap, err := w.ReadRange(address)
	if err != nil {
		return err
	}
	if column < 1 || column > snap.Address.Cols() {
		return fmt.Errorf("filter column %d out of range for %s", column, snap.Address.String())
	}

	filtered := NewRangeSnapshot(snap.Address)
	out := 0
	for r := 0; r < snap.Address.Rows(); r++ {
		if !matchCriteria(snap.ValueAt(r, column-1), criteria) {
			continue
		}
		for c := 0; c < snap.Address.Cols(); c++ {
			filtered.Values[out][c] = snap.ValueAt(r, c)
			filtered.Formulas[out][c] = snap.FormulaAt(r, c)
			filtered.Formats[out][c] = snap.FormatAt(r, c)
		}
		out++
	}
	return w.ApplySnapshot(filtered)
}

func matchCriteria(v any, criteria string) bool {
	text := fmt.Sprintf("%v", v)
	switch {
	case strings.HasPrefix(criteria, "="):
		return text == strings.TrimPrefix(criteria, "=")
	case strings.HasPrefix(criteria, ">"), strings.HasPrefix(criteria, "<"):
		n, numeric := toFloat(v)
		if !numeric {
			return false
		}
		var bound float64
		if _, err := fmt.Sscanf(criteria[1:], "%g", &bound); err != nil {
			return false
		}
		if criteria[0] == '>' {
			return n > bound
		}
		return n < bound
	default:
		return strings.Contains(strings.ToLower(text), strings.ToLower(criteria))
	}
}

// AddSheet implements Driver.
func (w *Workbook) AddSheet(name string) error {
	if name == "" {
		return fmt.Errorf("sheet name cannot be empty")
	}
	if _, exists := w.sheets[name]; exists {
		return fmt.Errorf("sheet %q already exists", name)
	}
	w.sheets[name] = newWorksheet()
	w.order = append(w.order, name)
	return nil
}

// RenameSheet implements Driver.
func (w *Workbook) RenameSheet(oldName, newName string) error {
	ws, ok := w.sheets[oldName]
	if !ok {
		return fmt.Errorf("unknown sheet %q", oldName)
	}
	if _, exists := w.sheets[newName]; exists {
		return fmt.Errorf("sheet %q already exists", newName)
	}
	delete(w.sheets, oldName)
	w.sheets[newName] = ws
	for i, n := range w.order {
		if n == oldName {
			w.order[i] = newName
		}
	}
	if w.active == oldName {
		w.active = newName
	}
	return nil
}

// AddComment implements Driver. Comments are stored as format annotations;
// the in-memory workbook has no separate comment layer.
func (w *Workbook) AddComment(address, text string) error {
	addr, ws, err := w.resolve(address)
	if err != nil {
		return err
	}
	cl := ws.at(addr.StartRow, addr.StartCol)
	if cl.format != "" {
		cl.format += ";"
	}
	cl.format += "comment:" + text
	return nil
}

// SetConditionalFormat implements Driver.
func (w *Workbook) SetConditionalFormat(address string, rule ConditionalRule) error {
	if rule.Condition == "" {
		return fmt.Errorf("conditional rule needs a condition")
	}
	return w.FormatRange(address, FormatSpec{FillColor: rule.FillColor, FontColor: rule.FontColor})
}

// SetDataValidation implements Driver. Validation rules are recorded but
// not enforced on writes; the host document enforces them.
func (w *Workbook) SetDataValidation(address string, rule ValidationRule) error {
	if rule.Kind == "" {
		return fmt.Errorf("validation rule needs a kind")
	}
	if _, _, err := w.resolve(address); err != nil {
		return err
	}
	return nil
}

// CreateChart implements Driver: creates or replaces a chart by name.
func (w *Workbook) CreateChart(info ChartInfo) error {
	if info.Name == "" {
		return fmt.Errorf("chart needs a name")
	}
	for i, c := range w.charts {
		if c.Name == info.Name {
			w.charts[i] = info
			return nil
		}
	}
	w.charts = append(w.charts, info)
	return nil
}

// CreatePivot implements Driver: creates or replaces a pivot by name.
func (w *Workbook) CreatePivot(info PivotInfo) error {
	if info.Name == "" {
		return fmt.Errorf("pivot needs a name")
	}
	for i, p := range w.pivots {
		if p.Name == info.Name {
			w.pivots[i] = info
			return nil
		}
	}
	w.pivots = append(w.pivots, info)
	return nil
}

// AddTable registers table metadata, available to context discovery.
func (w *Workbook) AddTable(info TableInfo) {
	w.tables = append(w.tables, info)
}
