package sheet

// RangeSnapshot captures the full state of a range at one moment: raw
// values, formula strings and display-format strings, as three parallel
// grids of identical shape. Snapshots are immutable once captured; the
// change ledger relies on that to compute diffs and to revert.
type RangeSnapshot struct {
	Address  Address
	Values   [][]any
	Formulas [][]string
	Formats  [][]string
}

// NewRangeSnapshot allocates an empty snapshot shaped to the address.
func NewRangeSnapshot(addr Address) *RangeSnapshot {
	rows, cols := addr.Rows(), addr.Cols()
	snap := &RangeSnapshot{
		Address:  addr,
		Values:   make([][]any, rows),
		Formulas: make([][]string, rows),
		Formats:  make([][]string, rows),
	}
	for r := 0; r < rows; r++ {
		snap.Values[r] = make([]any, cols)
		snap.Formulas[r] = make([]string, cols)
		snap.Formats[r] = make([]string, cols)
	}
	return snap
}

// ValueAt returns the value at grid position (r, c), treating positions
// outside the grid as empty. Diff code uses this so before/after grids of
// different shapes compare cleanly.
func (s *RangeSnapshot) ValueAt(r, c int) any {
	if s == nil || r >= len(s.Values) || c >= len(s.Values[r]) {
		return nil
	}
	return s.Values[r][c]
}

// FormulaAt returns the formula at grid position (r, c), empty when out of
// range.
func (s *RangeSnapshot) FormulaAt(r, c int) string {
	if s == nil || r >= len(s.Formulas) || c >= len(s.Formulas[r]) {
		return ""
	}
	return s.Formulas[r][c]
}

// FormatAt returns the display format at grid position (r, c).
func (s *RangeSnapshot) FormatAt(r, c int) string {
	if s == nil || r >= len(s.Formats) || c >= len(s.Formats[r]) {
		return ""
	}
	return s.Formats[r][c]
}

// IsEmptyCell reports whether position (r, c) holds neither a value nor a
// formula.
func (s *RangeSnapshot) IsEmptyCell(r, c int) bool {
	v := s.ValueAt(r, c)
	return (v == nil || v == "") && s.FormulaAt(r, c) == ""
}
