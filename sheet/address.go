// Package sheet defines the spreadsheet-facing types: range addresses,
// range snapshots, the document driver contract and an in-memory workbook
// driver. Everything above this package talks to the document exclusively
// through the Driver interface.
package sheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Address identifies a rectangular region of one sheet. Rows and columns
// are 1-based and inclusive. A single cell has Start == End. An empty
// Sheet means "the active sheet".
type Address struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

var cellRefPattern = regexp.MustCompile(`^\$?([A-Za-z]{1,3})\$?([0-9]+)$`)

// ParseAddress parses "Sheet1!A1", "Sheet1!A1:C3", "'My Sheet'!B2:D4" or a
// bare "A1:C3". Quoted sheet names are unquoted so that equivalent
// addresses compare equal after normalization.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("empty range address")
	}

	var sheetName, ref string
	if strings.HasPrefix(s, "'") {
		end := strings.Index(s[1:], "'")
		if end < 0 || len(s) <= end+2 || s[end+2] != '!' {
			return Address{}, fmt.Errorf("malformed quoted sheet name in %q", s)
		}
		sheetName = strings.ReplaceAll(s[1:end+1], "''", "'")
		ref = s[end+3:]
	} else if idx := strings.LastIndex(s, "!"); idx >= 0 {
		sheetName = s[:idx]
		ref = s[idx+1:]
	} else {
		ref = s
	}

	first, rest, hasRange := strings.Cut(ref, ":")
	startCol, startRow, err := parseCellRef(first)
	if err != nil {
		return Address{}, fmt.Errorf("invalid range %q: %w", s, err)
	}

	endCol, endRow := startCol, startRow
	if hasRange {
		endCol, endRow, err = parseCellRef(rest)
		if err != nil {
			return Address{}, fmt.Errorf("invalid range %q: %w", s, err)
		}
	}

	// Normalize orientation so Start is always the top-left corner.
	if endCol < startCol {
		startCol, endCol = endCol, startCol
	}
	if endRow < startRow {
		startRow, endRow = endRow, startRow
	}

	return Address{
		Sheet:    sheetName,
		StartCol: startCol,
		StartRow: startRow,
		EndCol:   endCol,
		EndRow:   endRow,
	}, nil
}

func parseCellRef(ref string) (col, row int, err error) {
	m := cellRefPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
	}
	col = ColumnIndex(m[1])
	row, err = strconv.Atoi(m[2])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("invalid row in %q", ref)
	}
	return col, row, nil
}

// String renders the normalized unquoted form, e.g. "Sheet1!A1:C3".
// Single-cell ranges render without the colon part.
func (a Address) String() string {
	cell := ColumnName(a.StartCol) + strconv.Itoa(a.StartRow)
	if a.EndCol != a.StartCol || a.EndRow != a.StartRow {
		cell += ":" + ColumnName(a.EndCol) + strconv.Itoa(a.EndRow)
	}
	if a.Sheet == "" {
		return cell
	}
	return a.Sheet + "!" + cell
}

// Rows returns the number of rows covered.
func (a Address) Rows() int { return a.EndRow - a.StartRow + 1 }

// Cols returns the number of columns covered.
func (a Address) Cols() int { return a.EndCol - a.StartCol + 1 }

// CellCount returns the total number of cells covered.
func (a Address) CellCount() int { return a.Rows() * a.Cols() }

// Normalize parses and re-renders an address string. Used for citation
// deduplication: "'Sheet Name'!A1" and "Sheet Name!A1" normalize to the
// same form. Unparseable input is returned trimmed but otherwise as-is.
func Normalize(s string) string {
	addr, err := ParseAddress(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return addr.String()
}

// ColumnIndex converts a column name to its 1-based index: A→1, Z→26,
// AA→27.
func ColumnIndex(name string) int {
	n := 0
	for _, r := range strings.ToUpper(name) {
		n = n*26 + int(r-'A') + 1
	}
	return n
}

// ColumnName converts a 1-based column index back to letters.
func ColumnName(index int) string {
	var b []byte
	for index > 0 {
		index--
		b = append([]byte{byte('A' + index%26)}, b...)
		index /= 26
	}
	return string(b)
}
