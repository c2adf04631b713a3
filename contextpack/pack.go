// Package contextpack builds the document-context payload sent to the
// model as grounding and fits it, together with the conversation history,
// under a per-turn token ceiling via a staged degradation ladder.
package contextpack

import (
	"fmt"
	"strings"

	"gridpilot/sheet"
)

// DetailLevel selects how much document state a pack carries.
type DetailLevel int

const (
	// DetailFull includes tables, charts, pivots, errors and a wide
	// row/column window.
	DetailFull DetailLevel = iota
	// DetailSelection keeps a smaller window around the selection and
	// drops charts and pivots.
	DetailSelection
	// DetailMinimal carries only the smallest window, no metadata.
	DetailMinimal
)

func (l DetailLevel) String() string {
	switch l {
	case DetailFull:
		return "full"
	case DetailSelection:
		return "selection"
	case DetailMinimal:
		return "minimal"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Window sizes per detail level. Each level is strictly smaller than the
// previous so the serialized payload shrinks monotonically down the
// ladder.
const (
	fullWindowRows      = 40
	fullWindowCols      = 20
	selectionWindowRows = 15
	selectionWindowCols = 10
	minimalWindowRows   = 6
	minimalWindowCols   = 6

	maxListedErrors = 10
)

// Pack is one document-context snapshot at a given detail level.
type Pack struct {
	Level       DetailLevel
	ActiveSheet string
	Selection   string
	UsedRange   string
	Window      *sheet.RangeSnapshot
	Tables      []sheet.TableInfo
	Charts      []sheet.ChartInfo
	Pivots      []sheet.PivotInfo
	Errors      []sheet.CellError
}

// Build captures a context pack from the document at the requested detail
// level. Discovery failures degrade to an emptier pack rather than
// failing: a thin pack is always better than no model call.
func Build(d sheet.Driver, level DetailLevel) *Pack {
	p := &Pack{
		Level:       level,
		ActiveSheet: d.ActiveSheet(),
		Selection:   d.ActiveSelection(),
	}

	if used, err := d.UsedRange(p.ActiveSheet); err == nil {
		p.UsedRange = used
	}

	if addr, ok := windowAddress(p, level); ok {
		if snap, err := d.ReadRange(addr.String()); err == nil {
			p.Window = snap
		}
	}

	switch level {
	case DetailFull:
		p.Tables, _ = d.ListTables()
		p.Charts, _ = d.ListCharts()
		p.Pivots, _ = d.ListPivots()
		p.Errors, _ = d.ListErrors()
	case DetailSelection:
		p.Tables, _ = d.ListTables()
	}

	return p
}

// windowAddress picks the range the pack's cell window shows: the used
// range at full detail, the selection otherwise, clamped to the level's
// window size.
func windowAddress(p *Pack, level DetailLevel) (sheet.Address, bool) {
	ref := p.Selection
	if level == DetailFull && p.UsedRange != "" {
		ref = p.UsedRange
	}
	if ref == "" {
		return sheet.Address{}, false
	}

	addr, err := sheet.ParseAddress(ref)
	if err != nil {
		return sheet.Address{}, false
	}
	if addr.Sheet == "" {
		addr.Sheet = p.ActiveSheet
	}

	switch level {
	case DetailFull:
		addr = clampWindow(addr, fullWindowRows, fullWindowCols)
	case DetailSelection:
		addr = clampWindow(addr, selectionWindowRows, selectionWindowCols)
	default:
		addr = clampWindow(addr, minimalWindowRows, minimalWindowCols)
	}
	return addr, true
}

func clampWindow(addr sheet.Address, maxRows, maxCols int) sheet.Address {
	if addr.Rows() > maxRows {
		addr.EndRow = addr.StartRow + maxRows - 1
	}
	if addr.Cols() > maxCols {
		addr.EndCol = addr.StartCol + maxCols - 1
	}
	return addr
}

// Serialize renders the pack as the plain-text grounding block placed in
// the outgoing message list.
func (p *Pack) Serialize() string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Document context (%s)\n", p.Level)
	fmt.Fprintf(&b, "Active sheet: %s\n", p.ActiveSheet)
	if p.Selection != "" {
		fmt.Fprintf(&b, "Selection: %s\n", p.Selection)
	}
	if p.UsedRange != "" {
		fmt.Fprintf(&b, "Used range: %s\n", p.UsedRange)
	}

	if p.Window != nil {
		fmt.Fprintf(&b, "\n### Cells %s\n", p.Window.Address.String())
		writeWindow(&b, p.Window)
	}

	if len(p.Tables) > 0 {
		b.WriteString("\n### Tables\n")
		for _, t := range p.Tables {
			fmt.Fprintf(&b, "- %s at %s, columns: %s\n",
				t.Name, t.Address, strings.Join(t.Columns, ", "))
		}
	}
	if len(p.Charts) > 0 {
		b.WriteString("\n### Charts\n")
		for _, c := range p.Charts {
			fmt.Fprintf(&b, "- %s (%s) over %s\n", c.Name, c.Type, c.DataRange)
		}
	}
	if len(p.Pivots) > 0 {
		b.WriteString("\n### Pivot tables\n")
		for _, pv := range p.Pivots {
			fmt.Fprintf(&b, "- %s from %s at %s\n", pv.Name, pv.SourceRange, pv.TargetCell)
		}
	}
	if len(p.Errors) > 0 {
		b.WriteString("\n### Cell errors\n")
		for i, e := range p.Errors {
			if i >= maxListedErrors {
				fmt.Fprintf(&b, "- ... and %d more\n", len(p.Errors)-maxListedErrors)
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", e.Address, e.Error)
		}
	}

	return b.String()
}

// writeWindow renders the cell grid one row per line. A cell shows its
// formula when it has one, otherwise its value; rows with no content are
// skipped.
func writeWindow(b *strings.Builder, snap *sheet.RangeSnapshot) {
	addr := snap.Address
	for r := 0; r < addr.Rows(); r++ {
		cells := make([]string, 0, addr.Cols())
		empty := true
		for c := 0; c < addr.Cols(); c++ {
			var text string
			if f := snap.FormulaAt(r, c); f != "" {
				text = f
			} else if v := snap.ValueAt(r, c); v != nil {
				text = fmt.Sprintf("%v", v)
			}
			if text != "" {
				empty = false
			}
			cells = append(cells, text)
		}
		if empty {
			continue
		}
		fmt.Fprintf(b, "%d: %s\n", addr.StartRow+r, strings.Join(cells, " | "))
	}
}
