// Package safety decides whether a proposed tool call needs human
// confirmation before execution. The assessment is read-only against the
// document: it snapshots the target range to compute concrete overwrite
// counts but never writes.
package safety

import (
	"fmt"

	"gridpilot/model"
	"gridpilot/sheet"
	"gridpilot/tools"
)

// Settings are the policy knobs the assessor consults. They mirror the
// user-facing settings surface.
type Settings struct {
	// ApprovalMode gates every document-mutating operation behind a
	// confirmation when enabled.
	ApprovalMode bool
	// RiskyCellThreshold is the cell count above which a bulk write is
	// always flagged, approval mode or not.
	RiskyCellThreshold int
	// WebSearchEnabled allows the external web_search operation at all.
	WebSearchEnabled bool
}

// WriteRisk summarizes what a bulk write would destroy, computed from a
// snapshot of the target range taken before the write. Derived, never
// stored.
type WriteRisk struct {
	TotalCells        int
	NonEmptyCells     int
	FormulaCells      int
	OverwritesValue   bool
	OverwritesFormula bool
}

// AssessWriteRisk computes WriteRisk from a before-snapshot.
func AssessWriteRisk(snap *sheet.RangeSnapshot) WriteRisk {
	risk := WriteRisk{}
	if snap == nil {
		return risk
	}
	addr := snap.Address
	risk.TotalCells = addr.CellCount()
	for r := 0; r < addr.Rows(); r++ {
		for c := 0; c < addr.Cols(); c++ {
			if snap.FormulaAt(r, c) != "" {
				risk.FormulaCells++
				risk.OverwritesFormula = true
			}
			if !snap.IsEmptyCell(r, c) {
				risk.NonEmptyCells++
				if v := snap.ValueAt(r, c); v != nil && v != "" {
					risk.OverwritesValue = true
				}
			}
		}
	}
	return risk
}

// Confirmation is a concrete confirmation request surfaced to the
// approval gate. The counts are real numbers from the live document, not
// a generic warning, so the approver can make an informed decision.
type Confirmation struct {
	Reason         string
	Risky          bool
	OverwriteCells int
	TotalCells     int
}

// Assessor classifies proposed calls as safe or needs-confirmation.
type Assessor struct {
	driver   sheet.Driver
	settings Settings
}

// NewAssessor creates an assessor bound to a document driver.
func NewAssessor(driver sheet.Driver, settings Settings) *Assessor {
	return &Assessor{driver: driver, settings: settings}
}

// SetSettings replaces the policy knobs (settings may change between
// turns).
func (a *Assessor) SetSettings(s Settings) { a.settings = s }

// Assess returns nil when the call may execute without confirmation, or a
// Confirmation describing why approval is needed. It never executes the
// call and never errors on a missing or malformed target address: an
// uninspectable bulk write surfaces a confirmation instead of crashing.
func (a *Assessor) Assess(spec tools.Spec, call model.ToolCall) *Confirmation {
	switch spec.Class {
	case tools.ClassExternal:
		// Leaving the document is unconditionally risky.
		return &Confirmation{
			Reason: fmt.Sprintf("%s sends data outside the workbook", call.Name),
			Risky:  true,
		}

	case tools.ClassBulkWrite:
		return a.assessBulkWrite(spec, call)

	case tools.ClassMutate:
		if a.settings.ApprovalMode {
			return &Confirmation{
				Reason: fmt.Sprintf("%s modifies the workbook and approval mode is on", call.Name),
				Risky:  false,
			}
		}
	}
	return nil
}

func (a *Assessor) assessBulkWrite(spec tools.Spec, call model.ToolCall) *Confirmation {
	target, _ := call.Arguments["range"].(string)
	if target == "" {
		return &Confirmation{
			Reason: fmt.Sprintf("%s has no target range to inspect", call.Name),
			Risky:  true,
		}
	}

	// The driver anchors the grid at the range's top-left corner and
	// writes past the stated extent, so the inspection must cover the
	// cells the write will actually touch, not just the literal range.
	grid := call.Arguments["values"]
	if grid == nil {
		grid = call.Arguments["formulas"]
	}
	if rows, cols := gridDims(grid); rows > 0 {
		if expanded, err := writeExtent(target, rows, cols); err == nil {
			target = expanded
		}
	}

	snap, err := a.driver.ReadRange(target)
	if err != nil {
		return &Confirmation{
			Reason: fmt.Sprintf("%s targets %s which could not be inspected: %v", call.Name, target, err),
			Risky:  true,
		}
	}

	risk := AssessWriteRisk(snap)
	overThreshold := a.settings.RiskyCellThreshold > 0 && risk.TotalCells > a.settings.RiskyCellThreshold
	overwrite := risk.OverwritesValue || risk.OverwritesFormula

	if overThreshold || overwrite {
		return &Confirmation{
			Reason:         bulkWriteReason(call.Name, target, risk, overThreshold),
			Risky:          true,
			OverwriteCells: risk.NonEmptyCells,
			TotalCells:     risk.TotalCells,
		}
	}

	if a.settings.ApprovalMode {
		return &Confirmation{
			Reason:     fmt.Sprintf("%s writes %d cells into %s and approval mode is on", call.Name, risk.TotalCells, target),
			Risky:      false,
			TotalCells: risk.TotalCells,
		}
	}
	return nil
}

// gridDims measures a decoded JSON 2D array: row count and widest row.
func gridDims(v any) (rows, cols int) {
	outer, ok := v.([]any)
	if !ok {
		return 0, 0
	}
	for _, r := range outer {
		row, ok := r.([]any)
		if !ok {
			continue
		}
		rows++
		if len(row) > cols {
			cols = len(row)
		}
	}
	return rows, cols
}

// writeExtent grows target to cover a rows x cols grid anchored at its
// top-left corner, matching how the driver applies bulk writes.
func writeExtent(target string, rows, cols int) (string, error) {
	addr, err := sheet.ParseAddress(target)
	if err != nil {
		return "", err
	}
	if end := addr.StartRow + rows - 1; end > addr.EndRow {
		addr.EndRow = end
	}
	if end := addr.StartCol + cols - 1; end > addr.EndCol {
		addr.EndCol = end
	}
	return addr.String(), nil
}

func bulkWriteReason(toolName, target string, risk WriteRisk, overThreshold bool) string {
	switch {
	case risk.OverwritesFormula:
		return fmt.Sprintf("%s would overwrite %d non-empty cells in %s, including %d formulas",
			toolName, risk.NonEmptyCells, target, risk.FormulaCells)
	case risk.OverwritesValue:
		return fmt.Sprintf("%s would overwrite %d non-empty cells in %s",
			toolName, risk.NonEmptyCells, target)
	case overThreshold:
		return fmt.Sprintf("%s writes %d cells into %s, above the configured threshold",
			toolName, risk.TotalCells, target)
	default:
		return fmt.Sprintf("%s writes %d cells into %s", toolName, risk.TotalCells, target)
	}
}
