// Package ledger records a reversible audit trail of document edits.
// Every mutation the agent executes is captured as a Change holding the
// target range's state before and after the edit; the ledger can restore
// the before state for a single change or for every change of a turn.
package ledger

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"gridpilot/sheet"
)

// ErrAlreadyReverted is returned when reverting a Change twice.
var ErrAlreadyReverted = errors.New("change already reverted")

// Change is one recorded edit. Changes are never deleted; Reverted is the
// only field that mutates, and it flips exactly once.
type Change struct {
	ID           string
	TurnID       string
	Reason       string
	Address      string
	Before       *sheet.RangeSnapshot
	After        *sheet.RangeSnapshot
	ChangedCells int
	Reverted     bool
	RecordedAt   time.Time
}

// Ledger holds the append-only change history for one document session.
type Ledger struct {
	driver  sheet.Driver
	changes []*Change
}

// New creates a ledger bound to a document driver.
func New(driver sheet.Driver) *Ledger {
	return &Ledger{driver: driver}
}

// Record captures a before/after pair as a Change. The changed-cell count
// is derived from the two snapshots: positions where either the value or
// the formula differs, with positions missing from one grid treated as
// empty. The snapshots must target the same address.
func (l *Ledger) Record(before, after *sheet.RangeSnapshot, turnID, reason string) (*Change, error) {
	if before == nil || after == nil {
		return nil, fmt.Errorf("record needs both snapshots")
	}
	if before.Address != after.Address {
		return nil, fmt.Errorf("snapshot addresses differ: %s vs %s",
			before.Address.String(), after.Address.String())
	}

	c := &Change{
		ID:           uuid.New().String(),
		TurnID:       turnID,
		Reason:       reason,
		Address:      before.Address.String(),
		Before:       before,
		After:        after,
		ChangedCells: DiffCellCount(before, after),
		RecordedAt:   time.Now(),
	}
	l.changes = append(l.changes, c)
	return c, nil
}

// DiffCellCount counts grid positions where value or formula differ
// between the two snapshots. Grids of different shapes compare over the
// union of their extents, missing cells reading as empty.
func DiffCellCount(before, after *sheet.RangeSnapshot) int {
	rows := maxRows(before, after)
	cols := maxCols(before, after)

	count := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !equalValue(before.ValueAt(r, c), after.ValueAt(r, c)) ||
				before.FormulaAt(r, c) != after.FormulaAt(r, c) {
				count++
			}
		}
	}
	return count
}

func equalValue(a, b any) bool {
	// nil and "" both mean an empty cell.
	if (a == nil || a == "") && (b == nil || b == "") {
		return true
	}
	// Cell values come from decoded JSON and may be slices or maps,
	// which == would panic on.
	return reflect.DeepEqual(a, b)
}

func maxRows(a, b *sheet.RangeSnapshot) int {
	n := len(a.Values)
	if len(b.Values) > n {
		n = len(b.Values)
	}
	return n
}

func maxCols(a, b *sheet.RangeSnapshot) int {
	n := 0
	for _, row := range a.Values {
		if len(row) > n {
			n = len(row)
		}
	}
	for _, row := range b.Values {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

// Revert restores the change's before snapshot (values, formulas and
// formats) and marks the change reverted. Reverting an already-reverted
// change returns ErrAlreadyReverted without touching the document;
// callers check the Reverted flag first, this is the backstop.
func (l *Ledger) Revert(c *Change) error {
	if c.Reverted {
		return ErrAlreadyReverted
	}
	if err := l.driver.ApplySnapshot(c.Before); err != nil {
		return fmt.Errorf("revert %s: %w", c.Address, err)
	}
	c.Reverted = true
	return nil
}

// RevertTurn reverts every non-reverted change of a turn. Changes within
// one turn target disjoint ranges by caller contract, so order does not
// matter; already-reverted changes are skipped. Returns the number of
// changes reverted.
func (l *Ledger) RevertTurn(turnID string) (int, error) {
	reverted := 0
	for _, c := range l.changes {
		if c.TurnID != turnID || c.Reverted {
			continue
		}
		if err := l.Revert(c); err != nil {
			return reverted, err
		}
		reverted++
	}
	return reverted, nil
}

// Changes returns the full history, oldest first.
func (l *Ledger) Changes() []*Change {
	return l.changes
}

// TurnChanges returns the changes recorded for one turn, oldest first.
func (l *Ledger) TurnChanges(turnID string) []*Change {
	var out []*Change
	for _, c := range l.changes {
		if c.TurnID == turnID {
			out = append(out, c)
		}
	}
	return out
}
