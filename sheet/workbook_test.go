package sheet

import (
	"reflect"
	"testing"
)

func TestWorkbookReadWriteRoundTrip(t *testing.T) {
	w := NewWorkbook("Sheet1")

	data := [][]any{
		{"Region", "Revenue"},
		{"North", 1200.0},
		{"South", 900.0},
	}
	if err := w.WriteValues("Sheet1!A1:B3", data); err != nil {
		t.Fatalf("WriteValues: %v", err)
	}

	snap, err := w.ReadRange("Sheet1!A1:B3")
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if !reflect.DeepEqual(snap.Values, data) {
		t.Errorf("Values = %v, want %v", snap.Values, data)
	}
}

func TestWorkbookWriteValuesClearsFormula(t *testing.T) {
	w := NewWorkbook("Sheet1")
	if err := w.WriteFormulas("Sheet1!A1", [][]string{{"=SUM(B1:B9)"}}); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteValues("Sheet1!A1", [][]any{{42.0}}); err != nil {
		t.Fatal(err)
	}
	snap, err := w.ReadRange("Sheet1!A1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.FormulaAt(0, 0) != "" {
		t.Errorf("formula survived a value write: %q", snap.FormulaAt(0, 0))
	}
}

func TestWorkbookApplySnapshotRestores(t *testing.T) {
	w := NewWorkbook("Sheet1")
	if err := w.WriteValues("Sheet1!A1:A2", [][]any{{"a"}, {"b"}}); err != nil {
		t.Fatal(err)
	}
	before, err := w.ReadRange("Sheet1!A1:A2")
	if err != nil {
		t.Fatal(err)
	}

	if err := w.WriteValues("Sheet1!A1:A2", [][]any{{"x"}, {"y"}}); err != nil {
		t.Fatal(err)
	}
	if err := w.ApplySnapshot(before); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	after, err := w.ReadRange("Sheet1!A1:A2")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(after.Values, before.Values) {
		t.Errorf("restore mismatch: %v vs %v", after.Values, before.Values)
	}
}

func TestWorkbookUsedRange(t *testing.T) {
	w := NewWorkbook("Sheet1")
	if err := w.WriteValues("Sheet1!B2:C3", [][]any{{1.0, 2.0}, {3.0, 4.0}}); err != nil {
		t.Fatal(err)
	}
	used, err := w.UsedRange("Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if used != "Sheet1!B2:C3" {
		t.Errorf("UsedRange = %q, want Sheet1!B2:C3", used)
	}
}

func TestWorkbookSortRange(t *testing.T) {
	w := NewWorkbook("Sheet1")
	if err := w.WriteValues("Sheet1!A1:B3", [][]any{
		{"c", 3.0},
		{"a", 1.0},
		{"b", 2.0},
	}); err != nil {
		t.Fatal(err)
	}

	if err := w.SortRange("Sheet1!A1:B3", SortSpec{Column: 1}); err != nil {
		t.Fatalf("SortRange: %v", err)
	}

	snap, err := w.ReadRange("Sheet1!A1:B3")
	if err != nil {
		t.Fatal(err)
	}
	wantFirstCol := []any{"a", "b", "c"}
	for r, want := range wantFirstCol {
		if snap.ValueAt(r, 0) != want {
			t.Errorf("row %d = %v, want %v", r, snap.ValueAt(r, 0), want)
		}
	}
}

func TestWorkbookTracePrecedents(t *testing.T) {
	w := NewWorkbook("Sheet1")
	if err := w.WriteFormulas("Sheet1!C1", [][]string{{"=SUM(A1:A9)+B2"}}); err != nil {
		t.Fatal(err)
	}
	refs, err := w.TracePrecedents("Sheet1!C1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"A1:A9", "B2"}
	if !reflect.DeepEqual(refs, want) {
		t.Errorf("TracePrecedents = %v, want %v", refs, want)
	}
}

func TestWorkbookListErrors(t *testing.T) {
	w := NewWorkbook("Sheet1")
	if err := w.WriteValues("Sheet1!A1:A2", [][]any{{"#DIV/0!"}, {"fine"}}); err != nil {
		t.Fatal(err)
	}
	errs, err := w.ListErrors()
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 || errs[0].Address != "Sheet1!A1" || errs[0].Error != "#DIV/0!" {
		t.Errorf("ListErrors = %+v", errs)
	}
}

func TestWorkbookSheets(t *testing.T) {
	w := NewWorkbook("Sheet1")
	if err := w.AddSheet("Data"); err != nil {
		t.Fatal(err)
	}
	if err := w.AddSheet("Data"); err == nil {
		t.Error("duplicate AddSheet succeeded, want error")
	}
	if err := w.RenameSheet("Data", "Raw"); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteValues("Raw!A1", [][]any{{"x"}}); err != nil {
		t.Errorf("write to renamed sheet failed: %v", err)
	}
}
