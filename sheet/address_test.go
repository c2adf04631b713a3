package sheet

import "testing"

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Address
	}{
		{
			name:  "single cell",
			input: "Sheet1!A1",
			want:  Address{Sheet: "Sheet1", StartCol: 1, StartRow: 1, EndCol: 1, EndRow: 1},
		},
		{
			name:  "range",
			input: "Sheet1!A1:C3",
			want:  Address{Sheet: "Sheet1", StartCol: 1, StartRow: 1, EndCol: 3, EndRow: 3},
		},
		{
			name:  "quoted sheet name",
			input: "'Q1 Budget'!B2:D4",
			want:  Address{Sheet: "Q1 Budget", StartCol: 2, StartRow: 2, EndCol: 4, EndRow: 4},
		},
		{
			name:  "no sheet",
			input: "B2:B10",
			want:  Address{StartCol: 2, StartRow: 2, EndCol: 2, EndRow: 10},
		},
		{
			name:  "absolute refs",
			input: "Sheet1!$A$1:$C$3",
			want:  Address{Sheet: "Sheet1", StartCol: 1, StartRow: 1, EndCol: 3, EndRow: 3},
		},
		{
			name:  "inverted corners normalize",
			input: "Sheet1!C3:A1",
			want:  Address{Sheet: "Sheet1", StartCol: 1, StartRow: 1, EndCol: 3, EndRow: 3},
		},
		{
			name:  "double letter column",
			input: "Sheet1!AA10",
			want:  Address{Sheet: "Sheet1", StartCol: 27, StartRow: 10, EndCol: 27, EndRow: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if err != nil {
				t.Fatalf("ParseAddress(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAddress(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAddressErrors(t *testing.T) {
	for _, input := range []string{"", "Sheet1!", "Sheet1!1A", "'Broken!A1", "Sheet1!A0"} {
		if _, err := ParseAddress(input); err == nil {
			t.Errorf("ParseAddress(%q) succeeded, want error", input)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"'Sheet Name'!A1", "Sheet Name!A1"},
		{"Sheet1!a1:c3", "Sheet1!A1:C3"},
		{"Sheet1!C3:A1", "Sheet1!A1:C3"},
		{" Sheet1!A1 ", "Sheet1!A1"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCellCount(t *testing.T) {
	addr, err := ParseAddress("Sheet1!A1:C3")
	if err != nil {
		t.Fatal(err)
	}
	if addr.CellCount() != 9 {
		t.Errorf("CellCount = %d, want 9", addr.CellCount())
	}
}

func TestColumnRoundTrip(t *testing.T) {
	for _, i := range []int{1, 2, 26, 27, 52, 703} {
		if got := ColumnIndex(ColumnName(i)); got != i {
			t.Errorf("round trip %d → %q → %d", i, ColumnName(i), got)
		}
	}
}
