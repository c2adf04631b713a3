package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gridpilot/model"
	"gridpilot/sheet"
)

const (
	searchTimeout       = 30 * time.Second
	maxSearchResultSize = 1 << 16
	maxReadSummaryRows  = 40
)

// execOutcome is what one tool execution reports back into the loop.
type execOutcome struct {
	// summary becomes the content of the tool-result message.
	summary string
	// edited lists the range addresses the call mutated.
	edited []string
	err    error
}

// executeTool dispatches a validated, approved call to the document
// driver. Every mutating range operation is bracketed with snapshots so
// the ledger records a revertible Change before the result message is
// appended.
func (o *Orchestrator) executeTool(call model.ToolCall, turnID string) execOutcome {
	args := call.Arguments
	reason := call.Reason
	if reason == "" {
		reason = call.Name
	}

	switch call.Name {
	case "read_range":
		target := argString(args, "range")
		snap, err := o.driver.ReadRange(target)
		if err != nil {
			return execOutcome{err: err}
		}
		return execOutcome{summary: renderRange(snap)}

	case "write_values":
		target := argString(args, "range")
		values := argGrid(args["values"])
		if len(values) == 0 {
			return execOutcome{err: fmt.Errorf("values grid is empty")}
		}
		addr, err := extentAddress(target, len(values), gridCols(values))
		if err != nil {
			return execOutcome{err: err}
		}
		return o.recordedMutation(addr, turnID, reason, func() error {
			return o.driver.WriteValues(target, values)
		}, fmt.Sprintf("wrote %dx%d values to %s", len(values), gridCols(values), addr))

	case "write_formulas":
		target := argString(args, "range")
		formulas := argStringGrid(args["formulas"])
		if len(formulas) == 0 {
			return execOutcome{err: fmt.Errorf("formulas grid is empty")}
		}
		cols := 0
		for _, row := range formulas {
			if len(row) > cols {
				cols = len(row)
			}
		}
		addr, err := extentAddress(target, len(formulas), cols)
		if err != nil {
			return execOutcome{err: err}
		}
		return o.recordedMutation(addr, turnID, reason, func() error {
			return o.driver.WriteFormulas(target, formulas)
		}, fmt.Sprintf("wrote %dx%d formulas to %s", len(formulas), cols, addr))

	case "format_range":
		target := argString(args, "range")
		spec := sheet.FormatSpec{
			NumberFormat: argString(args, "number_format"),
			FontColor:    argString(args, "font_color"),
			FillColor:    argString(args, "fill_color"),
		}
		if v, ok := args["bold"].(bool); ok {
			spec.Bold = &v
		}
		if v, ok := args["italic"].(bool); ok {
			spec.Italic = &v
		}
		return o.recordedMutation(target, turnID, reason, func() error {
			return o.driver.FormatRange(target, spec)
		}, fmt.Sprintf("formatted %s", target))

	case "sort_range":
		target := argString(args, "range")
		spec := sheet.SortSpec{
			Column:     argInt(args, "column"),
			Descending: argBool(args, "descending"),
		}
		return o.recordedMutation(target, turnID, reason, func() error {
			return o.driver.SortRange(target, spec)
		}, fmt.Sprintf("sorted %s by column %d", target, spec.Column))

	case "filter_range":
		target := argString(args, "range")
		column := argInt(args, "column")
		criteria := argString(args, "criteria")
		return o.recordedMutation(target, turnID, reason, func() error {
			return o.driver.FilterRange(target, column, criteria)
		}, fmt.Sprintf("filtered %s on column %d (%s)", target, column, criteria))

	case "add_sheet":
		name := argString(args, "name")
		if err := o.driver.AddSheet(name); err != nil {
			return execOutcome{err: err}
		}
		return execOutcome{summary: fmt.Sprintf("added sheet %q", name)}

	case "rename_sheet":
		oldName := argString(args, "old_name")
		newName := argString(args, "new_name")
		if err := o.driver.RenameSheet(oldName, newName); err != nil {
			return execOutcome{err: err}
		}
		return execOutcome{summary: fmt.Sprintf("renamed sheet %q to %q", oldName, newName)}

	case "add_comment":
		target := argString(args, "range")
		text := argString(args, "text")
		if err := o.driver.AddComment(target, text); err != nil {
			return execOutcome{err: err}
		}
		return execOutcome{summary: fmt.Sprintf("added comment to %s", target), edited: []string{target}}

	case "conditional_format":
		target := argString(args, "range")
		rule := sheet.ConditionalRule{
			Condition: argString(args, "condition"),
			FillColor: argString(args, "fill_color"),
			FontColor: argString(args, "font_color"),
		}
		if err := o.driver.SetConditionalFormat(target, rule); err != nil {
			return execOutcome{err: err}
		}
		return execOutcome{summary: fmt.Sprintf("set conditional format on %s (%s)", target, rule.Condition), edited: []string{target}}

	case "data_validation":
		target := argString(args, "range")
		rule := sheet.ValidationRule{
			Kind:   argString(args, "kind"),
			Values: argStrings(args["values"]),
			Min:    argString(args, "min"),
			Max:    argString(args, "max"),
		}
		if err := o.driver.SetDataValidation(target, rule); err != nil {
			return execOutcome{err: err}
		}
		return execOutcome{summary: fmt.Sprintf("set %s validation on %s", rule.Kind, target), edited: []string{target}}

	case "create_chart":
		info := sheet.ChartInfo{
			Name:      argString(args, "name"),
			Type:      argString(args, "type"),
			DataRange: argString(args, "data_range"),
			Title:     argString(args, "title"),
		}
		if err := o.driver.CreateChart(info); err != nil {
			return execOutcome{err: err}
		}
		return execOutcome{summary: fmt.Sprintf("created chart %q over %s", info.Name, info.DataRange)}

	case "create_pivot":
		info := sheet.PivotInfo{
			Name:        argString(args, "name"),
			SourceRange: argString(args, "source_range"),
			TargetCell:  argString(args, "target_cell"),
			RowFields:   argStrings(args["rows"]),
			ColFields:   argStrings(args["columns"]),
			DataFields:  argStrings(args["values"]),
		}
		if err := o.driver.CreatePivot(info); err != nil {
			return execOutcome{err: err}
		}
		return execOutcome{summary: fmt.Sprintf("created pivot %q at %s", info.Name, info.TargetCell)}

	case "list_tables":
		tables, err := o.driver.ListTables()
		if err != nil {
			return execOutcome{err: err}
		}
		if len(tables) == 0 {
			return execOutcome{summary: "no tables in the workbook"}
		}
		var b strings.Builder
		for _, t := range tables {
			fmt.Fprintf(&b, "%s (%s): %s\n", t.Name, t.Address, strings.Join(t.Columns, ", "))
		}
		return execOutcome{summary: strings.TrimRight(b.String(), "\n")}

	case "list_errors":
		errs, err := o.driver.ListErrors()
		if err != nil {
			return execOutcome{err: err}
		}
		if len(errs) == 0 {
			return execOutcome{summary: "no cell errors in the workbook"}
		}
		var b strings.Builder
		for _, e := range errs {
			fmt.Fprintf(&b, "%s: %s\n", e.Address, e.Error)
		}
		return execOutcome{summary: strings.TrimRight(b.String(), "\n")}

	case "trace_precedents":
		target := argString(args, "range")
		refs, err := o.driver.TracePrecedents(target)
		if err != nil {
			return execOutcome{err: err}
		}
		if len(refs) == 0 {
			return execOutcome{summary: fmt.Sprintf("%s has no precedents", target)}
		}
		return execOutcome{summary: fmt.Sprintf("precedents of %s: %s", target, strings.Join(refs, ", "))}

	case "web_search":
		return o.runWebSearch(argString(args, "query"))

	default:
		return execOutcome{err: fmt.Errorf("unknown tool %q", call.Name)}
	}
}

// recordedMutation runs a range mutation bracketed with snapshots and
// records the resulting Change.
func (o *Orchestrator) recordedMutation(address, turnID, reason string, mutate func() error, summary string) execOutcome {
	before, err := o.driver.ReadRange(address)
	if err != nil {
		return execOutcome{err: fmt.Errorf("pre-snapshot of %s failed: %w", address, err)}
	}

	if err := mutate(); err != nil {
		return execOutcome{err: err}
	}

	after, err := o.driver.ReadRange(address)
	if err != nil {
		return execOutcome{err: fmt.Errorf("post-snapshot of %s failed: %w", address, err)}
	}

	change, err := o.ledger.Record(before, after, turnID, reason)
	if err != nil {
		return execOutcome{err: fmt.Errorf("recording change failed: %w", err)}
	}

	return execOutcome{
		summary: fmt.Sprintf("%s (%d cells changed)", summary, change.ChangedCells),
		edited:  []string{change.Address},
	}
}

func (o *Orchestrator) runWebSearch(query string) execOutcome {
	if o.searchEndpoint == "" {
		return execOutcome{err: fmt.Errorf("no search endpoint configured")}
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return execOutcome{err: err}
	}

	client := &http.Client{Timeout: searchTimeout}
	resp, err := client.Post(o.searchEndpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return execOutcome{err: fmt.Errorf("search request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchResultSize))
	if err != nil {
		return execOutcome{err: fmt.Errorf("reading search response failed: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return execOutcome{err: fmt.Errorf("search returned status %d: %s", resp.StatusCode, truncateText(string(data), 512))}
	}

	return execOutcome{summary: string(data)}
}

// extentAddress grows a target address to cover a data grid anchored at
// its top-left corner, so pre/post snapshots capture the whole write.
func extentAddress(target string, rows, cols int) (string, error) {
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

func renderRange(snap *sheet.RangeSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", snap.Address.String())

	rows := snap.Address.Rows()
	if rows > maxReadSummaryRows {
		rows = maxReadSummaryRows
	}
	for r := 0; r < rows; r++ {
		cells := make([]string, snap.Address.Cols())
		for c := range cells {
			if f := snap.FormulaAt(r, c); f != "" {
				cells[c] = f
			} else if v := snap.ValueAt(r, c); v != nil {
				cells[c] = fmt.Sprintf("%v", v)
			}
		}
		fmt.Fprintf(&b, "%s\n", strings.Join(cells, " | "))
	}
	if snap.Address.Rows() > maxReadSummaryRows {
		fmt.Fprintf(&b, "... %d more rows\n", snap.Address.Rows()-maxReadSummaryRows)
	}
	return strings.TrimRight(b.String(), "\n")
}

func gridCols(grid [][]any) int {
	cols := 0
	for _, row := range grid {
		if len(row) > cols {
			cols = len(row)
		}
	}
	return cols
}

func argString(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func argBool(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}

func argInt(args map[string]any, name string) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// argGrid converts a decoded JSON 2D array into a value grid. Non-array
// rows are skipped.
func argGrid(v any) [][]any {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}
	grid := make([][]any, 0, len(rows))
	for _, r := range rows {
		row, ok := r.([]any)
		if !ok {
			continue
		}
		grid = append(grid, row)
	}
	return grid
}

func argStringGrid(v any) [][]string {
	grid := argGrid(v)
	out := make([][]string, 0, len(grid))
	for _, row := range grid {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = fmt.Sprintf("%v", c)
		}
		out = append(out, cells)
	}
	return out
}

func argStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprintf("%v", it))
	}
	return out
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
