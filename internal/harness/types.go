package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atoms-tech/gridsync/internal/grid"
)

// TraceEvent records one executed step together with the merged view it
// produced. The compact view strings make trace diffs readable and keep
// golden files stable.
type TraceEvent struct {
	Step    int      `json:"step"`
	Op      string   `json:"op"`
	Outcome string   `json:"outcome"` // "ok" or "error: ..."
	Columns []string `json:"columns"`
	Rows    []string `json:"rows"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures and unexpected step outcomes.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalColumns and FinalRows are the merged views after the last step.
	FinalColumns []string `json:"final_columns"`
	FinalRows    []string `json:"final_rows"`

	// TombstonedColumns and TombstonedRows list ids awaiting deletion
	// confirmation after the last step, sorted.
	TombstonedColumns []string `json:"tombstoned_columns,omitempty"`
	TombstonedRows    []string `json:"tombstoned_rows,omitempty"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// formatColumn renders a column as "id:Name@pos". Select options are
// omitted; they never drive reconciliation decisions.
func formatColumn(c grid.Column) string {
	return fmt.Sprintf("%s:%s@%d", c.ID, c.Property.Name, c.Position)
}

// formatRow renders a row as "id@pos{c1=text:v,...}" with fields sorted
// by column id so the output is deterministic.
func formatRow(r grid.Row) string {
	if len(r.Fields) == 0 {
		return fmt.Sprintf("%s@%d", r.ID, r.Position)
	}

	keys := make([]string, 0, len(r.Fields))
	for col := range r.Fields {
		keys = append(keys, string(col))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, col := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", col, formatCell(r.Fields[grid.ColumnID(col)])))
	}
	return fmt.Sprintf("%s@%d{%s}", r.ID, r.Position, strings.Join(parts, ","))
}

func formatCell(v grid.CellValue) string {
	switch cell := v.(type) {
	case grid.CellText:
		return fmt.Sprintf("text:%s", string(cell))
	case grid.CellNumber:
		return fmt.Sprintf("number:%g", float64(cell))
	case grid.CellDate:
		return fmt.Sprintf("date:%s", string(cell))
	case grid.CellSelect:
		return fmt.Sprintf("select:%s", string(cell))
	case grid.CellMultiSelect:
		return fmt.Sprintf("multi:[%s]", strings.Join([]string(cell), " "))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatColumns(columns []grid.Column) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = formatColumn(c)
	}
	return out
}

func formatRows(rows []grid.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = formatRow(r)
	}
	return out
}
