package harness

import (
	"slices"
)

// evaluateExpectation checks the final session state against the
// scenario's expectations. Absent expectation fields assert nothing;
// present ones must match exactly, order included.
func evaluateExpectation(result *Result, expect *Expectation) {
	if expect.Columns != nil && !slices.Equal(result.FinalColumns, expect.Columns) {
		result.AddError("final columns mismatch:\n  want %v\n  got  %v",
			expect.Columns, result.FinalColumns)
	}
	if expect.Rows != nil && !slices.Equal(result.FinalRows, expect.Rows) {
		result.AddError("final rows mismatch:\n  want %v\n  got  %v",
			expect.Rows, result.FinalRows)
	}
	if expect.TombstonedColumns != nil && !sameIDSet(result.TombstonedColumns, expect.TombstonedColumns) {
		result.AddError("tombstoned columns mismatch: want %v, got %v",
			expect.TombstonedColumns, result.TombstonedColumns)
	}
	if expect.TombstonedRows != nil && !sameIDSet(result.TombstonedRows, expect.TombstonedRows) {
		result.AddError("tombstoned rows mismatch: want %v, got %v",
			expect.TombstonedRows, result.TombstonedRows)
	}
}

// sameIDSet compares two id lists ignoring order.
func sameIDSet(got, want []string) bool {
	g := slices.Clone(got)
	w := slices.Clone(want)
	slices.Sort(g)
	slices.Sort(w)
	return slices.Equal(g, w)
}
