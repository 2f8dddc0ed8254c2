package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/atoms-tech/gridsync/internal/grid"
)

// Scenario defines a scripted reconciliation test.
type Scenario struct {
	// Name uniquely identifies this scenario. Doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Table is the table id the session reconciles. Defaults to "tbl-1".
	Table string `yaml:"table,omitempty"`

	// Steps is the interleaving of mutations and snapshots to execute.
	Steps []Step `yaml:"steps"`

	// Expect asserts on the final merged view and tombstone set.
	Expect Expectation `yaml:"expect"`
}

// Step is one scripted operation.
type Step struct {
	// Op selects the operation. See package docs for the full list.
	Op string `yaml:"op"`

	// Columns carries server data for seed_columns and column_snapshot.
	Columns []ColumnSpec `yaml:"columns,omitempty"`

	// Rows carries server data for seed_rows and row_snapshot.
	Rows []RowSpec `yaml:"rows,omitempty"`

	// ID targets an entity for rename_column, delete_column, delete_row.
	ID string `yaml:"id,omitempty"`

	// Name is the new name for add_column and rename_column.
	Name string `yaml:"name,omitempty"`

	// Kind is the property kind for add_column.
	Kind string `yaml:"kind,omitempty"`

	// Options are the select options for add_column.
	Options []string `yaml:"options,omitempty"`

	// Row and Column target a cell for edit_cell and clear_cell.
	Row    string `yaml:"row,omitempty"`
	Column string `yaml:"column,omitempty"`

	// Value is the cell payload for edit_cell.
	Value *CellSpec `yaml:"value,omitempty"`

	// Fail makes the scripted persister reject this mutation.
	Fail bool `yaml:"fail,omitempty"`

	// ExpectError marks a step whose dispatch must return an error.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// ColumnSpec describes a server-side column in scenario YAML.
type ColumnSpec struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`
	Options  []string `yaml:"options,omitempty"`
	Position int      `yaml:"position"`
	Width    int      `yaml:"width,omitempty"`
}

// RowSpec describes a server-side row in scenario YAML.
type RowSpec struct {
	ID       string              `yaml:"id"`
	Position int                 `yaml:"position"`
	Cells    map[string]CellSpec `yaml:"cells,omitempty"`
}

// CellSpec is a YAML cell value, mirroring the wire envelope.
type CellSpec struct {
	Kind  string `yaml:"kind"`
	Value any    `yaml:"value"`
}

// Expectation asserts on the session after all steps ran. Views use the
// compact forms produced by formatColumn and formatRow.
type Expectation struct {
	Columns           []string `yaml:"columns,omitempty"`
	Rows              []string `yaml:"rows,omitempty"`
	TombstonedColumns []string `yaml:"tombstoned_columns,omitempty"`
	TombstonedRows    []string `yaml:"tombstoned_rows,omitempty"`
}

// Step operation constants.
const (
	OpSeedColumns    = "seed_columns"
	OpSeedRows       = "seed_rows"
	OpColumnSnapshot = "column_snapshot"
	OpRowSnapshot    = "row_snapshot"
	OpAddColumn      = "add_column"
	OpRenameColumn   = "rename_column"
	OpDeleteColumn   = "delete_column"
	OpAddRow         = "add_row"
	OpDeleteRow      = "delete_row"
	OpEditCell       = "edit_cell"
	OpClearCell      = "clear_cell"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected to catch typos like "step:" vs "steps:".
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Table == "" {
		s.Table = "tbl-1"
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch step.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpSeedColumns, OpColumnSnapshot:
		for j, col := range step.Columns {
			if col.ID == "" {
				return fmt.Errorf("steps[%d].columns[%d]: id is required", index, j)
			}
			if !grid.ValidKinds[grid.PropertyKind(col.Kind)] {
				return fmt.Errorf("steps[%d].columns[%d]: unknown kind %q", index, j, col.Kind)
			}
		}
	case OpSeedRows, OpRowSnapshot:
		for j, row := range step.Rows {
			if row.ID == "" {
				return fmt.Errorf("steps[%d].rows[%d]: id is required", index, j)
			}
		}
	case OpAddColumn:
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required for add_column", index)
		}
		if !grid.ValidKinds[grid.PropertyKind(step.Kind)] {
			return fmt.Errorf("steps[%d]: unknown kind %q", index, step.Kind)
		}
	case OpRenameColumn:
		if step.ID == "" || step.Name == "" {
			return fmt.Errorf("steps[%d]: id and name are required for rename_column", index)
		}
	case OpDeleteColumn, OpDeleteRow:
		if step.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for %s", index, step.Op)
		}
	case OpAddRow:
	case OpEditCell:
		if step.Row == "" || step.Column == "" {
			return fmt.Errorf("steps[%d]: row and column are required for edit_cell", index)
		}
		if step.Value == nil {
			return fmt.Errorf("steps[%d]: value is required for edit_cell", index)
		}
	case OpClearCell:
		if step.Row == "" || step.Column == "" {
			return fmt.Errorf("steps[%d]: row and column are required for clear_cell", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	if step.Fail && !step.ExpectError {
		return fmt.Errorf("steps[%d]: fail requires expect_error", index)
	}
	return nil
}

// toColumn converts a ColumnSpec to a grid column.
func (c ColumnSpec) toColumn() grid.Column {
	return grid.Column{
		ID:       grid.ColumnID(c.ID),
		Position: c.Position,
		Width:    c.Width,
		Property: grid.PropertyRef{
			ID:      c.ID,
			Name:    c.Name,
			Kind:    grid.PropertyKind(c.Kind),
			Options: c.Options,
		},
	}
}

// toRow converts a RowSpec to a grid row.
func (r RowSpec) toRow() (grid.Row, error) {
	row := grid.Row{ID: grid.RowID(r.ID), Position: r.Position}
	if len(r.Cells) > 0 {
		row.Fields = make(map[grid.ColumnID]grid.CellValue, len(r.Cells))
		for col, spec := range r.Cells {
			value, err := spec.toCellValue()
			if err != nil {
				return grid.Row{}, fmt.Errorf("row %s, cell %s: %w", r.ID, col, err)
			}
			row.Fields[grid.ColumnID(col)] = value
		}
	}
	return row, nil
}

// toCellValue decodes through the wire envelope so scenarios
// exercise the same parsing path as real server payloads.
func (c CellSpec) toCellValue() (grid.CellValue, error) {
	envelope, err := json.Marshal(map[string]any{
		"kind":  c.Kind,
		"value": c.Value,
	})
	if err != nil {
		return nil, err
	}
	return grid.DecodeCellValue(envelope)
}
