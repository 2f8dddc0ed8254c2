package harness

import (
	"context"
	"fmt"

	"github.com/atoms-tech/gridsync/internal/grid"
	"github.com/atoms-tech/gridsync/internal/table"
	"github.com/atoms-tech/gridsync/internal/testutil"
)

// Run executes a scenario against a fresh session and scripted persister.
//
// Execution flow:
//  1. Build a session with deterministic placeholder ids (tmp-1, ...)
//     and a scripted persister with deterministic server ids (srv-1, ...).
//  2. Execute steps in order, recording a trace event with the merged
//     view after each step.
//  3. Evaluate the scenario's expectations against the final session.
//
// A step error is a scenario failure unless the step sets expect_error;
// a step that was expected to fail but succeeded is equally a failure.
func Run(scenario *Scenario) (*Result, error) {
	persist := newScriptedPersister()
	session := table.NewSession(
		grid.TableID(scenario.Table),
		persist,
		table.WithLogger(testutil.DiscardLogger()),
		table.WithIDGenerator(testutil.NewSequenceGenerator("tmp")),
	)
	defer session.Close()

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		stepErr := executeStep(ctx, session, persist, &step)

		outcome := "ok"
		if stepErr != nil {
			outcome = fmt.Sprintf("error: %v", stepErr)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Step:    i,
			Op:      step.Op,
			Outcome: outcome,
			Columns: formatColumns(session.Columns()),
			Rows:    formatRows(session.Rows()),
		})

		if step.ExpectError && stepErr == nil {
			result.AddError("steps[%d] %s: expected an error, got none", i, step.Op)
		}
		if !step.ExpectError && stepErr != nil {
			result.AddError("steps[%d] %s: %v", i, step.Op, stepErr)
		}
	}

	result.FinalColumns = formatColumns(session.Columns())
	result.FinalRows = formatRows(session.Rows())
	result.TombstonedColumns = session.TombstonedColumns()
	result.TombstonedRows = session.TombstonedRows()

	evaluateExpectation(result, &scenario.Expect)
	return result, nil
}

// executeStep dispatches one step against the session.
func executeStep(ctx context.Context, session *table.Session, persist *scriptedPersister, step *Step) error {
	if step.Fail {
		persist.armFailure()
	}

	switch step.Op {
	case OpSeedColumns:
		columns := columnsOf(step.Columns)
		persist.seedColumns(columns)
		session.SeedColumns(columns)
		return nil
	case OpSeedRows:
		rows, err := rowsOf(step.Rows)
		if err != nil {
			return err
		}
		persist.seedRows(rows)
		session.SeedRows(rows)
		return nil
	case OpColumnSnapshot:
		session.OnColumnSnapshot(columnsOf(step.Columns))
		return nil
	case OpRowSnapshot:
		rows, err := rowsOf(step.Rows)
		if err != nil {
			return err
		}
		session.OnRowSnapshot(rows)
		return nil
	case OpAddColumn:
		_, err := session.AddColumn(ctx, grid.PropertyDef{
			Name:    step.Name,
			Kind:    grid.PropertyKind(step.Kind),
			Options: step.Options,
		})
		return err
	case OpRenameColumn:
		return session.RenameColumn(ctx, grid.ColumnID(step.ID), step.Name)
	case OpDeleteColumn:
		return session.DeleteColumn(ctx, grid.ColumnID(step.ID))
	case OpAddRow:
		_, err := session.AddRow(ctx)
		return err
	case OpDeleteRow:
		return session.DeleteRow(ctx, grid.RowID(step.ID))
	case OpEditCell:
		value, err := step.Value.toCellValue()
		if err != nil {
			return err
		}
		return session.EditCell(ctx, grid.RowID(step.Row), grid.ColumnID(step.Column), value)
	case OpClearCell:
		return session.EditCell(ctx, grid.RowID(step.Row), grid.ColumnID(step.Column), nil)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func columnsOf(specs []ColumnSpec) []grid.Column {
	columns := make([]grid.Column, len(specs))
	for i, spec := range specs {
		columns[i] = spec.toColumn()
	}
	return columns
}

func rowsOf(specs []RowSpec) ([]grid.Row, error) {
	rows := make([]grid.Row, len(specs))
	for i, spec := range specs {
		row, err := spec.toRow()
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}
