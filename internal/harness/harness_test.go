package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func column(id, name string, position int) ColumnSpec {
	return ColumnSpec{ID: id, Name: name, Kind: "text", Position: position}
}

func TestRun_PassingScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "add_and_confirm",
		Description: "optimistic add confirmed by snapshot",
		Table:       "tbl-1",
		Steps: []Step{
			{Op: OpSeedColumns, Columns: []ColumnSpec{column("c1", "Name", 0)}},
			{Op: OpAddColumn, Name: "Due", Kind: "date"},
			{Op: OpColumnSnapshot, Columns: []ColumnSpec{
				column("c1", "Name", 0),
				{ID: "srv-1", Name: "Due", Kind: "date", Position: 1},
			}},
		},
		Expect: Expectation{
			Columns: []string{"c1:Name@0", "srv-1:Due@1"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, "ok", result.Trace[1].Outcome)
	assert.Equal(t, []string{"c1:Name@0", "srv-1:Due@1"}, result.FinalColumns)
}

func TestRun_PlaceholderVisibleBeforeSnapshot(t *testing.T) {
	scenario := &Scenario{
		Name:        "placeholder_ids",
		Description: "server id replaces the placeholder on ack",
		Steps: []Step{
			{Op: OpAddColumn, Name: "Due", Kind: "date"},
		},
		Expect: Expectation{Columns: []string{"srv-1:Due@0"}},
	}
	require.NoError(t, validateScenario(scenario))

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ExpectationMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "expectation does not match final view",
		Table:       "tbl-1",
		Steps: []Step{
			{Op: OpSeedColumns, Columns: []ColumnSpec{column("c1", "Name", 0)}},
		},
		Expect: Expectation{Columns: []string{"c1:Renamed@0"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "columns")
}

func TestRun_ScriptedFailureRollsBack(t *testing.T) {
	scenario := &Scenario{
		Name:        "fail_rolls_back",
		Description: "armed failure leaves the seeded view untouched",
		Table:       "tbl-1",
		Steps: []Step{
			{Op: OpSeedColumns, Columns: []ColumnSpec{column("c1", "Name", 0)}},
			{Op: OpAddColumn, Name: "Due", Kind: "date", Fail: true, ExpectError: true},
		},
		Expect: Expectation{Columns: []string{"c1:Name@0"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Trace[1].Outcome, "scripted persistence failure")
	assert.Equal(t, []string{"c1:Name@0"}, result.Trace[1].Columns)
}

func TestRun_ExpectedErrorThatNeverHappensFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "phantom_error",
		Description: "expect_error on a healthy step is itself a failure",
		Table:       "tbl-1",
		Steps: []Step{
			{Op: OpAddRow, ExpectError: true},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "expected an error")
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "surprise_error",
		Description: "renaming an unknown column fails the scenario",
		Table:       "tbl-1",
		Steps: []Step{
			{Op: OpRenameColumn, ID: "ghost", Name: "Title"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "entity not found")
}

func TestRun_TombstoneExpectations(t *testing.T) {
	scenario := &Scenario{
		Name:        "pending_tombstone",
		Description: "a delete stays tombstoned until a snapshot confirms it",
		Table:       "tbl-1",
		Steps: []Step{
			{Op: OpSeedColumns, Columns: []ColumnSpec{
				column("c1", "Name", 0),
				column("c2", "Status", 1),
			}},
			{Op: OpDeleteColumn, ID: "c2"},
			// The snapshot still carries c2; the tombstone keeps it hidden.
			{Op: OpColumnSnapshot, Columns: []ColumnSpec{
				column("c1", "Name", 0),
				column("c2", "Status", 1),
			}},
		},
		Expect: Expectation{
			Columns:           []string{"c1:Name@0"},
			TombstonedColumns: []string{"c2"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"c2"}, result.TombstonedColumns)
}
