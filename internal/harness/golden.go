package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the serialized form compared against golden files.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Table        string       `json:"table"`
	Trace        []TraceEvent `json:"trace"`
	Final        finalState   `json:"final"`
}

type finalState struct {
	Columns           []string `json:"columns"`
	Rows              []string `json:"rows"`
	TombstonedColumns []string `json:"tombstoned_columns,omitempty"`
	TombstonedRows    []string `json:"tombstoned_rows,omitempty"`
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden comparison is independent of the scenario's own expectations;
// a scenario can pass its expectations and still fail golden when the
// step-by-step trace drifts.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Table:        scenario.Table,
		Trace:        result.Trace,
		Final: finalState{
			Columns:           result.FinalColumns,
			Rows:              result.FinalRows,
			TombstonedColumns: result.TombstonedColumns,
			TombstonedRows:    result.TombstonedRows,
		},
	}

	traceJSON, err := json.MarshalIndent(&snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal trace snapshot: %w", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
