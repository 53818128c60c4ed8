package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tilekind/internal/ir"
)

// Snapshot captures a scenario's compiled layer for golden comparison.
type Snapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. The fingerprint is omitted.
func (s *Snapshot) toCanonicalMap() map[string]any {
	arms := make([]any, len(s.Result.Arms))
	for i, arm := range s.Result.Arms {
		arms[i] = map[string]any{
			"kind":      arm.Kind,
			"condition": arm.Condition,
			"output":    arm.Output,
			"min_zoom":  arm.MinZoom,
		}
	}

	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"arms":          arms,
	}
	if rec := s.Result.Record; rec != nil {
		params := make([]any, len(rec.Params))
		for i, p := range rec.Params {
			params[i] = map[string]any{
				"table":  p.Table,
				"column": p.Column,
				"type":   p.Type,
			}
		}
		out["params"] = params
		out["kind_case"] = rec.KindCase
		out["min_zoom_case"] = rec.MinZoomCase
	}
	if s.Result.CompileError != "" {
		out["compile_error"] = s.Result.CompileError
	}
	return out
}

// SnapshotJSON returns the canonical JSON golden content for a result.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := Snapshot{ScenarioName: scenarioName, Result: result}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
