package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func inlineLayer(t *testing.T, src string) yaml.Node {
	t.Helper()
	var n yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &n))
	return n
}

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_RecordReadBackFromStore(t *testing.T) {
	s := &Scenario{
		Name:        "water",
		Description: "single arm",
		Layer: inlineLayer(t, `
filters:
  - filter: {natural: water}
    min_zoom: 0
    output: {kind: water}
`),
		Assertions: []Assertion{{Type: AssertArmCount, Count: 1}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.NotNil(t, result.Record)

	assert.Equal(t, "water", result.Record.Name)
	assert.Equal(t, 1, result.Record.Matchers)
	assert.NotEmpty(t, result.Record.Fingerprint)
	assert.NotNil(t, result.Record.Params)
	require.Len(t, result.Arms, 1)
	assert.Equal(t, Arm{
		Kind:      "water",
		Condition: "((tags ? 'natural') AND (tags->'natural' = 'water'))",
		Output:    `('{"kind": ' || mz_to_json_null_safe('water'::text) || '}')::json`,
		MinZoom:   "0",
	}, result.Arms[0])
}

func TestRun_NonLiteralKind(t *testing.T) {
	s := &Scenario{
		Name:        "shops",
		Description: "kind read from a tag",
		Layer: inlineLayer(t, `
filters:
  - filter: {shop: true}
    min_zoom: 15
    output: {kind: {col: "tags->shop"}}
`),
		Assertions: []Assertion{{Type: AssertArmOrder, Kinds: []string{"tags->'shop'"}}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SyntheticColumns(t *testing.T) {
	layer := `
filters:
  - filter: {volume: {min: 100}}
    table: buildings
    min_zoom: 13
    output: {kind: building}
`
	without := &Scenario{
		Name:        "buildings",
		Description: "volume is a param",
		Layer:       inlineLayer(t, layer),
		Assertions:  []Assertion{{Type: AssertParamsCount, Count: 1}},
	}
	result, err := Run(without)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	with := &Scenario{
		Name:             "buildings",
		Description:      "volume is synthetic",
		Layer:            inlineLayer(t, layer),
		SyntheticColumns: []string{"volume"},
		Assertions:       []Assertion{{Type: AssertParamsCount, Count: 0}},
	}
	result, err = Run(with)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnexpectedCompileError(t *testing.T) {
	s := &Scenario{
		Name:        "bad",
		Description: "null leaf",
		Layer: inlineLayer(t, `
filters:
  - filter: {a: null}
    min_zoom: 1
    output: {kind: x}
`),
		Assertions: []Assertion{{Type: AssertArmCount, Count: 1}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Nil(t, result.Record)
	assert.NotEmpty(t, result.CompileError)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected compile error")
}

func TestRun_ExpectedErrorButCompiled(t *testing.T) {
	s := &Scenario{
		Name:        "fine",
		Description: "compiles",
		Layer: inlineLayer(t, `
filters:
  - filter: {a: b}
    min_zoom: 1
    output: {kind: x}
`),
		Assertions: []Assertion{{Type: AssertError, Contains: "anything"}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: compile error")
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/places_params.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Record, second.Record)
	assert.Equal(t, first.Arms, second.Arms)
}

func TestRun_MissingLayerFile(t *testing.T) {
	s := &Scenario{
		Name:        "gone",
		Description: "layer file removed after load",
		LayerFile:   "testdata/layers/does-not-exist.yaml",
		Assertions:  []Assertion{{Type: AssertArmCount, Count: 1}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read layer file")
}
