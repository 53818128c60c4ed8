package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Inline(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/roads_priority.yaml")
	require.NoError(t, err)

	assert.Equal(t, "roads_priority", s.Name)
	assert.Equal(t, "roads", s.layerName())
	assert.NotZero(t, s.Layer.Kind)
	assert.Empty(t, s.LayerFile)
	require.Len(t, s.Assertions, 7)
	assert.Equal(t, AssertArmOrder, s.Assertions[0].Type)
	assert.Equal(t, []string{"highway", "major_road", "minor_road"}, s.Assertions[0].Kinds)
	assert.Equal(t, 2, s.Assertions[3].Arm)
}

func TestLoadScenario_LayerFileResolvedRelative(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/places_params.yaml")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("testdata", "layers", "places.yaml"), s.LayerFile)
}

func TestLoadScenario_DefaultLayerName(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/missing_kind.yaml")
	require.NoError(t, err)
	assert.Equal(t, "missing_kind", s.layerName())
}

func TestLoadScenario_Errors(t *testing.T) {
	const layer = `
layer:
  filters:
    - filter: {a: b}
      min_zoom: 1
      output: {kind: x}
`
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\n" + layer + "assertions: [{type: arm_count, count: 1}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\n" + layer + "assertions: [{type: arm_count, count: 1}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no layer",
			content: "name: n\ndescription: d\nassertions: [{type: arm_count, count: 1}]\n",
			wantErr: "one of layer or layer_file is required",
		},
		{
			name:    "both layer forms",
			content: "name: n\ndescription: d\nlayer_file: x.yaml\n" + layer + "assertions: [{type: arm_count, count: 1}]\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "missing layer file",
			content: "name: n\ndescription: d\nlayer_file: nope.yaml\nassertions: [{type: arm_count, count: 1}]\n",
			wantErr: "layer file not found",
		},
		{
			name:    "no assertions",
			content: "name: n\ndescription: d\n" + layer,
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nasertions: []\n" + layer,
			wantErr: "failed to parse YAML",
		},
		{
			name:    "unknown assertion type",
			content: "name: n\ndescription: d\n" + layer + "assertions: [{type: trace_order}]\n",
			wantErr: `assertions[0]: unknown assertion type "trace_order"`,
		},
		{
			name:    "condition without expect",
			content: "name: n\ndescription: d\n" + layer + "assertions: [{type: condition, arm: 0}]\n",
			wantErr: "expect is required for condition",
		},
		{
			name:    "negative arm",
			content: "name: n\ndescription: d\n" + layer + "assertions: [{type: min_zoom, arm: -1, expect: '1'}]\n",
			wantErr: "arm must be non-negative",
		},
		{
			name:    "param without column",
			content: "name: n\ndescription: d\n" + layer + "assertions: [{type: param, table: ne}]\n",
			wantErr: "column is required for param",
		},
		{
			name:    "arm_order without kinds",
			content: "name: n\ndescription: d\n" + layer + "assertions: [{type: arm_order}]\n",
			wantErr: "kinds list is required",
		},
		{
			name:    "unknown error kind",
			content: "name: n\ndescription: d\n" + layer + "assertions: [{type: error, kind: fatal}]\n",
			wantErr: `unknown error kind "fatal"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_NotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarios_SortedByFile(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"missing_kind", "places_params", "roads_priority"}, names)
}

func TestLoadScenarios_NamesBadFile(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: [\n")

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}
