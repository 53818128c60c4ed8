package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCUESourceMatchesYAML(t *testing.T) {
	fromCUE, err := FromCUESource("roads.cue", []byte(`
filters: [{
	filter: {highway: ["trunk", "primary"], bridge: true}
	min_zoom: 7
	output: {kind: "major_road", ratio: 0.5, ref: null}
}]
`))
	require.NoError(t, err)

	fromYAML, err := FromYAML([]byte(`
filters:
  - filter: {highway: [trunk, primary], bridge: true}
    min_zoom: 7
    output: {kind: major_road, ratio: 0.5, ref: null}
`))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromCUE)
}

func TestFromCUESourceEvaluates(t *testing.T) {
	doc, err := FromCUESource("zoom.cue", []byte(`
#base: 4
min_zoom: #base + 2
output: kind: "city"
`))
	require.NoError(t, err)

	assert.Equal(t, IRObject{
		O("min_zoom", IRInt(6)),
		O("output", IRObject{O("kind", IRString("city"))}),
	}, doc)
}

func TestFromCUESourceEmptyList(t *testing.T) {
	doc, err := FromCUESource("empty.cue", []byte(`filters: []`))
	require.NoError(t, err)
	assert.Equal(t, IRObject{O("filters", IRArray{})}, doc)
}

func TestFromCUESourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"syntax", "filters: [", "compile CUE"},
		{"not concrete", "min_zoom: int", "validate CUE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromCUESource("bad.cue", []byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
