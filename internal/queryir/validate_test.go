package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_CleanMatcher(t *testing.T) {
	m := Matcher{
		Rule:    Equals{Column: TagColumn("highway"), Value: Text("motorway")},
		Output:  []OutputField{{Name: "kind", Value: Text("highway")}},
		MinZoom: Int(5),
	}

	result := Validate(m)

	assert.True(t, result.IsClean)
	assert.Empty(t, result.Warnings)
}

func TestValidate_ExpressionWithoutCols(t *testing.T) {
	m := Matcher{
		Rule:    Expression{Column: FixedColumn("way_area"), SQL: "way_area > 1000"},
		Output:  []OutputField{{Name: "kind", Value: Text("lake")}},
		MinZoom: Int(9),
	}

	result := Validate(m)

	assert.False(t, result.IsClean)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "declares no cols")
}

func TestValidate_ExtraColumnsSilenceExpressionWarnings(t *testing.T) {
	m := Matcher{
		Rule:         Expression{Column: FixedColumn("way_area"), SQL: "way_area > 1000"},
		Output:       []OutputField{{Name: "kind", Value: RawExpr{SQL: "initcap(\"name\")"}}},
		MinZoom:      RawExpr{SQL: "LEAST(zoom, 14)"},
		ExtraColumns: []Column{FixedColumn("name")},
	}

	result := Validate(m)

	assert.True(t, result.IsClean, "warnings: %v", result.Warnings)
}

func TestValidate_RawOutputAndMinZoom(t *testing.T) {
	m := Matcher{
		Rule:    Exists{Column: TagColumn("aeroway")},
		Output:  []OutputField{{Name: "kind", Value: RawExpr{SQL: "tags->'aeroway'"}}},
		MinZoom: RawExpr{SQL: "mz_zoom(way_area)"},
	}

	result := Validate(m)

	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "output kind")
	assert.Contains(t, result.Warnings[1], "min_zoom")
}

func TestValidate_NotEqualsFixedColumn(t *testing.T) {
	testCases := []struct {
		name     string
		column   Column
		wantWarn bool
	}{
		{name: "fixed column warns", column: FixedColumn("type"), wantWarn: true},
		{name: "tag column is paired with exists check", column: TagColumn("type"), wantWarn: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := Matcher{
				Rule:    Not{Rule: NotEquals{Column: tc.column, Value: Text("x")}},
				Output:  []OutputField{{Name: "kind", Value: Text("k")}},
				MinZoom: Null(),
			}
			result := Validate(m)
			assert.Equal(t, tc.wantWarn, !result.IsClean, "warnings: %v", result.Warnings)
		})
	}
}

func TestValidate_NilRule(t *testing.T) {
	result := Validate(Matcher{Output: []OutputField{{Name: "kind", Value: Text("k")}}})

	assert.False(t, result.IsClean)
	assert.Contains(t, result.Warnings[0], "nil rule")
}

func TestValidate_Pure(t *testing.T) {
	m := Matcher{
		Rule: And{Rules: []Rule{
			Expression{Column: FixedColumn("a"), SQL: "a > 1"},
			NotEquals{Column: FixedColumn("b"), Value: Int(2)},
		}},
		Output: []OutputField{{Name: "kind", Value: Text("k")}},
	}

	first := Validate(m)
	second := Validate(m)

	assert.Equal(t, first, second)
	assert.Len(t, first.Warnings, 2)
}
