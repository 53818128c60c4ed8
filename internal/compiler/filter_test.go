package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tilekind/internal/ir"
	"github.com/roach88/tilekind/internal/queryir"
)

func newTestBuilder() *RuleBuilder {
	return NewRuleBuilder(NewColumnResolver(DefaultGenericTable, DefaultFixedColumns()))
}

func yamlValue(t *testing.T, src string) ir.IRValue {
	t.Helper()
	v, err := ir.FromYAML([]byte(src))
	require.NoError(t, err)
	return v
}

func TestBuildLeaf_Dispatch(t *testing.T) {
	b := newTestBuilder()
	tag := queryir.TagColumn

	testCases := []struct {
		name  string
		key   string
		value ir.IRValue
		table string
		want  queryir.Rule
	}{
		{
			name:  "sequence is set membership",
			key:   "highway",
			value: ir.IRArray{ir.IRString("primary"), ir.IRString("secondary")},
			want:  queryir.In{Column: tag("highway"), Values: []queryir.Value{queryir.Text("primary"), queryir.Text("secondary")}},
		},
		{
			name:  "true is exists",
			key:   "building",
			value: ir.IRBool(true),
			want:  queryir.Exists{Column: tag("building")},
		},
		{
			name:  "false is not exists",
			key:   "building",
			value: ir.IRBool(false),
			want:  queryir.NotExists{Column: tag("building")},
		},
		{
			name:  "int is equals",
			key:   "layer",
			value: ir.IRInt(5),
			want:  queryir.Equals{Column: tag("layer"), Value: queryir.Int(5)},
		},
		{
			name:  "float is equals",
			key:   "height",
			value: ir.IRFloat(2.5),
			want:  queryir.Equals{Column: tag("height"), Value: queryir.Literal{Scalar: ir.IRFloat(2.5)}},
		},
		{
			name:  "negation marker is not equals",
			key:   "highway",
			value: ir.IRString("-foo"),
			want:  queryir.NotEquals{Column: tag("highway"), Value: queryir.Text("foo")},
		},
		{
			name:  "min record is greater or equals",
			key:   "admin_level",
			value: ir.IRObject{ir.O("min", ir.IRInt(4))},
			want:  queryir.GreaterOrEquals{Column: tag("admin_level"), Value: queryir.Int(4)},
		},
		{
			name:  "expr record with cols",
			key:   "way_area",
			value: ir.IRObject{ir.O("expr", ir.IRString("way_area > 10")), ir.O("cols", ir.IRArray{ir.IRString("way")})},
			want:  queryir.Expression{Column: queryir.FixedColumn("way_area"), SQL: "way_area > 10", Columns: []queryir.Column{queryir.FixedColumn("way")}},
		},
		{
			name:  "expr record without cols",
			key:   "way_area",
			value: ir.IRObject{ir.O("expr", ir.IRString("way_area > 10"))},
			want:  queryir.Expression{Column: queryir.FixedColumn("way_area"), SQL: "way_area > 10"},
		},
		{
			name:  "min wins over expr",
			key:   "rank",
			value: ir.IRObject{ir.O("expr", ir.IRString("x")), ir.O("min", ir.IRInt(1))},
			want:  queryir.GreaterOrEquals{Column: tag("rank"), Value: queryir.Int(1)},
		},
		{
			name:  "plain text is equals",
			key:   "highway",
			value: ir.IRString("motorway"),
			want:  queryir.Equals{Column: tag("highway"), Value: queryir.Text("motorway")},
		},
		{
			name:  "col record compares columns",
			key:   "name",
			value: ir.IRObject{ir.O("col", ir.IRString("ref"))},
			want:  queryir.Equals{Column: tag("name"), Value: queryir.ColumnRef{Column: queryir.FixedColumn("ref")}},
		},
		{
			name:  "value record forces text",
			key:   "name",
			value: ir.IRObject{ir.O("value", ir.IRInt(10))},
			want:  queryir.Equals{Column: tag("name"), Value: queryir.Text("10")},
		},
		{
			name:  "owning table makes fixed column",
			key:   "highway",
			value: ir.IRString("motorway"),
			table: "roads",
			want:  queryir.Equals{Column: queryir.FixedColumn("highway"), Value: queryir.Text("motorway")},
		},
		{
			name:  "tag marker",
			key:   "tags->way",
			value: ir.IRBool(true),
			table: "roads",
			want:  queryir.Exists{Column: tag("way")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := b.BuildLeaf(tc.key, tc.value, tc.table, "f")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildLeaf_Rejects(t *testing.T) {
	b := newTestBuilder()

	testCases := []struct {
		name    string
		value   ir.IRValue
		wantMsg string
	}{
		{name: "null", value: ir.IRNull{}, wantMsg: "unsupported filter value: null"},
		{name: "missing", value: nil, wantMsg: "unsupported filter value: missing"},
		{name: "unrecognized record", value: ir.IRObject{ir.O("foo", ir.IRInt(1))}, wantMsg: "unsupported filter value: mapping with keys [foo]"},
		{name: "empty set", value: ir.IRArray{}, wantMsg: "set is empty"},
		{name: "non-string expr", value: ir.IRObject{ir.O("expr", ir.IRInt(1))}, wantMsg: "filter expression must be a string"},
		{name: "nested list in set", value: ir.IRArray{ir.IRArray{}}, wantMsg: "unsupported value: list"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.BuildLeaf("highway", tc.value, "", "filters[0].filter.highway")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			assert.Contains(t, err.Error(), tc.wantMsg)

			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Contains(t, ce.Field, "filters[0].filter.highway")
		})
	}
}

func TestBuildLevel(t *testing.T) {
	b := newTestBuilder()

	testCases := []struct {
		name       string
		src        string
		combinator Combinator
		want       queryir.Rule
	}{
		{
			name:       "single entry is unwrapped",
			src:        `[{highway: motorway}]`,
			combinator: CombineOr,
			want:       queryir.Equals{Column: queryir.TagColumn("highway"), Value: queryir.Text("motorway")},
		},
		{
			name:       "bare mapping is one entry",
			src:        `{building: true}`,
			combinator: CombineAnd,
			want:       queryir.Exists{Column: queryir.TagColumn("building")},
		},
		{
			name:       "or level",
			src:        `[{a: 1}, {b: 2}]`,
			combinator: CombineOr,
			want: queryir.Or{Rules: []queryir.Rule{
				queryir.Equals{Column: queryir.TagColumn("a"), Value: queryir.Int(1)},
				queryir.Equals{Column: queryir.TagColumn("b"), Value: queryir.Int(2)},
			}},
		},
		{
			name:       "multi-key mapping keeps key order",
			src:        `{z: true, a: false}`,
			combinator: CombineAnd,
			want: queryir.And{Rules: []queryir.Rule{
				queryir.Exists{Column: queryir.TagColumn("z")},
				queryir.NotExists{Column: queryir.TagColumn("a")},
			}},
		},
		{
			name:       "not wraps an and level",
			src:        `{not: [{a: true}, {b: true}]}`,
			combinator: CombineAnd,
			want: queryir.Not{Rule: queryir.And{Rules: []queryir.Rule{
				queryir.Exists{Column: queryir.TagColumn("a")},
				queryir.Exists{Column: queryir.TagColumn("b")},
			}}},
		},
		{
			name:       "not with one entry",
			src:        `{not: {a: true}}`,
			combinator: CombineAnd,
			want:       queryir.Not{Rule: queryir.Exists{Column: queryir.TagColumn("a")}},
		},
		{
			name:       "nested any inside all",
			src:        `[{all: [{x: true}, {any: [{y: 1}, {z: 2}]}]}]`,
			combinator: CombineOr,
			want: queryir.And{Rules: []queryir.Rule{
				queryir.Exists{Column: queryir.TagColumn("x")},
				queryir.Or{Rules: []queryir.Rule{
					queryir.Equals{Column: queryir.TagColumn("y"), Value: queryir.Int(1)},
					queryir.Equals{Column: queryir.TagColumn("z"), Value: queryir.Int(2)},
				}},
			}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := b.BuildLevel(yamlValue(t, tc.src), "", tc.combinator, "f")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildLevel_Empty(t *testing.T) {
	b := newTestBuilder()

	_, err := b.BuildLevel(ir.IRArray{}, "", CombineAnd, "filters[0].filter.any")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "filters[0].filter.any: no rules specified in level")

	_, err = b.BuildLevel(ir.IRObject{}, "", CombineAnd, "f")
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestBuildLevel_NestedEmptyReportsPath(t *testing.T) {
	b := newTestBuilder()

	_, err := b.BuildFilter(yamlValue(t, `{any: [{a: true}, {not: []}]}`), "", "filters[3].filter")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "filters[3].filter.any[1].not", ce.Field)
}

func TestBuildLevel_RejectsScalarEntries(t *testing.T) {
	b := newTestBuilder()

	_, err := b.BuildLevel(ir.IRArray{ir.IRString("highway")}, "", CombineAnd, "f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "level entry must be a mapping")
}

func TestBuildFilter_RequiresMapping(t *testing.T) {
	b := newTestBuilder()

	_, err := b.BuildFilter(ir.IRArray{ir.IRObject{ir.O("a", ir.IRBool(true))}}, "", "filter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filter must be a mapping")
}

func TestBuildFilter_TopLevelAndsKeysInOrder(t *testing.T) {
	b := newTestBuilder()

	got, err := b.BuildFilter(yamlValue(t, `{highway: motorway, tunnel: "-yes", bridge: false}`), "", "filter")
	require.NoError(t, err)
	assert.Equal(t, queryir.And{Rules: []queryir.Rule{
		queryir.Equals{Column: queryir.TagColumn("highway"), Value: queryir.Text("motorway")},
		queryir.NotEquals{Column: queryir.TagColumn("tunnel"), Value: queryir.Text("yes")},
		queryir.NotExists{Column: queryir.TagColumn("bridge")},
	}}, got)
}

func TestParseValue(t *testing.T) {
	b := newTestBuilder()

	testCases := []struct {
		name  string
		value ir.IRValue
		want  queryir.Value
	}{
		{name: "string", value: ir.IRString("park"), want: queryir.Text("park")},
		{name: "int", value: ir.IRInt(3), want: queryir.Int(3)},
		{name: "bool", value: ir.IRBool(true), want: queryir.Literal{Scalar: ir.IRBool(true)}},
		{name: "null", value: ir.IRNull{}, want: queryir.Null()},
		{name: "expr null", value: ir.IRObject{ir.O("expr", ir.IRNull{})}, want: queryir.Null()},
		{
			name:  "expr with columns",
			value: ir.IRObject{ir.O("expr", ir.IRString("lower(name)")), ir.O("columns", ir.IRArray{ir.IRString("name")})},
			want:  queryir.RawExpr{SQL: "lower(name)", Columns: []queryir.Column{queryir.FixedColumn("name")}},
		},
		{
			name:  "expr with cols spelling",
			value: ir.IRObject{ir.O("expr", ir.IRString("x")), ir.O("cols", ir.IRString("tags->ref"))},
			want:  queryir.RawExpr{SQL: "x", Columns: []queryir.Column{queryir.TagColumn("ref")}},
		},
		{
			name:  "expr with empty column list",
			value: ir.IRObject{ir.O("expr", ir.IRString("now()")), ir.O("columns", ir.IRArray{})},
			want:  queryir.RawExpr{SQL: "now()", Columns: []queryir.Column{}},
		},
		{name: "fixed col", value: ir.IRObject{ir.O("col", ir.IRString("name"))}, want: queryir.ColumnRef{Column: queryir.FixedColumn("name")}},
		{name: "tag col", value: ir.IRObject{ir.O("col", ir.IRString("tags->name"))}, want: queryir.ColumnRef{Column: queryir.TagColumn("name")}},
		{
			name:  "ignored col",
			value: ir.IRObject{ir.O("col", ir.IRString("name")), ir.O("ignore", ir.IRBool(true))},
			want:  queryir.ColumnRef{Column: queryir.FixedColumn("name"), Untracked: true},
		},
		{name: "forced text", value: ir.IRObject{ir.O("value", ir.IRString("yes"))}, want: queryir.Text("yes")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := b.ParseValue(tc.value, "v")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildLeaf_RejectsEmptyNames(t *testing.T) {
	b := newTestBuilder()

	tests := []struct {
		key     string
		wantMsg string
	}{
		{"tags->", "tag key is empty"},
		{"", "column name is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			_, err := b.BuildLeaf(tt.key, ir.IRString("foo"), "", "filters[0].filter")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			assert.False(t, errors.Is(err, ErrInvariantViolation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseValue_RejectsEmptyNames(t *testing.T) {
	b := newTestBuilder()

	tests := []struct {
		name    string
		value   ir.IRValue
		wantMsg string
	}{
		{"empty col", ir.IRObject{ir.O("col", ir.IRString(""))}, "v.col: column name is empty"},
		{"empty tag col", ir.IRObject{ir.O("col", ir.IRString("tags->"))}, "v.col: tag key is empty"},
		{"non-string col", ir.IRObject{ir.O("col", ir.IRInt(1))}, "col must be a string, got int"},
		{"empty expr col", ir.IRObject{ir.O("expr", ir.IRString("x")), ir.O("cols", ir.IRArray{ir.IRString("a"), ir.IRString("tags->")})}, "v.cols[1]: tag key is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.ParseValue(tt.value, "v")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseValue_Rejects(t *testing.T) {
	b := newTestBuilder()

	for _, v := range []ir.IRValue{
		ir.IRArray{},
		ir.IRObject{ir.O("other", ir.IRInt(1))},
		ir.IRObject{ir.O("col", ir.IRInt(1))},
		ir.IRObject{ir.O("col", ir.IRString("x")), ir.O("ignore", ir.IRString("yes"))},
		ir.IRObject{ir.O("expr", ir.IRArray{})},
		ir.IRObject{ir.O("value", ir.IRArray{})},
	} {
		_, err := b.ParseValue(v, "v")
		assert.True(t, errors.Is(err, ErrConfiguration), "value %#v", v)
	}
}

func TestParseMinZoom(t *testing.T) {
	b := newTestBuilder()

	got, err := b.ParseMinZoom(ir.IRInt(4), "min_zoom")
	require.NoError(t, err)
	assert.Equal(t, queryir.Int(4), got)

	got, err = b.ParseMinZoom(ir.IRNull{}, "min_zoom")
	require.NoError(t, err)
	assert.Equal(t, queryir.Null(), got)

	got, err = b.ParseMinZoom(ir.IRString("LEAST(14, zoom)"), "min_zoom")
	require.NoError(t, err)
	assert.Equal(t, queryir.RawExpr{SQL: "LEAST(14, zoom)"}, got)

	got, err = b.ParseMinZoom(ir.IRObject{ir.O("expr", ir.IRString("z(way_area)")), ir.O("cols", ir.IRArray{ir.IRString("way_area")})}, "min_zoom")
	require.NoError(t, err)
	assert.Equal(t, queryir.RawExpr{SQL: "z(way_area)", Columns: []queryir.Column{queryir.FixedColumn("way_area")}}, got)

	_, err = b.ParseMinZoom(nil, "min_zoom")
	assert.ErrorContains(t, err, "min_zoom is required")

	_, err = b.ParseMinZoom(ir.IRBool(true), "min_zoom")
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = b.ParseMinZoom(ir.IRObject{ir.O("col", ir.IRString("z"))}, "min_zoom")
	assert.ErrorContains(t, err, "must contain expr")
}

func TestParseOutput(t *testing.T) {
	b := newTestBuilder()

	got, err := b.ParseOutput(yamlValue(t, `{kind: park, tier: 2, name: {col: "tags->name"}}`), "output")
	require.NoError(t, err)
	assert.Equal(t, []queryir.OutputField{
		{Name: "kind", Value: queryir.Text("park")},
		{Name: "tier", Value: queryir.Int(2)},
		{Name: "name", Value: queryir.ColumnRef{Column: queryir.TagColumn("name")}},
	}, got)
}

func TestParseOutput_RequiresKind(t *testing.T) {
	b := newTestBuilder()

	_, err := b.ParseOutput(yamlValue(t, `{kind_detail: x}`), "filters[1].output")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.EqualError(t, err, "filters[1].output: output must contain kind")

	_, err = b.ParseOutput(ir.IRString("park"), "output")
	assert.ErrorContains(t, err, "output must be a mapping")
}
