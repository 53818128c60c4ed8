package compiler

import (
	"io"
	"log/slog"
	"runtime"
	"slices"

	"github.com/roach88/tilekind/internal/querysql"
)

// Defaults for column resolution.
const (
	DefaultGenericTable = "osm"
	DefaultColumnType   = "text"
)

// DefaultFixedColumns are the columns of the generic table that are real
// table columns rather than tag keys.
func DefaultFixedColumns() []string {
	return []string{"way_area", "way", "osm_id", "volume"}
}

// DefaultSyntheticColumns are computed inside every generated function body
// and never become parameters.
func DefaultSyntheticColumns() []string {
	return []string{"way_area"}
}

// TypeRule assigns a SQL type to fixed columns named Column.
// An empty Table matches every table.
type TypeRule struct {
	Table  string `yaml:"table,omitempty" json:"table,omitempty"`
	Column string `yaml:"column" json:"column"`
	Type   string `yaml:"type" json:"type"`
}

// Matches reports whether the rule applies to column name on table.
func (r TypeRule) Matches(table, name string) bool {
	return r.Column == name && (r.Table == "" || r.Table == table)
}

// DefaultTypePolicy returns the built-in parameter type rules, in priority
// order. Columns no rule matches are DefaultColumnType.
func DefaultTypePolicy() []TypeRule {
	return []TypeRule{
		{Column: "gid", Type: "integer"},
		{Column: "fid", Type: "integer"},
		{Column: "scalerank", Type: "smallint"},
		{Column: "labelrank", Type: "smallint"},
		{Column: "way", Type: "geometry"},
		{Table: "ne", Column: "expressway", Type: "smallint"},
	}
}

// Options configures a Compiler.
type Options struct {
	// GenericTable is the table whose non-fixed attributes live in tags.
	GenericTable string

	// FixedColumns lists real columns of the generic table.
	FixedColumns []string

	// SyntheticColumns extends DefaultSyntheticColumns. Every layer excludes
	// both, plus its own synthetic_columns, from its parameters.
	SyntheticColumns []string

	// TypePolicy is consulted first-match-wins for parameter types.
	TypePolicy []TypeRule

	// SQL renders the IR. Nil means querysql.NewSQLCompiler().
	SQL *querysql.SQLCompiler

	// Workers bounds parallel layer compilation in CompileAll.
	Workers int

	// Logger receives debug events. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the options matching the standard osm2pgsql schema.
func DefaultOptions() Options {
	return Options{
		GenericTable:     DefaultGenericTable,
		FixedColumns:     DefaultFixedColumns(),
		SyntheticColumns: DefaultSyntheticColumns(),
		TypePolicy:       DefaultTypePolicy(),
		SQL:              querysql.NewSQLCompiler(),
		Workers:          runtime.GOMAXPROCS(0),
	}
}

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	if o.GenericTable == "" {
		o.GenericTable = DefaultGenericTable
	}
	if o.FixedColumns == nil {
		o.FixedColumns = DefaultFixedColumns()
	}
	o.SyntheticColumns = appendNew(DefaultSyntheticColumns(), o.SyntheticColumns...)
	if o.TypePolicy == nil {
		o.TypePolicy = DefaultTypePolicy()
	}
	if o.SQL == nil {
		o.SQL = querysql.NewSQLCompiler()
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// appendNew appends the names not already in list, keeping first-seen order.
func appendNew(list []string, names ...string) []string {
	for _, name := range names {
		if !slices.Contains(list, name) {
			list = append(list, name)
		}
	}
	return list
}
