package compiler

import (
	"strings"

	"github.com/roach88/tilekind/internal/queryir"
)

// TagPrefix forces a name to resolve to a tag key.
const TagPrefix = "tags->"

// ColumnResolver maps attribute names to columns.
type ColumnResolver struct {
	genericTable string
	fixed        map[string]struct{}
}

// NewColumnResolver creates a resolver for the given generic table and its
// fixed columns.
func NewColumnResolver(genericTable string, fixedColumns []string) *ColumnResolver {
	fixed := make(map[string]struct{}, len(fixedColumns))
	for _, c := range fixedColumns {
		fixed[c] = struct{}{}
	}
	return &ColumnResolver{genericTable: genericTable, fixed: fixed}
}

// Resolve maps a filter key on table to a column.
//
// Rules, in order:
//  1. "tags->key" is the tag key
//  2. on the generic table (or no table), names outside the fixed
//     allow-list are tag keys
//  3. everything else is a fixed column
func (r *ColumnResolver) Resolve(name, table string) queryir.Column {
	if key, ok := strings.CutPrefix(name, TagPrefix); ok {
		return queryir.TagColumn(key)
	}
	if table == "" || table == r.genericTable {
		if _, ok := r.fixed[name]; !ok {
			return queryir.TagColumn(name)
		}
	}
	return queryir.FixedColumn(name)
}

// Dependency maps an explicitly declared dependency name (expression cols,
// output col, extra_columns) to a column. Declared names are fixed columns
// unless they carry TagPrefix.
func (r *ColumnResolver) Dependency(name string) queryir.Column {
	if key, ok := strings.CutPrefix(name, TagPrefix); ok {
		return queryir.TagColumn(key)
	}
	return queryir.FixedColumn(name)
}

// Dependencies maps a list of declared names.
// A nil list stays nil so callers can tell "declared none" from "declared
// an empty list".
func (r *ColumnResolver) Dependencies(names []string) []queryir.Column {
	if names == nil {
		return nil
	}
	cols := make([]queryir.Column, 0, len(names))
	for _, n := range names {
		cols = append(cols, r.Dependency(n))
	}
	return cols
}
