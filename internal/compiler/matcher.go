package compiler

import (
	"github.com/roach88/tilekind/internal/queryir"
)

// BuildMatcher lowers one filter entry into a matcher.
func (c *Compiler) BuildMatcher(f FilterConfig, path string) (queryir.Matcher, error) {
	rule, err := c.rules.BuildFilter(f.Filter, f.Table, joinPath(path, "filter"))
	if err != nil {
		return queryir.Matcher{}, err
	}
	output, err := c.rules.ParseOutput(f.Output, joinPath(path, "output"))
	if err != nil {
		return queryir.Matcher{}, err
	}
	minZoom, err := c.rules.ParseMinZoom(f.MinZoom, joinPath(path, "min_zoom"))
	if err != nil {
		return queryir.Matcher{}, err
	}
	for i, name := range f.ExtraColumns {
		if err := checkColumnName(name, indexPath(joinPath(path, "extra_columns"), i)); err != nil {
			return queryir.Matcher{}, err
		}
	}
	return queryir.Matcher{
		Rule:         rule,
		Output:       output,
		MinZoom:      minZoom,
		Table:        f.Table,
		ExtraColumns: c.resolver.Dependencies(f.ExtraColumns),
	}, nil
}

// MatcherDependencies returns the columns a matcher reads, deduplicated in
// first-seen order, minus synthetic columns.
//
// The set is the rule's columns, every output value's columns, the min-zoom
// columns and the explicit extra columns. A synthetic name removes the
// column it resolves to on the matcher's table as well as its declared
// dependency form.
func (c *Compiler) MatcherDependencies(m queryir.Matcher, synthetic []string, path string) ([]queryir.Column, error) {
	cols, err := c.matcherColumns(m, path)
	if err != nil {
		return nil, err
	}
	excluded := c.syntheticSet(synthetic, m.Table)
	deps := make([]queryir.Column, 0, len(cols))
	for _, col := range cols {
		if _, ok := excluded[col]; !ok {
			deps = append(deps, col)
		}
	}
	return deps, nil
}

// matcherColumns is every column m reads, deduplicated in first-seen order.
func (c *Compiler) matcherColumns(m queryir.Matcher, path string) ([]queryir.Column, error) {
	cols, err := queryir.RuleColumns(m.Rule)
	if err != nil {
		return nil, invariantErrorf(path, "%v", err)
	}
	for _, f := range m.Output {
		vc, err := queryir.ValueColumns(f.Value)
		if err != nil {
			return nil, invariantErrorf(joinPath(path, "output."+f.Name), "%v", err)
		}
		cols = append(cols, vc...)
	}
	if m.MinZoom != nil {
		vc, err := queryir.ValueColumns(m.MinZoom)
		if err != nil {
			return nil, invariantErrorf(joinPath(path, "min_zoom"), "%v", err)
		}
		cols = append(cols, vc...)
	}
	cols = append(cols, m.ExtraColumns...)

	seen := make(map[queryir.Column]struct{}, len(cols))
	out := make([]queryir.Column, 0, len(cols))
	for _, col := range cols {
		if !col.Valid() {
			return nil, invariantErrorf(path, "invalid column %q in dependency set", col.String())
		}
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		out = append(out, col)
	}
	return out, nil
}

// syntheticSet maps each column a synthetic name can stand for on table
// back to that name.
func (c *Compiler) syntheticSet(synthetic []string, table string) map[queryir.Column]string {
	set := make(map[queryir.Column]string, 2*len(synthetic))
	for _, name := range synthetic {
		set[c.resolver.Resolve(name, table)] = name
		set[c.resolver.Dependency(name)] = name
	}
	return set
}
