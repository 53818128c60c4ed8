package compiler

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tilekind/internal/ir"
	"github.com/roach88/tilekind/internal/queryir"
	"github.com/roach88/tilekind/internal/querysql"
)

// Compiler turns layer configs into LayerRecords.
// A Compiler holds no mutable state and is safe for concurrent use.
type Compiler struct {
	opts     Options
	resolver *ColumnResolver
	rules    *RuleBuilder
	sql      *querysql.SQLCompiler
	logger   *slog.Logger
}

// New creates a Compiler. Zero option fields take their defaults.
func New(opts Options) *Compiler {
	opts = opts.withDefaults()
	resolver := NewColumnResolver(opts.GenericTable, opts.FixedColumns)
	return &Compiler{
		opts:     opts,
		resolver: resolver,
		rules:    NewRuleBuilder(resolver),
		sql:      opts.SQL,
		logger:   opts.Logger,
	}
}

// Resolver returns the compiler's column resolver.
func (c *Compiler) Resolver() *ColumnResolver {
	return c.resolver
}

// Matchers builds a layer's matchers in declaration order.
func (c *Compiler) Matchers(cfg *LayerConfig) ([]queryir.Matcher, error) {
	if len(cfg.Filters) == 0 {
		return nil, withLayer(cfg.Name, configErrorf("filters", "at least one filter is required"))
	}
	matchers := make([]queryir.Matcher, 0, len(cfg.Filters))
	for i, f := range cfg.Filters {
		m, err := c.BuildMatcher(f, indexPath("filters", i))
		if err != nil {
			return nil, withLayer(cfg.Name, err)
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

// SyntheticColumns returns the names excluded from a layer's parameters:
// the built-in defaults, then the options', then the layer's own.
func (c *Compiler) SyntheticColumns(cfg *LayerConfig) []string {
	return appendNew(slices.Clone(c.opts.SyntheticColumns), cfg.SyntheticColumns...)
}

// ColumnType returns the SQL type of a fixed column on table.
func (c *Compiler) ColumnType(table, name string) string {
	for _, rule := range c.opts.TypePolicy {
		if rule.Matches(table, name) {
			return rule.Type
		}
	}
	return DefaultColumnType
}

// CompileLayer compiles one layer.
//
// Steps:
//  1. Build matchers in declaration order
//  2. Union matcher dependencies; keep fixed columns as typed params and
//     note which synthetic columns are read
//  3. Deduplicate params by (table, column) and sort by that key
//  4. Render the kind and min-zoom CASE expressions
//  5. Fingerprint the record
//
// Any failure aborts the layer; no partial record is returned.
func (c *Compiler) CompileLayer(cfg *LayerConfig) (*ir.LayerRecord, error) {
	matchers, err := c.Matchers(cfg)
	if err != nil {
		return nil, err
	}

	synthetic := c.SyntheticColumns(cfg)
	params := make(map[[2]string]ir.Param)
	used := make(map[string]bool)
	for i, m := range matchers {
		cols, err := c.matcherColumns(m, indexPath("filters", i))
		if err != nil {
			return nil, withLayer(cfg.Name, err)
		}
		excluded := c.syntheticSet(synthetic, m.Table)
		for _, col := range cols {
			if name, ok := excluded[col]; ok {
				if !col.IsTag() {
					used[name] = true
				}
				continue
			}
			if col.IsTag() {
				continue
			}
			p := ir.Param{
				Table:  m.Table,
				Column: c.sql.AccessExpr(col),
				Type:   c.ColumnType(m.Table, col.Name),
			}
			if _, ok := params[p.Key()]; !ok {
				params[p.Key()] = p
			}
		}
	}

	var usedSynthetic []string
	for _, name := range synthetic {
		if used[name] {
			usedSynthetic = append(usedSynthetic, name)
		}
	}

	sorted := make([]ir.Param, 0, len(params))
	for _, p := range params {
		sorted = append(sorted, p)
	}
	slices.SortFunc(sorted, func(a, b ir.Param) int {
		return cmp.Or(cmp.Compare(a.Table, b.Table), cmp.Compare(a.Column, b.Column))
	})

	kindCase, minZoomCase, err := c.sql.CompileMatchers(matchers)
	if err != nil {
		return nil, withLayer(cfg.Name, err)
	}

	rec := &ir.LayerRecord{
		Name:        cfg.Name,
		Params:      sorted,
		KindCase:    kindCase,
		MinZoomCase: minZoomCase,
		Matchers:    len(matchers),
		Synthetic:   usedSynthetic,
	}
	rec.Fingerprint, err = ir.LayerFingerprint(*rec)
	if err != nil {
		return nil, withLayer(cfg.Name, fmt.Errorf("fingerprint: %w", err))
	}

	c.logger.Debug("layer compiled",
		"layer", cfg.Name,
		"matchers", rec.Matchers,
		"params", len(rec.Params),
		"fingerprint", rec.Fingerprint)
	return rec, nil
}

// CompileAll compiles layers in parallel.
//
// Records are returned in input order. If any layer fails, CompileAll
// returns the first error and no records.
func (c *Compiler) CompileAll(ctx context.Context, cfgs []*LayerConfig) ([]*ir.LayerRecord, error) {
	records := make([]*ir.LayerRecord, len(cfgs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.opts.Workers)

	for i, cfg := range cfgs {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			rec, err := c.CompileLayer(cfg)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// CompileAll compiles layers with DefaultOptions.
func CompileAll(ctx context.Context, cfgs []*LayerConfig) ([]*ir.LayerRecord, error) {
	return New(DefaultOptions()).CompileAll(ctx, cfgs)
}
