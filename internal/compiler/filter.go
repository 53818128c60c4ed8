package compiler

import (
	"strings"

	"github.com/roach88/tilekind/internal/ir"
	"github.com/roach88/tilekind/internal/queryir"
)

// Combinator joins the entries of one filter level.
type Combinator int

const (
	CombineAnd Combinator = iota
	CombineOr
)

// Combinator keys in filter documents.
const (
	keyNot = "not"
	keyAll = "all"
	keyAny = "any"
)

// negationMarker prefixes a string leaf to turn equality into inequality.
const negationMarker = "-"

// RuleBuilder lowers filter documents into queryir rules.
//
// Every method takes the document path of its input so configuration
// errors point at the offending entry.
type RuleBuilder struct {
	resolver *ColumnResolver
}

// NewRuleBuilder creates a builder resolving names with r.
func NewRuleBuilder(r *ColumnResolver) *RuleBuilder {
	return &RuleBuilder{resolver: r}
}

// BuildFilter lowers a matcher's top-level filter mapping. All keys are
// ANDed in mapping order; a single key is returned unwrapped.
func (b *RuleBuilder) BuildFilter(filter ir.IRValue, table, path string) (queryir.Rule, error) {
	obj, ok := filter.(ir.IRObject)
	if !ok {
		return nil, configErrorf(path, "filter must be a mapping, got %s", ir.KindOf(filter))
	}
	return b.BuildLevel(obj, table, CombineAnd, path)
}

// BuildLevel lowers one combinator level.
//
// items is a sequence of single-key mappings. A bare mapping is accepted as
// a one-element sequence, and a mapping with several keys contributes each
// key in order. Zero entries is a configuration error; a single entry is
// returned without a wrapping combinator.
func (b *RuleBuilder) BuildLevel(items ir.IRValue, table string, combinator Combinator, path string) (queryir.Rule, error) {
	var entries []ir.IRObject
	var paths []string
	switch v := items.(type) {
	case ir.IRObject:
		entries = []ir.IRObject{v}
		paths = []string{path}
	case ir.IRArray:
		for i, elem := range v {
			obj, ok := elem.(ir.IRObject)
			if !ok {
				return nil, configErrorf(indexPath(path, i), "level entry must be a mapping, got %s", ir.KindOf(elem))
			}
			entries = append(entries, obj)
			paths = append(paths, indexPath(path, i))
		}
	default:
		return nil, configErrorf(path, "level must be a mapping or a list of mappings, got %s", ir.KindOf(items))
	}

	var rules []queryir.Rule
	for i, entry := range entries {
		for _, pair := range entry {
			rule, err := b.buildEntry(pair.Key, pair.Value, table, joinPath(paths[i], pair.Key))
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		}
	}

	switch len(rules) {
	case 0:
		return nil, configErrorf(path, "no rules specified in level")
	case 1:
		return rules[0], nil
	}
	if combinator == CombineOr {
		return queryir.Or{Rules: rules}, nil
	}
	return queryir.And{Rules: rules}, nil
}

// buildEntry handles combinator keys and delegates everything else to
// BuildLeaf.
func (b *RuleBuilder) buildEntry(key string, value ir.IRValue, table, path string) (queryir.Rule, error) {
	switch key {
	case keyNot:
		inner, err := b.BuildLevel(value, table, CombineAnd, path)
		if err != nil {
			return nil, err
		}
		return queryir.Not{Rule: inner}, nil
	case keyAll:
		return b.BuildLevel(value, table, CombineAnd, path)
	case keyAny:
		return b.BuildLevel(value, table, CombineOr, path)
	default:
		return b.BuildLeaf(key, value, table, path)
	}
}

// BuildLeaf lowers a single `key: value` predicate.
//
// Dispatch on the value's shape, first match wins:
//
//	[a, b]            → In
//	true / false      → Exists / NotExists
//	number            → Equals
//	"-text"           → NotEquals "text"
//	{min: v}          → GreaterOrEquals
//	{expr: sql}       → Expression (dependencies from cols/columns)
//	"text"            → Equals
//	{col: c} {value}  → Equals against that value
//
// Null and mappings with none of the keys above are rejected.
func (b *RuleBuilder) BuildLeaf(key string, value ir.IRValue, table, path string) (queryir.Rule, error) {
	if err := checkColumnName(key, path); err != nil {
		return nil, err
	}
	col := b.resolver.Resolve(key, table)

	switch v := value.(type) {
	case ir.IRArray:
		if len(v) == 0 {
			return nil, configErrorf(path, "set is empty")
		}
		values := make([]queryir.Value, 0, len(v))
		for i, elem := range v {
			val, err := b.ParseValue(elem, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			values = append(values, val)
		}
		return queryir.In{Column: col, Values: values}, nil

	case ir.IRBool:
		if v {
			return queryir.Exists{Column: col}, nil
		}
		return queryir.NotExists{Column: col}, nil

	case ir.IRInt, ir.IRFloat:
		return queryir.Equals{Column: col, Value: queryir.Literal{Scalar: v}}, nil

	case ir.IRString:
		if rest, ok := strings.CutPrefix(string(v), negationMarker); ok {
			return queryir.NotEquals{Column: col, Value: queryir.Text(rest)}, nil
		}
		return queryir.Equals{Column: col, Value: queryir.Text(string(v))}, nil

	case ir.IRObject:
		if minVal, ok := v.Get("min"); ok {
			val, err := b.ParseValue(minVal, joinPath(path, "min"))
			if err != nil {
				return nil, err
			}
			return queryir.GreaterOrEquals{Column: col, Value: val}, nil
		}
		if exprVal, ok := v.Get("expr"); ok {
			sql, ok := exprVal.(ir.IRString)
			if !ok {
				return nil, configErrorf(joinPath(path, "expr"), "filter expression must be a string, got %s", ir.KindOf(exprVal))
			}
			cols, err := b.declaredColumns(v, path)
			if err != nil {
				return nil, err
			}
			return queryir.Expression{Column: col, SQL: string(sql), Columns: cols}, nil
		}
		if v.Has("col") || v.Has("value") {
			val, err := b.ParseValue(v, path)
			if err != nil {
				return nil, err
			}
			return queryir.Equals{Column: col, Value: val}, nil
		}
		return nil, configErrorf(path, "unsupported filter value: mapping with keys %v", v.Keys())

	default:
		return nil, configErrorf(path, "unsupported filter value: %s", ir.KindOf(value))
	}
}

// ParseValue parses a value used in an output record, a set member or a
// comparison operand.
//
// Accepted shapes:
//
//	scalar                    → Literal
//	{expr: sql, columns: []}  → RawExpr ({expr: null} is NULL)
//	{col: name, ignore: bool} → ColumnRef
//	{value: x}                → quoted text literal
func (b *RuleBuilder) ParseValue(v ir.IRValue, path string) (queryir.Value, error) {
	switch val := v.(type) {
	case ir.IRNull, ir.IRString, ir.IRInt, ir.IRFloat, ir.IRBool:
		return queryir.Literal{Scalar: val}, nil

	case ir.IRObject:
		if exprVal, ok := val.Get("expr"); ok {
			switch e := exprVal.(type) {
			case ir.IRNull:
				return queryir.Null(), nil
			case ir.IRString:
				cols, err := b.declaredColumns(val, path)
				if err != nil {
					return nil, err
				}
				return queryir.RawExpr{SQL: string(e), Columns: cols}, nil
			default:
				return nil, configErrorf(joinPath(path, "expr"), "expression must be a string or null, got %s", ir.KindOf(exprVal))
			}
		}
		if colVal, ok := val.Get("col"); ok {
			name, ok := colVal.(ir.IRString)
			if !ok {
				return nil, configErrorf(joinPath(path, "col"), "col must be a string, got %s", ir.KindOf(colVal))
			}
			if err := checkColumnName(string(name), joinPath(path, "col")); err != nil {
				return nil, err
			}
			ignore := false
			if ig, ok := val.Get("ignore"); ok {
				flag, ok := ig.(ir.IRBool)
				if !ok {
					return nil, configErrorf(joinPath(path, "ignore"), "ignore must be a boolean, got %s", ir.KindOf(ig))
				}
				ignore = bool(flag)
			}
			return queryir.ColumnRef{Column: b.resolver.Dependency(string(name)), Untracked: ignore}, nil
		}
		if textVal, ok := val.Get("value"); ok {
			s, ok := ir.ScalarText(textVal)
			if !ok {
				return nil, configErrorf(joinPath(path, "value"), "value must be a scalar, got %s", ir.KindOf(textVal))
			}
			return queryir.Text(s), nil
		}
		return nil, configErrorf(path, "unknown value mapping with keys %v", val.Keys())

	default:
		return nil, configErrorf(path, "unsupported value: %s", ir.KindOf(v))
	}
}

// ParseMinZoom parses a matcher's min_zoom.
// A number is the zoom, null means no minimum, a string or {expr: ...}
// is raw SQL.
func (b *RuleBuilder) ParseMinZoom(v ir.IRValue, path string) (queryir.Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, configErrorf(path, "min_zoom is required")
	case ir.IRNull:
		return queryir.Null(), nil
	case ir.IRInt, ir.IRFloat:
		return queryir.Literal{Scalar: val}, nil
	case ir.IRString:
		return queryir.RawExpr{SQL: string(val)}, nil
	case ir.IRObject:
		if !val.Has("expr") {
			return nil, configErrorf(path, "min_zoom mapping must contain expr")
		}
		return b.ParseValue(val, path)
	default:
		return nil, configErrorf(path, "min_zoom must be a number, null or an expression, got %s", ir.KindOf(v))
	}
}

// ParseOutput parses an output record. Field order is preserved and a
// "kind" field is required.
func (b *RuleBuilder) ParseOutput(v ir.IRValue, path string) ([]queryir.OutputField, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, configErrorf(path, "output must be a mapping, got %s", ir.KindOf(v))
	}
	if !obj.Has("kind") {
		return nil, configErrorf(path, "output must contain kind")
	}
	fields := make([]queryir.OutputField, 0, len(obj))
	for _, pair := range obj {
		val, err := b.ParseValue(pair.Value, joinPath(path, pair.Key))
		if err != nil {
			return nil, err
		}
		fields = append(fields, queryir.OutputField{Name: pair.Key, Value: val})
	}
	return fields, nil
}

// declaredColumns reads the dependency list of an expression mapping from
// "cols" or "columns". Returns nil when neither key is present.
func (b *RuleBuilder) declaredColumns(obj ir.IRObject, path string) ([]queryir.Column, error) {
	for _, key := range []string{"cols", "columns"} {
		raw, ok := obj.Get(key)
		if !ok {
			continue
		}
		names, err := ir.StringList(raw)
		if err != nil {
			return nil, configErrorf(joinPath(path, key), "%v", err)
		}
		if names == nil {
			names = []string{}
		}
		for i, name := range names {
			if err := checkColumnName(name, indexPath(joinPath(path, key), i)); err != nil {
				return nil, err
			}
		}
		return b.resolver.Dependencies(names), nil
	}
	return nil, nil
}

// checkColumnName rejects a name that would resolve to a column with no
// name or a tag with no key.
func checkColumnName(name, path string) error {
	switch name {
	case "":
		return configErrorf(path, "column name is empty")
	case TagPrefix:
		return configErrorf(path, "tag key is empty")
	}
	return nil
}
