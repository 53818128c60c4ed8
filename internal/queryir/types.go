package queryir

import "github.com/roach88/tilekind/internal/ir"

// ColumnKind distinguishes declared table columns from sparse tag keys.
type ColumnKind int

const (
	// ColumnFixed is a declared, always-present table column.
	ColumnFixed ColumnKind = iota + 1
	// ColumnTag is a key inside the per-feature tags hstore.
	ColumnTag
)

// String returns "fixed" or "tag".
func (k ColumnKind) String() string {
	switch k {
	case ColumnFixed:
		return "fixed"
	case ColumnTag:
		return "tag"
	default:
		return "invalid"
	}
}

// Column identifies a storage location.
//
// Column is a comparable value type: equality is structural over
// (Kind, Name), so Columns can be used directly as map keys when
// deduplicating dependencies across matchers.
type Column struct {
	Kind ColumnKind
	Name string
}

// FixedColumn returns a fixed column reference.
func FixedColumn(name string) Column {
	return Column{Kind: ColumnFixed, Name: name}
}

// TagColumn returns a tag key reference.
func TagColumn(key string) Column {
	return Column{Kind: ColumnTag, Name: key}
}

// IsTag reports whether the column lives in the tags hstore.
func (c Column) IsTag() bool {
	return c.Kind == ColumnTag
}

// Valid reports whether the column has a known kind and a name.
func (c Column) Valid() bool {
	return (c.Kind == ColumnFixed || c.Kind == ColumnTag) && c.Name != ""
}

// String renders the column for diagnostics, e.g. "tag:highway".
func (c Column) String() string {
	return c.Kind.String() + ":" + c.Name
}

// Value is something that renders to SQL text: a literal, a column
// reference or a raw expression.
//
// This is a sealed interface - only types in this package implement it.
type Value interface {
	valueNode() // Marker method - seals interface to this package
}

// Literal is a scalar constant.
// Scalar is one of ir.IRNull, ir.IRString, ir.IRInt, ir.IRFloat, ir.IRBool.
type Literal struct {
	Scalar ir.IRValue
}

func (Literal) valueNode() {}

// ColumnRef reads a column.
// Untracked refs are rendered but not reported as dependencies
// (the `ignore: true` output option).
type ColumnRef struct {
	Column    Column
	Untracked bool
}

func (ColumnRef) valueNode() {}

// RawExpr is SQL text passed through verbatim.
// Columns lists the dependencies the author declared; nil means none were
// declared and the expression is assumed self-contained.
type RawExpr struct {
	SQL     string
	Columns []Column
}

func (RawExpr) valueNode() {}

// Text returns a string literal.
func Text(s string) Literal {
	return Literal{Scalar: ir.IRString(s)}
}

// Int returns an integer literal.
func Int(n int64) Literal {
	return Literal{Scalar: ir.IRInt(n)}
}

// Null returns the NULL literal.
func Null() Literal {
	return Literal{Scalar: ir.IRNull{}}
}

// Rule is a boolean condition over one feature.
//
// This is a sealed interface - only types in this package implement it.
// Backends switch on the concrete type exhaustively.
//
// Rule types:
//   - Equals, NotEquals, GreaterOrEquals, In: comparisons
//   - Exists, NotExists: presence checks
//   - Expression: raw SQL condition
//   - And, Or, Not: combinators
//
// Comparisons over a tag column are always rendered together with the
// key's existence check; see querysql.
type Rule interface {
	ruleNode() // Marker method - seals interface to this package
}

// Equals represents `<column> = <value>`.
type Equals struct {
	Column Column
	Value  Value
}

func (Equals) ruleNode() {}

// NotEquals represents `<column> <> <value>`.
type NotEquals struct {
	Column Column
	Value  Value
}

func (NotEquals) ruleNode() {}

// GreaterOrEquals represents `<column> >= <value>`.
type GreaterOrEquals struct {
	Column Column
	Value  Value
}

func (GreaterOrEquals) ruleNode() {}

// In represents set membership `<column> IN (v1, v2, ...)`.
// Values keep their configured order.
type In struct {
	Column Column
	Values []Value
}

func (In) ruleNode() {}

// Exists is true when the column (or tag key) has a value.
type Exists struct {
	Column Column
}

func (Exists) ruleNode() {}

// NotExists is true when the column (or tag key) has no value.
type NotExists struct {
	Column Column
}

func (NotExists) ruleNode() {}

// Expression is a raw SQL condition attached to a column key.
// Columns are the extra dependencies the author declared (may be nil).
type Expression struct {
	Column  Column
	SQL     string
	Columns []Column
}

func (Expression) ruleNode() {}

// And is true when every child is true.
type And struct {
	Rules []Rule
}

func (And) ruleNode() {}

// Or is true when any child is true.
type Or struct {
	Rules []Rule
}

func (Or) ruleNode() {}

// Not negates its child.
type Not struct {
	Rule Rule
}

func (Not) ruleNode() {}

// OutputField is one entry of a matcher's output record.
type OutputField struct {
	Name  string
	Value Value
}

// Matcher is one arm of a layer's first-match-wins chain: when Rule holds,
// the feature gets Output and MinZoom.
type Matcher struct {
	Rule         Rule
	Output       []OutputField // Declaration order; contains "kind"
	MinZoom      Value         // Literal number, Null(), or RawExpr
	Table        string        // Owning table; "" for the generic table
	ExtraColumns []Column      // Dependencies hidden inside raw expressions
}

// OutputValue returns the value of the named output field.
func (m Matcher) OutputValue(name string) (Value, bool) {
	for _, f := range m.Output {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}
