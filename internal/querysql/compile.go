package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/roach88/tilekind/internal/ir"
	"github.com/roach88/tilekind/internal/queryir"
)

// Defaults for SQLCompiler fields.
const (
	DefaultTagsColumn       = "tags"
	DefaultJSONNullSafeFunc = "mz_to_json_null_safe"
)

// SQLCompiler renders queryir nodes to PostgreSQL text.
//
// CRITICAL: Comparisons over tag columns are ALWAYS paired with the key's
// existence check. `tags->'k'` is NULL when the key is absent, and a NULL
// comparison is neither true nor false; under NOT it stays NULL, so a bare
// comparison would misclassify features in both directions.
//
// NOTE: Literals are interpolated without escaping. Layer documents are
// trusted build-time input; they may legitimately contain raw SQL.
type SQLCompiler struct {
	// TagsColumn is the hstore column holding sparse attributes.
	TagsColumn string

	// JSONNullSafeFunc converts a value to JSON, mapping SQL NULL to JSON null.
	JSONNullSafeFunc string
}

// NewSQLCompiler creates a new SQLCompiler with default names.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{
		TagsColumn:       DefaultTagsColumn,
		JSONNullSafeFunc: DefaultJSONNullSafeFunc,
	}
}

// AccessExpr returns the expression reading a column.
// Example: tag "name" → tags->'name'; fixed "gid" → "gid"
func (c *SQLCompiler) AccessExpr(col queryir.Column) string {
	if col.IsTag() {
		return fmt.Sprintf("%s->'%s'", c.TagsColumn, col.Name)
	}
	return pq.QuoteIdentifier(col.Name)
}

// ExistsCheck returns the key-presence test for tag columns.
// Fixed columns have no existence check and return ok=false.
// Example: tag "name" → tags ? 'name'
func (c *SQLCompiler) ExistsCheck(col queryir.Column) (string, bool) {
	if !col.IsTag() {
		return "", false
	}
	return fmt.Sprintf("%s ? '%s'", c.TagsColumn, col.Name), true
}

// FormatValue renders a value as SQL.
//
// Raw expressions pass through verbatim, column references render via
// AccessExpr, numbers and booleans are unquoted, NULL is NULL and every
// other literal is single-quoted.
func (c *SQLCompiler) FormatValue(v queryir.Value) (string, error) {
	switch val := v.(type) {
	case queryir.RawExpr:
		return val.SQL, nil
	case queryir.ColumnRef:
		return c.AccessExpr(val.Column), nil
	case queryir.Literal:
		return formatLiteral(val.Scalar)
	case nil:
		return "", fmt.Errorf("cannot format nil value")
	default:
		return "", fmt.Errorf("unsupported value type: %T", v)
	}
}

// formatLiteral renders a scalar literal.
func formatLiteral(s ir.IRValue) (string, error) {
	switch val := s.(type) {
	case ir.IRNull:
		return "NULL", nil
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10), nil
	case ir.IRFloat:
		return strconv.FormatFloat(float64(val), 'f', -1, 64), nil
	case ir.IRBool:
		return strconv.FormatBool(bool(val)), nil
	case ir.IRString:
		return "'" + string(val) + "'", nil
	default:
		return "", fmt.Errorf("literal must be a scalar, got %s", ir.KindOf(s))
	}
}

// FormatJSONValue renders a value as a fragment of a JSON object built by
// string concatenation.
//
// Quoted literals and NULL get an explicit ::text cast (an untyped literal
// is ambiguous to the JSON conversion function), and everything is wrapped
// in JSONNullSafeFunc so a NULL value becomes JSON null instead of nulling
// out the whole concatenated object.
// Example: 'park' → mz_to_json_null_safe('park'::text)
func (c *SQLCompiler) FormatJSONValue(v queryir.Value) (string, error) {
	s, err := c.FormatValue(v)
	if err != nil {
		return "", err
	}
	if isQuotedLiteral(s) || s == "NULL" {
		s += "::text"
	}
	return fmt.Sprintf("%s(%s)", c.JSONNullSafeFunc, s), nil
}

// isQuotedLiteral reports whether s is a single-quoted SQL literal.
func isQuotedLiteral(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'")
}

// CompileRule renders a rule as a boolean SQL expression.
func (c *SQLCompiler) CompileRule(r queryir.Rule) (string, error) {
	switch rule := r.(type) {
	case queryir.Equals:
		return c.compileComparison(rule.Column, "=", rule.Value)
	case queryir.NotEquals:
		return c.compileComparison(rule.Column, "<>", rule.Value)
	case queryir.GreaterOrEquals:
		return c.compileComparison(rule.Column, ">=", rule.Value)
	case queryir.In:
		return c.compileIn(rule)
	case queryir.Exists:
		if check, ok := c.ExistsCheck(rule.Column); ok {
			return check, nil
		}
		return c.AccessExpr(rule.Column) + " IS NOT NULL", nil
	case queryir.NotExists:
		return c.AccessExpr(rule.Column) + " IS NULL", nil
	case queryir.Expression:
		return rule.SQL, nil
	case queryir.And:
		return c.compileJunction(rule.Rules, " AND ", "TRUE")
	case queryir.Or:
		return c.compileJunction(rule.Rules, " OR ", "FALSE")
	case queryir.Not:
		inner, err := c.CompileRule(rule.Rule)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil
	case nil:
		return "", fmt.Errorf("cannot compile nil rule")
	default:
		return "", fmt.Errorf("unsupported rule type: %T", r)
	}
}

// compileComparison renders `<access> <op> <value>`, paired with the
// existence check when the column is a tag.
func (c *SQLCompiler) compileComparison(col queryir.Column, op string, v queryir.Value) (string, error) {
	rhs, err := c.FormatValue(v)
	if err != nil {
		return "", fmt.Errorf("compare %s: %w", col, err)
	}
	return c.guard(col, fmt.Sprintf("%s %s %s", c.AccessExpr(col), op, rhs)), nil
}

// compileIn renders set membership, preserving value order.
func (c *SQLCompiler) compileIn(rule queryir.In) (string, error) {
	if len(rule.Values) == 0 {
		return "", fmt.Errorf("set on %s has no values", rule.Column)
	}
	parts := make([]string, 0, len(rule.Values))
	for i, v := range rule.Values {
		s, err := c.FormatValue(v)
		if err != nil {
			return "", fmt.Errorf("set on %s [%d]: %w", rule.Column, i, err)
		}
		parts = append(parts, s)
	}
	cmp := fmt.Sprintf("%s IN (%s)", c.AccessExpr(rule.Column), strings.Join(parts, ", "))
	return c.guard(rule.Column, cmp), nil
}

// guard ANDs a comparison with the column's existence check, if it has one.
func (c *SQLCompiler) guard(col queryir.Column, cmp string) string {
	check, ok := c.ExistsCheck(col)
	if !ok {
		return cmp
	}
	return fmt.Sprintf("(%s) AND (%s)", check, cmp)
}

// compileJunction joins parenthesised children with sep.
// An empty junction is its identity element (vacuous truth for AND).
func (c *SQLCompiler) compileJunction(rules []queryir.Rule, sep, empty string) (string, error) {
	if len(rules) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		s, err := c.CompileRule(r)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, sep), nil
}

// CompileCondition renders a matcher condition: the rule wrapped in
// parentheses so it can be dropped into any surrounding expression.
// Example: ("highway" = 'motorway')
func (c *SQLCompiler) CompileCondition(r queryir.Rule) (string, error) {
	s, err := c.CompileRule(r)
	if err != nil {
		return "", err
	}
	return "(" + s + ")", nil
}

// CompileOutput renders an output record as a JSON object built by
// concatenation. Field order is preserved.
// Example: ('{"kind": ' || mz_to_json_null_safe('park'::text) || '}')::json
func (c *SQLCompiler) CompileOutput(fields []queryir.OutputField) (string, error) {
	items := make([]string, 0, len(fields))
	for _, f := range fields {
		v, err := c.FormatJSONValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("output %q: %w", f.Name, err)
		}
		items = append(items, fmt.Sprintf("\"%s\": ' || %s", f.Name, v))
	}
	return fmt.Sprintf("('{%s || '}')::json", strings.Join(items, " || ', ")), nil
}

// CompileMinZoom renders a matcher's minimum zoom; nil means no minimum.
func (c *SQLCompiler) CompileMinZoom(v queryir.Value) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	return c.FormatValue(v)
}

// CaseArm is one WHEN/THEN pair.
type CaseArm struct {
	When string
	Then string
}

// CompileCase renders a first-match-wins CASE expression.
// Arms are emitted in the given order; PostgreSQL evaluates them top to
// bottom and stops at the first true condition.
func CompileCase(arms []CaseArm) string {
	var b strings.Builder
	b.WriteString("CASE\n")
	for i, arm := range arms {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "    WHEN %s THEN %s", arm.When, arm.Then)
	}
	b.WriteString("\n  END")
	return b.String()
}

// CompileMatchers compiles an ordered matcher list into the two CASE
// expressions of a layer: the JSON output record and the minimum zoom.
// Matcher order is match priority and is never changed.
func (c *SQLCompiler) CompileMatchers(matchers []queryir.Matcher) (kindCase, minZoomCase string, err error) {
	if len(matchers) == 0 {
		return "", "", fmt.Errorf("cannot compile empty matcher list")
	}

	kindArms := make([]CaseArm, 0, len(matchers))
	zoomArms := make([]CaseArm, 0, len(matchers))
	for i, m := range matchers {
		cond, err := c.CompileCondition(m.Rule)
		if err != nil {
			return "", "", fmt.Errorf("matcher %d: condition: %w", i, err)
		}
		output, err := c.CompileOutput(m.Output)
		if err != nil {
			return "", "", fmt.Errorf("matcher %d: %w", i, err)
		}
		zoom, err := c.CompileMinZoom(m.MinZoom)
		if err != nil {
			return "", "", fmt.Errorf("matcher %d: min_zoom: %w", i, err)
		}
		kindArms = append(kindArms, CaseArm{When: cond, Then: output})
		zoomArms = append(zoomArms, CaseArm{When: cond, Then: zoom})
	}

	return CompileCase(kindArms), CompileCase(zoomArms), nil
}
