package queryir

import "fmt"

// ValidationResult contains lint findings for a matcher.
//
// Findings never block compilation: the generated SQL is still correct as
// written, but may not do what the author intended.
type ValidationResult struct {
	// IsClean is true when no warnings were produced.
	IsClean bool

	// Warnings lists human-readable findings in rule order.
	Warnings []string
}

// Validate lints a single matcher.
//
// Checks:
//  1. Raw conditions and raw output/min-zoom expressions that declare no
//     columns while the matcher has no extra_columns: any column they read
//     will be missing from the generated function's parameters
//  2. NotEquals over a fixed column: rows where the column is NULL never
//     satisfy `<>` and silently fall through to later arms
//
// Validate is a pure function with no side effects.
func Validate(m Matcher) ValidationResult {
	v := &validator{
		warnings:  []string{},
		hasExtras: len(m.ExtraColumns) > 0,
	}
	v.validateRule(m.Rule)
	for _, f := range m.Output {
		v.validateValue(f.Value, "output "+f.Name)
	}
	if m.MinZoom != nil {
		v.validateValue(m.MinZoom, "min_zoom")
	}

	return ValidationResult{
		IsClean:  len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings  []string
	hasExtras bool
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// validateRule recursively validates a rule node.
func (v *validator) validateRule(r Rule) {
	if r == nil {
		v.addWarning("nil rule - matcher has no condition")
		return
	}

	switch rule := r.(type) {
	case Equals:
		v.validateValue(rule.Value, "comparison on "+rule.Column.String())
	case NotEquals:
		if !rule.Column.IsTag() {
			v.addWarning("%s <> ... never matches rows where %q is NULL", rule.Column, rule.Column.Name)
		}
		v.validateValue(rule.Value, "comparison on "+rule.Column.String())
	case GreaterOrEquals:
		v.validateValue(rule.Value, "comparison on "+rule.Column.String())
	case In:
		for _, val := range rule.Values {
			v.validateValue(val, "set on "+rule.Column.String())
		}
	case Exists, NotExists:
		// Presence checks read only their own column.
	case Expression:
		if rule.Columns == nil && !v.hasExtras {
			v.addWarning("raw condition on %s declares no cols; columns it reads will not become parameters", rule.Column)
		}
	case And:
		for _, child := range rule.Rules {
			v.validateRule(child)
		}
	case Or:
		for _, child := range rule.Rules {
			v.validateRule(child)
		}
	case Not:
		v.validateRule(rule.Rule)
	default:
		v.addWarning("unknown rule type: %T - cannot be validated", r)
	}
}

// validateValue checks a value used at the given location.
func (v *validator) validateValue(val Value, where string) {
	switch x := val.(type) {
	case RawExpr:
		if x.Columns == nil && !v.hasExtras {
			v.addWarning("raw expression in %s declares no columns; columns it reads will not become parameters", where)
		}
	case Literal, ColumnRef:
	default:
		v.addWarning("unknown value type in %s: %T", where, val)
	}
}
