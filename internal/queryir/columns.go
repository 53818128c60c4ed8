package queryir

import "fmt"

// RuleColumns returns every column a rule reads, in rule order.
// Duplicates are kept; callers deduplicate with a set keyed by Column.
//
// An unknown Rule or Value type is an internal defect and is reported as an
// error rather than skipped.
func RuleColumns(r Rule) ([]Column, error) {
	var cols []Column
	if err := collectRule(r, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func collectRule(r Rule, cols *[]Column) error {
	switch rule := r.(type) {
	case Equals:
		*cols = append(*cols, rule.Column)
		return collectValue(rule.Value, cols)
	case NotEquals:
		*cols = append(*cols, rule.Column)
		return collectValue(rule.Value, cols)
	case GreaterOrEquals:
		*cols = append(*cols, rule.Column)
		return collectValue(rule.Value, cols)
	case In:
		*cols = append(*cols, rule.Column)
		for _, v := range rule.Values {
			if err := collectValue(v, cols); err != nil {
				return err
			}
		}
		return nil
	case Exists:
		*cols = append(*cols, rule.Column)
		return nil
	case NotExists:
		*cols = append(*cols, rule.Column)
		return nil
	case Expression:
		*cols = append(*cols, rule.Column)
		*cols = append(*cols, rule.Columns...)
		return nil
	case And:
		for _, child := range rule.Rules {
			if err := collectRule(child, cols); err != nil {
				return err
			}
		}
		return nil
	case Or:
		for _, child := range rule.Rules {
			if err := collectRule(child, cols); err != nil {
				return err
			}
		}
		return nil
	case Not:
		return collectRule(rule.Rule, cols)
	default:
		return fmt.Errorf("unsupported rule type: %T", r)
	}
}

// ValueColumns returns the columns a value depends on.
// Literals depend on nothing; raw expressions depend on what they declare.
func ValueColumns(v Value) ([]Column, error) {
	var cols []Column
	if err := collectValue(v, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func collectValue(v Value, cols *[]Column) error {
	switch val := v.(type) {
	case Literal:
		return nil
	case ColumnRef:
		if !val.Untracked {
			*cols = append(*cols, val.Column)
		}
		return nil
	case RawExpr:
		*cols = append(*cols, val.Columns...)
		return nil
	default:
		return fmt.Errorf("unsupported value type: %T", v)
	}
}
