package compiler

import (
	"fmt"

	"github.com/roach88/tilekind/internal/queryir"
)

// LintWarning is a non-fatal finding about a layer.
type LintWarning struct {
	Layer   string `json:"layer"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w LintWarning) String() string {
	return fmt.Sprintf("layer %s: %s: %s", w.Layer, w.Field, w.Message)
}

// LintLayer builds a layer's matchers and reports findings that do not stop
// compilation:
//   - IR findings from queryir.Validate (undeclared raw-expression
//     dependencies, <> over fixed columns)
//   - matchers whose condition renders identically to an earlier one; the
//     later arm can never be selected
//
// Configuration errors are returned as errors, not warnings.
func (c *Compiler) LintLayer(cfg *LayerConfig) ([]LintWarning, error) {
	matchers, err := c.Matchers(cfg)
	if err != nil {
		return nil, err
	}

	var warnings []LintWarning
	firstSeen := make(map[string]int, len(matchers))
	for i, m := range matchers {
		field := indexPath("filters", i)

		result := queryir.Validate(m)
		for _, msg := range result.Warnings {
			warnings = append(warnings, LintWarning{Layer: cfg.Name, Field: field, Message: msg})
		}

		cond, err := c.sql.CompileCondition(m.Rule)
		if err != nil {
			return nil, withLayer(cfg.Name, invariantErrorf(field, "%v", err))
		}
		if prev, ok := firstSeen[cond]; ok {
			warnings = append(warnings, LintWarning{
				Layer:   cfg.Name,
				Field:   field,
				Message: fmt.Sprintf("condition duplicates filters[%d]; this arm is unreachable", prev),
			})
			continue
		}
		firstSeen[cond] = i
	}
	return warnings, nil
}
