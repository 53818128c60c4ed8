package harness

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tilekind/internal/compiler"
)

// AssertionError is returned when an assertion fails.
// It includes the compiled arms to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Arms     []Arm  // Compiled arms for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Arms) > 0 {
		fmt.Fprintf(&buf, "\nCompiled arms:\n")
		for i, arm := range e.Arms {
			fmt.Fprintf(&buf, "  [%d] %s WHEN %s\n", i, arm.Kind, arm.Condition)
		}
	}

	return buf.String()
}

// armAt returns arm i or an assertion error naming the arm count.
func armAt(result *Result, a Assertion) (Arm, error) {
	if a.Arm >= len(result.Arms) {
		return Arm{}, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("arm %d", a.Arm),
			Actual:   fmt.Sprintf("%d arms", len(result.Arms)),
			Arms:     result.Arms,
		}
	}
	return result.Arms[a.Arm], nil
}

// assertArmText compares one rendered field of an arm against Expect.
func assertArmText(result *Result, a Assertion, field func(Arm) string) error {
	arm, err := armAt(result, a)
	if err != nil {
		return err
	}
	if got := field(arm); got != a.Expect {
		return &AssertionError{
			Type:     fmt.Sprintf("%s (arm %d)", a.Type, a.Arm),
			Expected: a.Expect,
			Actual:   got,
			Arms:     result.Arms,
		}
	}
	return nil
}

// assertArmOrder checks that the arms' kinds are exactly Kinds, in order.
func assertArmOrder(result *Result, a Assertion) error {
	kinds := make([]string, len(result.Arms))
	for i, arm := range result.Arms {
		kinds[i] = arm.Kind
	}
	if !slices.Equal(kinds, a.Kinds) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%v", a.Kinds),
			Actual:   fmt.Sprintf("%v", kinds),
			Arms:     result.Arms,
		}
	}
	return nil
}

func assertArmCount(result *Result, a Assertion) error {
	if len(result.Arms) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d arms", a.Count),
			Actual:   fmt.Sprintf("%d arms", len(result.Arms)),
			Arms:     result.Arms,
		}
	}
	return nil
}

// assertParam checks that a param with the given table and column exists,
// and has SQLType when one is given.
func assertParam(result *Result, a Assertion) error {
	want := a.Table + " " + a.Column
	var have []string
	for _, p := range result.Record.Params {
		have = append(have, fmt.Sprintf("%s %s %s", p.Table, p.Column, p.Type))
		if p.Table != a.Table || p.Column != a.Column {
			continue
		}
		if a.SQLType != "" && p.Type != a.SQLType {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s of type %s", want, a.SQLType),
				Actual:   fmt.Sprintf("%s of type %s", want, p.Type),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("param %s", strings.TrimSpace(want)),
		Actual:   fmt.Sprintf("params %v", have),
	}
}

func assertParamsCount(result *Result, a Assertion) error {
	if len(result.Record.Params) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d params", a.Count),
			Actual:   fmt.Sprintf("%d params", len(result.Record.Params)),
		}
	}
	return nil
}

func assertKindCaseContains(result *Result, a Assertion) error {
	if !strings.Contains(result.Record.KindCase, a.Contains) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("kind_case containing %q", a.Contains),
			Actual:   result.Record.KindCase,
		}
	}
	return nil
}

// assertError checks the compile error's message and class.
func assertError(result *Result, a Assertion) error {
	if result.compileErr == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: "compile error",
			Actual:   "layer compiled",
			Arms:     result.Arms,
		}
	}
	if !strings.Contains(result.CompileError, a.Contains) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("error containing %q", a.Contains),
			Actual:   result.CompileError,
		}
	}
	var target error
	switch a.Kind {
	case ErrorKindConfiguration:
		target = compiler.ErrConfiguration
	case ErrorKindInvariant:
		target = compiler.ErrInvariantViolation
	}
	if target != nil && !errors.Is(result.compileErr, target) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s error", a.Kind),
			Actual:   result.CompileError,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
//
// A compile error fails every assertion except error assertions, and a
// scenario with no error assertion fails once for the unexpected error.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	expectsError := slices.ContainsFunc(assertions, func(a Assertion) bool {
		return a.Type == AssertError
	})
	if result.compileErr != nil && !expectsError {
		return []string{fmt.Sprintf("unexpected compile error: %s", result.CompileError)}
	}

	for i, a := range assertions {
		var err error

		if result.Record == nil && a.Type != AssertError {
			err = fmt.Errorf("assertion[%d]: %s requires a compiled layer", i, a.Type)
			errs = append(errs, err.Error())
			continue
		}

		switch a.Type {
		case AssertCondition:
			err = assertArmText(result, a, func(arm Arm) string { return arm.Condition })
		case AssertOutput:
			err = assertArmText(result, a, func(arm Arm) string { return arm.Output })
		case AssertMinZoom:
			err = assertArmText(result, a, func(arm Arm) string { return arm.MinZoom })
		case AssertArmOrder:
			err = assertArmOrder(result, a)
		case AssertArmCount:
			err = assertArmCount(result, a)
		case AssertParam:
			err = assertParam(result, a)
		case AssertParamsCount:
			err = assertParamsCount(result, a)
		case AssertKindCaseContains:
			err = assertKindCaseContains(result, a)
		case AssertError:
			err = assertError(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
