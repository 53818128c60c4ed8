package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tilekind/internal/compiler"
)

// WarnCodeLint is the code reported for lint findings.
const WarnCodeLint = "W001"

// Severity levels for validation issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config string
	Strict bool // treat lint warnings as failures
}

// ValidationIssue is one problem found in a layer.
type ValidationIssue struct {
	Layer    string `json:"layer,omitempty"`
	Field    string `json:"field,omitempty"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Layers int               `json:"layers"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <layers-dir>",
		Short: "Validate and lint layer configs without writing output",
		Long: `Validate layer documents and report lint findings.

Errors are anything compile would reject. Warnings are layers that compile
but probably do not do what was meant: raw expressions without declared
columns, <> over fixed columns (rows with NULL never match), and arms whose
condition duplicates an earlier arm.

Exit codes:
  0 - All layers valid (warnings allowed unless --strict)
  1 - Validation errors, or warnings with --strict
  2 - Command error (invalid paths, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "project config file (default <layers-dir>/"+ProjectConfigFile+")")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on lint warnings")

	return cmd
}

func runValidate(opts *ValidateOptions, layersDir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	project, err := ResolveProjectConfig(opts.Config, layersDir)
	if err != nil {
		code, message := compileErrorCode(err)
		return formatter.Abort(code, message, nil)
	}

	loadResult, loadErrors := LoadLayers(layersDir, project.Layers, LoadModeCollectAll)
	if loadResult == nil {
		code, message := compileErrorCode(loadErrors[0])
		return formatter.Abort(code, message, nil)
	}
	opts.logger().Debug("layer files loaded", "dir", layersDir, "files", loadResult.FileCount)

	result := ValidationResult{Layers: loadResult.FileCount}
	for _, err := range loadErrors {
		result.Issues = append(result.Issues, issueFromError(err))
	}

	c := compiler.New(project.CompilerOptions(opts.logger()))
	for _, cfg := range loadResult.Layers {
		opts.logger().Debug("linting layer", "layer", cfg.Name)
		warnings, err := c.LintLayer(cfg)
		if err != nil {
			result.Issues = append(result.Issues, issueFromError(err))
			continue
		}
		for _, w := range warnings {
			result.Issues = append(result.Issues, ValidationIssue{
				Layer:    w.Layer,
				Field:    w.Field,
				Code:     WarnCodeLint,
				Severity: SeverityWarning,
				Message:  w.Message,
			})
		}
	}

	errCount, warnCount := countIssues(result.Issues)
	result.Valid = errCount == 0 && (warnCount == 0 || !opts.Strict)

	if !result.Valid {
		return outputValidationFailure(formatter, result, errCount, warnCount)
	}
	return outputValidateSuccess(formatter, result, warnCount)
}

// issueFromError converts a load or compile error into an error issue.
func issueFromError(err error) ValidationIssue {
	issue := ValidationIssue{Severity: SeverityError}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		issue.Layer = compileErr.Layer
		issue.Field = compileErr.Field
		issue.Message = compileErr.Message
		issue.Code, _ = compileErrorCode(err)
		return issue
	}
	issue.Code, issue.Message = compileErrorCode(err)
	return issue
}

func countIssues(issues []ValidationIssue) (errs, warnings int) {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult, warnCount int) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d layer(s) valid\n", result.Layers)
	if warnCount > 0 {
		fmt.Fprintln(formatter.Writer)
		writeIssues(formatter, result.Issues)
	}
	return nil
}


// outputValidationFailure outputs validation issues and returns exit code 1.
func outputValidationFailure(formatter *OutputFormatter, result ValidationResult, errCount, warnCount int) error {
	if formatter.Format == "json" {
		first := result.Issues[0]
		if err := formatter.Failure(result, CLIError{Code: first.Code, Message: first.Message}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		writeIssues(formatter, result.Issues)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s), %d warning(s)", errCount, warnCount))
}

func writeIssues(formatter *OutputFormatter, issues []ValidationIssue) {
	for _, issue := range issues {
		loc := issue.Layer
		if issue.Field != "" {
			loc += ": " + issue.Field
		}
		if loc != "" {
			fmt.Fprintf(formatter.Writer, "%s\n", loc)
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n\n", issue.Severity, issue.Code, issue.Message)
	}
}
