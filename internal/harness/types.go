package harness

import "github.com/roach88/tilekind/internal/ir"

// Arm is one compiled matcher, rendered the way it appears in the CASE
// expressions.
type Arm struct {
	Kind      string `json:"kind"`      // Kind value, unquoted when it is a string literal
	Condition string `json:"condition"` // WHEN clause
	Output    string `json:"output"`    // THEN clause of the kind CASE
	MinZoom   string `json:"min_zoom"`  // THEN clause of the min-zoom CASE
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Record is the compiled layer as read back from the store.
	// Nil when compilation failed.
	Record *ir.LayerRecord `json:"record,omitempty"`

	// Arms are the compiled matchers in priority order.
	Arms []Arm `json:"arms"`

	// CompileError is the compiler's error message, if any.
	CompileError string `json:"compile_error,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	compileErr error
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Arms:   []Arm{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// setCompileError records a compile failure.
func (r *Result) setCompileError(err error) {
	r.compileErr = err
	r.CompileError = err.Error()
}
