package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a layer compilation scenario.
// A scenario compiles one layer document and asserts on the compiled arms,
// the parameter list, or the error the compiler reports.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// LayerName is the compiled layer's name. Defaults to Name.
	LayerName string `yaml:"layer_name,omitempty"`

	// Layer is the layer document written inline.
	Layer yaml.Node `yaml:"layer,omitempty"`

	// LayerFile is a path to a layer document, relative to the scenario file.
	// Exactly one of Layer and LayerFile must be set.
	LayerFile string `yaml:"layer_file,omitempty"`

	// SyntheticColumns are added to the compiler's default synthetic columns.
	SyntheticColumns []string `yaml:"synthetic_columns,omitempty"`

	// Assertions validate the compiled layer.
	Assertions []Assertion `yaml:"assertions"`
}

// layerName returns the name the layer is compiled under.
func (s *Scenario) layerName() string {
	if s.LayerName != "" {
		return s.LayerName
	}
	return s.Name
}

// Assertion checks one property of a compiled layer.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	// Arm is the zero-based matcher index (condition, output, min_zoom).
	Arm int `yaml:"arm,omitempty"`

	// Expect is the exact expected SQL text (condition, output, min_zoom).
	Expect string `yaml:"expect,omitempty"`

	// Contains is an expected substring (kind_case_contains, error).
	Contains string `yaml:"contains,omitempty"`

	// Table, Column and SQLType identify an expected param.
	Table   string `yaml:"table,omitempty"`
	Column  string `yaml:"column,omitempty"`
	SQLType string `yaml:"sql_type,omitempty"`

	// Count is the expected number of params or arms.
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected kind of each arm, in order (arm_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Kind is the expected error class (error): configuration or invariant.
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertCondition        = "condition"
	AssertOutput           = "output"
	AssertMinZoom          = "min_zoom"
	AssertArmOrder         = "arm_order"
	AssertArmCount         = "arm_count"
	AssertParam            = "param"
	AssertParamsCount      = "params_count"
	AssertKindCaseContains = "kind_case_contains"
	AssertError            = "error"
)

// Error class names used by error assertions.
const (
	ErrorKindConfiguration = "configuration"
	ErrorKindInvariant     = "invariant"
)

// LoadScenario reads and parses a scenario YAML file.
// A relative layer_file is resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.LayerFile != "" && !filepath.IsAbs(scenario.LayerFile) {
		scenario.LayerFile = filepath.Join(filepath.Dir(path), scenario.LayerFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	hasInline := s.Layer.Kind != 0
	switch {
	case hasInline && s.LayerFile != "":
		return fmt.Errorf("layer and layer_file are mutually exclusive")
	case !hasInline && s.LayerFile == "":
		return fmt.Errorf("one of layer or layer_file is required")
	}

	if s.LayerFile != "" {
		if _, err := os.Stat(s.LayerFile); os.IsNotExist(err) {
			return fmt.Errorf("layer file not found: %s", s.LayerFile)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Arm < 0 {
		return fmt.Errorf("assertions[%d]: arm must be non-negative", index)
	}

	switch a.Type {
	case AssertCondition, AssertOutput, AssertMinZoom:
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertArmOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for arm_order", index)
		}
	case AssertArmCount, AssertParamsCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertParam:
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for param", index)
		}
	case AssertKindCaseContains:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for kind_case_contains", index)
		}
	case AssertError:
		switch a.Kind {
		case "", ErrorKindConfiguration, ErrorKindInvariant:
		default:
			return fmt.Errorf("assertions[%d]: unknown error kind %q", index, a.Kind)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
