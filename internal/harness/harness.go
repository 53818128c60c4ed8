package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/tilekind/internal/compiler"
	"github.com/roach88/tilekind/internal/ir"
	"github.com/roach88/tilekind/internal/queryir"
	"github.com/roach88/tilekind/internal/querysql"
	"github.com/roach88/tilekind/internal/store"
)

// Harness runs scenarios against a compiler and a scratch store.
type Harness struct {
	store    *store.Store
	compiler *compiler.Compiler
	sql      *querysql.SQLCompiler
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with
// a fixed run ID so repeated runs are identical.
//
// Execution flow:
//  1. Decode the layer document
//  2. Compile it; a compile error is kept on the result, not returned
//  3. Write the record to the store and read it back
//  4. Render each arm
//  5. Evaluate assertions
//
// The returned error reports harness failures (unreadable layer file,
// store errors), never assertion failures.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithIDGenerator(store.NewFixedGenerator("scenario-"+scenario.Name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	opts := compiler.DefaultOptions()
	opts.SyntheticColumns = append(opts.SyntheticColumns, scenario.SyntheticColumns...)
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &Harness{
		store:    st,
		compiler: compiler.New(opts),
		sql:      opts.SQL,
		logger:   opts.Logger,
	}

	result, err := h.execute(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult()

	doc, err := scenarioDocument(scenario)
	if err != nil {
		return nil, err
	}

	name := scenario.layerName()
	cfg, err := compiler.DecodeLayer(name, doc)
	if err != nil {
		result.setCompileError(err)
		return result, nil
	}

	rec, err := h.compiler.CompileLayer(cfg)
	if err != nil {
		result.setCompileError(err)
		return result, nil
	}

	run, err := h.store.WriteRun(ctx, ir.CompileRun{
		Source: "scenario:" + scenario.Name,
		Layers: []ir.LayerRecord{*rec},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write run: %w", err)
	}
	stored, err := h.store.ReadRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read run back: %w", err)
	}
	if len(stored.Layers) != 1 {
		return nil, fmt.Errorf("stored run has %d layers, want 1", len(stored.Layers))
	}
	result.Record = &stored.Layers[0]

	matchers, err := h.compiler.Matchers(cfg)
	if err != nil {
		return nil, fmt.Errorf("rebuild matchers: %w", err)
	}
	for i, m := range matchers {
		arm, err := h.renderArm(m)
		if err != nil {
			return nil, fmt.Errorf("render arm %d: %w", i, err)
		}
		result.Arms = append(result.Arms, arm)
	}

	h.logger.Info("scenario compiled",
		"scenario", scenario.Name,
		"layer", name,
		"arms", len(result.Arms),
		"run_id", run.ID)
	return result, nil
}

// scenarioDocument returns the scenario's layer document as IR.
func scenarioDocument(s *Scenario) (ir.IRValue, error) {
	if s.LayerFile == "" {
		doc, err := ir.FromYAMLNode(&s.Layer)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline layer: %w", err)
		}
		return doc, nil
	}
	data, err := os.ReadFile(s.LayerFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer file: %w", err)
	}
	doc, err := ir.FromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode layer file: %w", err)
	}
	return doc, nil
}

func (h *Harness) renderArm(m queryir.Matcher) (Arm, error) {
	cond, err := h.sql.CompileCondition(m.Rule)
	if err != nil {
		return Arm{}, err
	}
	output, err := h.sql.CompileOutput(m.Output)
	if err != nil {
		return Arm{}, err
	}
	zoom, err := h.sql.CompileMinZoom(m.MinZoom)
	if err != nil {
		return Arm{}, err
	}
	kind, err := h.kindText(m)
	if err != nil {
		return Arm{}, err
	}
	return Arm{Kind: kind, Condition: cond, Output: output, MinZoom: zoom}, nil
}

// kindText returns the kind as written in the layer when it is a constant,
// or its SQL rendering otherwise.
func (h *Harness) kindText(m queryir.Matcher) (string, error) {
	v, ok := m.OutputValue("kind")
	if !ok {
		return "", nil
	}
	if lit, ok := v.(queryir.Literal); ok {
		if s, ok := ir.ScalarText(lit.Scalar); ok {
			return s, nil
		}
	}
	s, err := h.sql.FormatValue(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}
