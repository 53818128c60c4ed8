package emit

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/lib/pq"

	"github.com/roach88/tilekind/internal/ir"
	"github.com/roach88/tilekind/internal/querysql"
)

//go:embed templates/layers.sql.tmpl
var defaultTemplate string

// DefaultFuncPrefix prefixes every generated function name.
const DefaultFuncPrefix = "mz_calculate_"

// SyntheticDef computes a synthetic column at the top of a generated
// function body. Expr may read the tags hstore, the function's params, its
// own Inputs and synthetic columns declared before it.
type SyntheticDef struct {
	Type   string     `yaml:"type"`
	Expr   string     `yaml:"expr"`
	Inputs []ir.Param `yaml:"inputs"` // extra function parameters Expr needs
}

// DefaultSyntheticDefs defines the built-in synthetic columns.
func DefaultSyntheticDefs() map[string]SyntheticDef {
	return map[string]SyntheticDef{
		"way_area": {
			Type:   "real",
			Expr:   "ST_Area(way)::real",
			Inputs: []ir.Param{{Column: "way", Type: "geometry"}},
		},
	}
}

// Renderer executes a SQL script template over compiled layers.
type Renderer struct {
	tmpl       *template.Template
	funcPrefix string
	tagsColumn string
	synthetic  map[string]SyntheticDef
	logger     *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFuncPrefix sets the generated function name prefix.
func WithFuncPrefix(prefix string) Option {
	return func(r *Renderer) {
		r.funcPrefix = prefix
	}
}

// WithTagsColumn sets the name of the hstore parameter every generated
// function takes first.
func WithTagsColumn(name string) Option {
	return func(r *Renderer) {
		r.tagsColumn = name
	}
}

// WithSyntheticDef defines (or redefines) how a synthetic column is computed.
func WithSyntheticDef(name string, def SyntheticDef) Option {
	return func(r *Renderer) {
		r.synthetic[name] = def
	}
}

// WithLogger sets the logger for render warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRenderer creates a Renderer using the embedded default template.
func NewRenderer(opts ...Option) (*Renderer, error) {
	return ParseTemplate("layers.sql", defaultTemplate, opts...)
}

// LoadTemplate creates a Renderer from a template file.
func LoadTemplate(path string, opts ...Option) (*Renderer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return ParseTemplate(filepath.Base(path), string(data), opts...)
}

// ParseTemplate creates a Renderer from template text.
//
// Templates see Data and these functions:
//
//	signature  a layer's parameter list: tags, Params, synthetic inputs
//	declare    a layer's DECLARE section ("" when it reads no synthetic column)
//	paramName  a param's column with identifier quotes removed
//	indent     prefix every line but the first with n spaces
//
// declare fails for a synthetic column with no SyntheticDef.
func ParseTemplate(name, text string, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		funcPrefix: DefaultFuncPrefix,
		tagsColumn: querysql.DefaultTagsColumn,
		synthetic:  DefaultSyntheticDefs(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}

	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(template.FuncMap{
			"signature": r.signature,
			"declare":   r.declare,
			"paramName": ParamName,
			"indent":    indent,
		}).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Data is the value templates execute against.
type Data struct {
	CompilerVersion string
	FuncPrefix      string
	Layers          []*ir.LayerRecord
}

// Render writes the script for recs, in the given order.
func (r *Renderer) Render(w io.Writer, recs []*ir.LayerRecord) error {
	data := Data{
		CompilerVersion: ir.CompilerVersion,
		FuncPrefix:      r.funcPrefix,
		Layers:          recs,
	}
	for _, rec := range recs {
		r.warnTypeConflicts(rec)
	}
	if err := r.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}

// ParamName returns the SQL parameter name for a param: the column access
// expression with identifier quotes removed.
// Example: "\"gid\"" → gid
func ParamName(p ir.Param) string {
	return strings.Trim(p.Column, `"`)
}

// signature renders a function's parameter list: the tags hstore, the
// record's params, then the inputs of the synthetic columns it reads.
// Parameters are deduplicated by name; the first occurrence wins.
func (r *Renderer) signature(rec *ir.LayerRecord) string {
	parts := []string{r.tagsColumn + " hstore"}
	for _, p := range r.inputs(rec)[1:] {
		parts = append(parts, ParamName(p)+" "+p.Type)
	}
	return strings.Join(parts, ", ")
}

// inputs lists rec's function parameters in signature order, tags first,
// keeping the first parameter of each name.
func (r *Renderer) inputs(rec *ir.LayerRecord) []ir.Param {
	all := []ir.Param{{Column: r.tagsColumn, Type: "hstore"}}
	all = append(all, rec.Params...)
	for _, name := range rec.Synthetic {
		all = append(all, r.synthetic[name].Inputs...)
	}

	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, p := range all {
		name := ParamName(p)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, p)
	}
	return out
}

// warnTypeConflicts logs parameters that share a name but not a type.
// Only the first type reaches the signature.
func (r *Renderer) warnTypeConflicts(rec *ir.LayerRecord) {
	kept := map[string]ir.Param{r.tagsColumn: {Column: r.tagsColumn, Type: "hstore"}}
	check := func(p ir.Param) {
		name := ParamName(p)
		first, ok := kept[name]
		if !ok {
			kept[name] = p
			return
		}
		if first.Type != p.Type {
			r.logger.Warn("parameter type conflict",
				"layer", rec.Name,
				"param", name,
				"table", p.Table,
				"type", p.Type,
				"kept_table", first.Table,
				"kept_type", first.Type)
		}
	}
	for _, p := range rec.Params {
		check(p)
	}
	for _, name := range rec.Synthetic {
		for _, p := range r.synthetic[name].Inputs {
			check(p)
		}
	}
}

// declare renders the DECLARE section computing rec's synthetic columns,
// with a leading newline, or "" when there are none.
func (r *Renderer) declare(rec *ir.LayerRecord) (string, error) {
	if len(rec.Synthetic) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("\nDECLARE")
	for _, name := range rec.Synthetic {
		def, ok := r.synthetic[name]
		if !ok {
			return "", fmt.Errorf("layer %s: synthetic column %s has no definition", rec.Name, name)
		}
		fmt.Fprintf(&b, "\n  %s %s := %s;", pq.QuoteIdentifier(name), def.Type, def.Expr)
	}
	return b.String(), nil
}

// indent prefixes every line after the first with n spaces.
func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	return strings.ReplaceAll(s, "\n", "\n"+pad)
}
