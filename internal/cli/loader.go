package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tilekind/internal/compiler"
	"github.com/roach88/tilekind/internal/emit"
	"github.com/roach88/tilekind/internal/ir"
	"github.com/roach88/tilekind/internal/querysql"
)

// ProjectConfigFile is the project config looked up in the layers directory
// when --config is not given. It is never loaded as a layer.
const ProjectConfigFile = "tilekind.yaml"

// LoadMode controls how errors are handled during layer loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// ProjectConfig is the optional project-wide compiler configuration.
type ProjectConfig struct {
	GenericTable     string              `yaml:"generic_table"`
	FixedColumns     []string            `yaml:"fixed_columns"`
	SyntheticColumns []string            `yaml:"synthetic_columns"`
	TagsColumn       string              `yaml:"tags_column"`
	JSONNullSafeFunc string              `yaml:"json_null_safe_func"`
	ColumnTypes      []compiler.TypeRule `yaml:"column_types"` // Checked before the default policy
	Layers           []string            `yaml:"layers"`       // Explicit compile order

	// SyntheticDefs define how the default SQL template computes synthetic
	// columns, adding to or replacing the built-in way_area.
	SyntheticDefs map[string]emit.SyntheticDef `yaml:"synthetic_defs"`
}

// CompilerOptions builds compiler options from the config. Unset fields
// keep their defaults.
func (c *ProjectConfig) CompilerOptions(logger *slog.Logger) compiler.Options {
	opts := compiler.DefaultOptions()
	opts.Logger = logger
	if c == nil {
		return opts
	}
	if c.GenericTable != "" {
		opts.GenericTable = c.GenericTable
	}
	if c.FixedColumns != nil {
		opts.FixedColumns = c.FixedColumns
	}
	opts.SyntheticColumns = append(opts.SyntheticColumns, c.SyntheticColumns...)
	if len(c.ColumnTypes) > 0 {
		opts.TypePolicy = append(slices.Clone(c.ColumnTypes), opts.TypePolicy...)
	}
	opts.SQL = c.SQLCompiler()
	return opts
}

// SQLCompiler returns the SQL backend configured by the project.
func (c *ProjectConfig) SQLCompiler() *querysql.SQLCompiler {
	sql := querysql.NewSQLCompiler()
	if c == nil {
		return sql
	}
	if c.TagsColumn != "" {
		sql.TagsColumn = c.TagsColumn
	}
	if c.JSONNullSafeFunc != "" {
		sql.JSONNullSafeFunc = c.JSONNullSafeFunc
	}
	return sql
}

// RenderOptions returns the SQL script renderer options for the project.
func (c *ProjectConfig) RenderOptions(logger *slog.Logger) []emit.Option {
	opts := []emit.Option{
		emit.WithTagsColumn(c.SQLCompiler().TagsColumn),
		emit.WithLogger(logger),
	}
	if c == nil {
		return opts
	}
	for name, def := range c.SyntheticDefs {
		opts = append(opts, emit.WithSyntheticDef(name, def))
	}
	return opts
}

// LoadProjectConfig reads a project config file, rejecting unknown fields.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeConfig, File: path, Message: fmt.Sprintf("reading config: %v", err)}
	}

	var cfg ProjectConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Code: ErrCodeConfig, File: path, Message: fmt.Sprintf("parsing config: %v", err)}
	}
	for i, rule := range cfg.ColumnTypes {
		if rule.Column == "" || rule.Type == "" {
			return nil, &LoadError{Code: ErrCodeConfig, File: path,
				Message: fmt.Sprintf("column_types[%d]: column and type are required", i)}
		}
	}
	for name, def := range cfg.SyntheticDefs {
		if def.Type == "" || def.Expr == "" {
			return nil, &LoadError{Code: ErrCodeConfig, File: path,
				Message: fmt.Sprintf("synthetic_defs.%s: type and expr are required", name)}
		}
	}
	return &cfg, nil
}

// ResolveProjectConfig loads the config named by path, or the default
// config file in dir when path is empty. A missing default is not an error.
func ResolveProjectConfig(path, dir string) (*ProjectConfig, error) {
	if path != "" {
		return LoadProjectConfig(path)
	}
	def := filepath.Join(dir, ProjectConfigFile)
	if _, err := os.Stat(def); os.IsNotExist(err) {
		return &ProjectConfig{}, nil
	}
	return LoadProjectConfig(def)
}

// LoadResult contains the layers loaded from a directory.
type LoadResult struct {
	Layers    []*compiler.LayerConfig // In compile order
	FileCount int                     // Number of layer files found
}

// LoadError represents an error that occurred during layer loading.
type LoadError struct {
	Code    string
	Message string
	File    string // Source file, if known
}

func (e *LoadError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadLayers loads every layer document in dir.
//
// Layer files are *.yaml, *.yml and *.cue; the layer name is the file's
// base name. Layers are returned sorted by name, or in the given order
// when order is non-empty (naming a layer with no file is an error; files
// not named are skipped). If mode is LoadModeFailFast, returns on first
// error. If mode is LoadModeCollectAll, collects all errors.
func LoadLayers(dir string, order []string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("layers directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing layers directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindLayerFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no layer files found in %s", dir)}}
	}

	byName := make(map[string]string, len(files))
	var names []string
	for _, f := range files {
		name := layerName(f)
		if prev, ok := byName[name]; ok {
			return nil, []error{&LoadError{Code: ErrCodeDuplicate, File: f,
				Message: fmt.Sprintf("layer %s is also defined in %s", name, prev)}}
		}
		byName[name] = f
		names = append(names, name)
	}
	slices.Sort(names)

	if len(order) > 0 {
		for _, name := range order {
			if _, ok := byName[name]; !ok {
				return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("layer %s has no file in %s", name, dir)}}
			}
		}
		names = order
	}

	result := &LoadResult{FileCount: len(files)}
	var errs []error
	for _, name := range names {
		cfg, err := loadLayer(name, byName[name])
		if err != nil {
			errs = append(errs, err)
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Layers = append(result.Layers, cfg)
	}
	return result, errs
}

// loadLayer parses and decodes one layer file.
func loadLayer(name, path string) (*compiler.LayerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, File: path, Message: fmt.Sprintf("reading layer: %v", err)}
	}

	var doc ir.IRValue
	if filepath.Ext(path) == ".cue" {
		doc, err = ir.FromCUESource(path, data)
	} else {
		doc, err = ir.FromYAML(data)
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, File: path, Message: err.Error()}
	}

	cfg, err := compiler.DecodeLayer(name, doc)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindLayerFiles returns the layer document paths directly inside dir,
// skipping the project config file.
func FindLayerFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == ProjectConfigFile {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml", ".cue":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// layerName returns a file's base name without its extension.
func layerName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No layer files found
	ErrCodeLoadFailed  = "E004" // Layer file unreadable
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeParseFailed = "E006" // YAML/CUE parse failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeConfig      = "E008" // Invalid project config
	ErrCodeDuplicate   = "E009" // Two files define the same layer
	ErrCodeStore       = "E010" // History database error

	// Layer compilation errors
	ErrCodeDocument  = "E201" // Malformed layer document
	ErrCodeFilter    = "E202" // Invalid filter
	ErrCodeMinZoom   = "E203" // Invalid min_zoom
	ErrCodeOutput    = "E204" // Invalid output record
	ErrCodeInvariant = "E210" // Compiler invariant violation
)

// MapFieldToErrorCode maps a compiler error field path to an error code.
// Example: "filters[2].filter.any[0]" → E202
func MapFieldToErrorCode(field string) string {
	last := field
	if i := strings.LastIndex(field, "]."); i >= 0 {
		last = field[i+2:]
	}
	switch {
	case last == "filter", strings.HasPrefix(last, "filter."), strings.Contains(field, ".filter."):
		return ErrCodeFilter
	case strings.HasPrefix(last, "min_zoom"):
		return ErrCodeMinZoom
	case strings.HasPrefix(last, "output"):
		return ErrCodeOutput
	default:
		return ErrCodeDocument
	}
}

// compileErrorCode returns the error code for any error the loader or
// compiler can produce.
func compileErrorCode(err error) (string, string) {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		if errors.Is(err, compiler.ErrInvariantViolation) {
			return ErrCodeInvariant, compileErr.Error()
		}
		return MapFieldToErrorCode(compileErr.Field), compileErr.Error()
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		msg := loadErr.Message
		if loadErr.File != "" {
			msg = loadErr.File + ": " + msg
		}
		return loadErr.Code, msg
	}
	return ErrCodeGeneric, err.Error()
}
