package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tilekind/internal/compiler"
	"github.com/roach88/tilekind/internal/emit"
	"github.com/roach88/tilekind/internal/ir"
	"github.com/roach88/tilekind/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Config   string   // project config path
	Output   string   // LayerRecord JSON output path
	SQL      string   // SQL script output path
	Template string   // SQL script template path
	DB       string   // history database path
	Layers   []string // layers to compile, in order
}

// CompilationResult is the compile command's JSON payload.
type CompilationResult struct {
	Layers  []ir.LayerRecord `json:"layers"`
	RunID   string           `json:"run_id,omitempty"`
	Changed []string         `json:"changed,omitempty"` // Layers whose fingerprint differs from the last recorded run
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <layers-dir>",
		Short: "Compile layer filter configs",
		Long: `Compile every layer document in a directory into LayerRecords.

Each record carries the layer's typed parameter list and two CASE
expressions: the JSON output record and the minimum zoom. Records can be
written as JSON (--output), rendered into a SQL script (--sql), and
recorded in a history database (--db).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "project config file (default <layers-dir>/"+ProjectConfigFile+")")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write LayerRecords as JSON to this file")
	cmd.Flags().StringVar(&opts.SQL, "sql", "", "write the SQL script to this file")
	cmd.Flags().StringVar(&opts.Template, "template", "", "SQL script template (default: built-in)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record the run in this history database")
	cmd.Flags().StringSliceVar(&opts.Layers, "layers", nil, "layers to compile, in order (default: config layers, else all by name)")

	return cmd
}

func runCompile(opts *CompileOptions, layersDir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	project, err := ResolveProjectConfig(opts.Config, layersDir)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}

	order := opts.Layers
	if len(order) == 0 {
		order = project.Layers
	}

	loadResult, loadErrors := LoadLayers(layersDir, order, LoadModeCollectAll)
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}
	opts.logger().Debug("layer files loaded", "dir", layersDir, "files", loadResult.FileCount)

	c := compiler.New(project.CompilerOptions(opts.logger()))
	records, err := c.CompileAll(cmd.Context(), loadResult.Layers)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}

	if opts.Output != "" {
		if err := writeRecordsToFile(records, opts.Output); err != nil {
			return formatter.Abort(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if opts.SQL != "" {
		if err := writeSQLScript(records, opts.SQL, opts.Template, project.RenderOptions(opts.logger())); err != nil {
			return formatter.Abort(ErrCodeWriteFailed, fmt.Sprintf("writing SQL script: %v", err), nil)
		}
	}

	result := &CompilationResult{Layers: derefRecords(records)}
	if opts.DB != "" {
		runID, changed, err := recordRun(cmd, opts.DB, layersDir, result.Layers)
		if err != nil {
			return formatter.Abort(ErrCodeStore, fmt.Sprintf("recording run: %v", err), nil)
		}
		result.RunID = runID
		result.Changed = changed
	}

	return outputCompileSuccess(formatter, result, opts)
}

func derefRecords(records []*ir.LayerRecord) []ir.LayerRecord {
	out := make([]ir.LayerRecord, len(records))
	for i, rec := range records {
		out[i] = *rec
	}
	return out
}

// recordRun writes the compiled layers to the history database and
// returns the names of layers that are new or changed since their last
// recorded run.
func recordRun(cmd *cobra.Command, dbPath, source string, layers []ir.LayerRecord) (string, []string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", nil, err
	}
	defer st.Close()

	ctx := cmd.Context()
	var changed []string
	for _, rec := range layers {
		prev, ok, err := st.LatestRecord(ctx, rec.Name)
		if err != nil {
			return "", nil, err
		}
		if !ok || prev.Fingerprint != rec.Fingerprint {
			changed = append(changed, rec.Name)
		}
	}

	run, err := st.WriteRun(ctx, ir.CompileRun{Source: source, Layers: layers})
	if err != nil {
		return "", nil, err
	}
	return run.ID, changed, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, opts *CompileOptions) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d layer(s)\n\n", len(result.Layers))

	fmt.Fprintln(formatter.Writer, "Layers:")
	for _, rec := range result.Layers {
		fmt.Fprintf(formatter.Writer, "  %s: %d matcher(s), %d param(s) [%s]\n",
			rec.Name, rec.Matchers, len(rec.Params), shortFingerprint(rec.Fingerprint))
	}
	fmt.Fprintln(formatter.Writer)

	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote layer records to %s\n", opts.Output)
	}
	if opts.SQL != "" {
		fmt.Fprintf(formatter.Writer, "Wrote SQL script to %s\n", opts.SQL)
	}
	if result.RunID != "" {
		fmt.Fprintf(formatter.Writer, "Recorded run %s in %s\n", result.RunID, opts.DB)
		if len(result.Changed) > 0 {
			fmt.Fprintf(formatter.Writer, "Changed since last run: %s\n", strings.Join(result.Changed, ", "))
		} else {
			fmt.Fprintln(formatter.Writer, "No layer changed since last run")
		}
	}

	return nil
}

// shortFingerprint abbreviates a fingerprint for display.
func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// outputCompileErrors outputs one or more load or compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if len(errs) == 1 {
		code, message := compileErrorCode(errs[0])
		return formatter.Abort(code, message, nil)
	}

	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := compileErrorCode(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		if err := formatter.Failure(cliErrors, cliErrors[0]); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		code, message := compileErrorCode(err)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// writeRecordsToFile writes the records as indented JSON.
func writeRecordsToFile(records []*ir.LayerRecord, filename string) error {
	// Indented for readability; canonical JSON is used only for hashing
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

// writeSQLScript renders the records into a SQL script.
func writeSQLScript(records []*ir.LayerRecord, filename, templatePath string, opts []emit.Option) error {
	var (
		r   *emit.Renderer
		err error
	)
	if templatePath != "" {
		r, err = emit.LoadTemplate(templatePath, opts...)
	} else {
		r, err = emit.NewRenderer(opts...)
	}
	if err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := r.Render(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
