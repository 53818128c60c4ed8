package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tilekind/internal/ir"
	"github.com/roach88/tilekind/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB    string // history database path
	Limit int    // max runs listed
	Run   string // show one run's layers
}

// HistoryResult is the history command's JSON payload. Exactly one field
// is set, depending on the query.
type HistoryResult struct {
	Runs      []ir.CompileRun    `json:"runs,omitempty"`
	Run       *ir.CompileRun     `json:"run,omitempty"`
	Revisions []ir.LayerRevision `json:"revisions,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [layer]",
		Short: "Show recorded compile runs",
		Long: `Show compile runs recorded with compile --db.

Without arguments, lists recent runs. With a layer name, lists every run
that compiled the layer and marks the runs where its output changed.
With --run, shows the layers of one run.

Examples:
  tilekind history --db tilekind.db
  tilekind history --db tilekind.db roads
  tilekind history --db tilekind.db --run 0192d7e4-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			layer := ""
			if len(args) == 1 {
				layer = args[0]
			}
			return runHistory(opts, layer, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "history database path (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show the layers of this run")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, layer string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	if layer != "" && opts.Run != "" {
		return formatter.Abort(ErrCodeGeneric, "a layer argument and --run are mutually exclusive", nil)
	}

	// Open would create a missing database; history only reads.
	if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
		return formatter.Abort(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.DB), nil)
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return formatter.Abort(ErrCodeStore, fmt.Sprintf("opening database: %v", err), nil)
	}
	defer st.Close()

	ctx := cmd.Context()
	switch {
	case opts.Run != "":
		run, err := st.ReadRun(ctx, opts.Run)
		if errors.Is(err, sql.ErrNoRows) {
			return formatter.Abort(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.Run), nil)
		}
		if err != nil {
			return formatter.Abort(ErrCodeStore, err.Error(), nil)
		}
		return outputRun(formatter, run)

	case layer != "":
		revs, err := st.LayerHistory(ctx, layer)
		if err != nil {
			return formatter.Abort(ErrCodeStore, err.Error(), nil)
		}
		if len(revs) == 0 {
			return formatter.Abort(ErrCodeNotFound, fmt.Sprintf("no recorded runs for layer %s", layer), nil)
		}
		return outputRevisions(formatter, layer, revs)

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return formatter.Abort(ErrCodeStore, err.Error(), nil)
		}
		return outputRuns(formatter, runs)
	}
}


func outputRuns(formatter *OutputFormatter, runs []ir.CompileRun) error {
	if formatter.Format == "json" {
		return formatter.Success(HistoryResult{Runs: runs})
	}

	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(formatter.Writer, "#%d %s %s (compiler %s)\n", run.Seq, run.ID, run.Source, run.CompilerVersion)
	}
	return nil
}

func outputRun(formatter *OutputFormatter, run ir.CompileRun) error {
	if formatter.Format == "json" {
		return formatter.Success(HistoryResult{Run: &run})
	}

	fmt.Fprintf(formatter.Writer, "Run #%d %s\n", run.Seq, run.ID)
	fmt.Fprintf(formatter.Writer, "  source: %s\n  compiler: %s\n\n", run.Source, run.CompilerVersion)
	for _, rec := range run.Layers {
		fmt.Fprintf(formatter.Writer, "  %s: %d matcher(s), %d param(s) [%s]\n",
			rec.Name, rec.Matchers, len(rec.Params), shortFingerprint(rec.Fingerprint))
	}
	return nil
}

func outputRevisions(formatter *OutputFormatter, layer string, revs []ir.LayerRevision) error {
	if formatter.Format == "json" {
		return formatter.Success(HistoryResult{Revisions: revs})
	}

	fmt.Fprintf(formatter.Writer, "Layer %s:\n", layer)
	for _, rev := range revs {
		mark := " "
		if rev.Changed {
			mark = "*"
		}
		fmt.Fprintf(formatter.Writer, "%s #%d %s [%s]\n", mark, rev.Seq, rev.RunID, shortFingerprint(rev.Fingerprint))
	}
	return nil
}
