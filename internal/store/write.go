package store

import (
	"context"
	"fmt"

	"github.com/roach88/tilekind/internal/ir"
)

// WriteRun records a compile run and all of its layer records atomically.
//
// If run.ID is empty a new ID is generated. The returned run carries the
// ID and the store-assigned Seq.
func (s *Store) WriteRun(ctx context.Context, run ir.CompileRun) (ir.CompileRun, error) {
	if run.ID == "" {
		run.ID = s.idGen.Generate()
	}
	if run.CompilerVersion == "" {
		run.CompilerVersion = ir.CompilerVersion
	}

	records := make([]string, len(run.Layers))
	for i, rec := range run.Layers {
		data, err := marshalRecord(rec)
		if err != nil {
			return ir.CompileRun{}, fmt.Errorf("write run: layer %s: %w", rec.Name, err)
		}
		records[i] = data
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.CompileRun{}, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO compile_runs (id, source, compiler_version, record_version)
		VALUES (?, ?, ?, ?)
	`,
		run.ID,
		run.Source,
		run.CompilerVersion,
		ir.RecordVersion,
	)
	if err != nil {
		return ir.CompileRun{}, fmt.Errorf("write run: %w", err)
	}
	run.Seq, err = result.LastInsertId()
	if err != nil {
		return ir.CompileRun{}, fmt.Errorf("write run: get seq: %w", err)
	}

	for i, rec := range run.Layers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO layer_records (run_seq, layer, fingerprint, record)
			VALUES (?, ?, ?, ?)
		`,
			run.Seq,
			rec.Name,
			rec.Fingerprint,
			records[i],
		)
		if err != nil {
			return ir.CompileRun{}, fmt.Errorf("write run: layer %s: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ir.CompileRun{}, fmt.Errorf("write run: commit: %w", err)
	}
	return run, nil
}
