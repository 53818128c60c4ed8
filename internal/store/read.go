package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tilekind/internal/ir"
)

// ListRuns returns the most recent runs, newest first, without their layer
// records. A limit <= 0 returns every run.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]ir.CompileRun, error) {
	query := `
		SELECT seq, id, source, compiler_version
		FROM compile_runs
		ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.CompileRun{}
	for rows.Next() {
		var run ir.CompileRun
		if err := rows.Scan(&run.Seq, &run.ID, &run.Source, &run.CompilerVersion); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a run by ID with its layer records ordered by layer
// name. Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.CompileRun, error) {
	var run ir.CompileRun
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, id, source, compiler_version
		FROM compile_runs
		WHERE id = ?
	`, id).Scan(&run.Seq, &run.ID, &run.Source, &run.CompilerVersion)
	if err != nil {
		return ir.CompileRun{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT record
		FROM layer_records
		WHERE run_seq = ?
		ORDER BY layer COLLATE BINARY ASC
	`, run.Seq)
	if err != nil {
		return ir.CompileRun{}, fmt.Errorf("query layer records: %w", err)
	}
	defer rows.Close()

	run.Layers = []ir.LayerRecord{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return ir.CompileRun{}, fmt.Errorf("scan layer record: %w", err)
		}
		rec, err := unmarshalRecord(data)
		if err != nil {
			return ir.CompileRun{}, err
		}
		run.Layers = append(run.Layers, rec)
	}
	if err := rows.Err(); err != nil {
		return ir.CompileRun{}, fmt.Errorf("iterate layer records: %w", err)
	}
	return run, nil
}

// LayerHistory returns every recorded revision of a layer, oldest first.
// Changed is true for the first revision and whenever the fingerprint
// differs from the previous one.
//
// Returns an empty slice (not nil) if the layer was never recorded.
func (s *Store) LayerHistory(ctx context.Context, layer string) ([]ir.LayerRevision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.seq, l.layer, l.fingerprint
		FROM layer_records l
		JOIN compile_runs r ON l.run_seq = r.seq
		WHERE l.layer = ?
		ORDER BY r.seq ASC
	`, layer)
	if err != nil {
		return nil, fmt.Errorf("query layer history: %w", err)
	}
	defer rows.Close()

	revisions := []ir.LayerRevision{}
	prev := ""
	for rows.Next() {
		var rev ir.LayerRevision
		if err := rows.Scan(&rev.RunID, &rev.Seq, &rev.Layer, &rev.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan layer revision: %w", err)
		}
		rev.Changed = rev.Fingerprint != prev
		prev = rev.Fingerprint
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate layer history: %w", err)
	}
	return revisions, nil
}

// LatestRecord returns the most recently stored record of a layer.
// The boolean is false when the layer was never recorded.
func (s *Store) LatestRecord(ctx context.Context, layer string) (ir.LayerRecord, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT record
		FROM layer_records
		WHERE layer = ?
		ORDER BY run_seq DESC
		LIMIT 1
	`, layer).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.LayerRecord{}, false, nil
	}
	if err != nil {
		return ir.LayerRecord{}, false, fmt.Errorf("query latest record: %w", err)
	}

	rec, err := unmarshalRecord(data)
	if err != nil {
		return ir.LayerRecord{}, false, err
	}
	return rec, true, nil
}
