package store

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/roach88/tilekind/internal/ir"
)

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t, "a", "b", "c")
	ctx := context.Background()

	for range 3 {
		if _, err := s.WriteRun(ctx, ir.CompileRun{Source: "layers/"}); err != nil {
			t.Fatalf("WriteRun() failed: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"c", "b", "a"}) {
		t.Errorf("ListRuns() ids = %v, want [c b a]", ids)
	}

	limited, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(2) failed: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "c" {
		t.Errorf("ListRuns(2) = %+v", limited)
	}
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns() = %#v, want empty non-nil slice", runs)
	}
}

func TestReadRun_RoundTrip(t *testing.T) {
	s := createTestStore(t, "run-1")
	ctx := context.Background()

	roads := createTestRecord("roads", "fp-roads")
	water := createTestRecord("water", "fp-water")
	water.Params = []ir.Param{}

	if _, err := s.WriteRun(ctx, ir.CompileRun{
		Source: "layers/",
		Layers: []ir.LayerRecord{water, roads},
	}); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	run, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if run.Source != "layers/" {
		t.Errorf("Source = %q", run.Source)
	}
	want := []ir.LayerRecord{roads, water}
	if !reflect.DeepEqual(run.Layers, want) {
		t.Errorf("Layers = %+v\nwant %+v", run.Layers, want)
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadRun() error = %v, want sql.ErrNoRows", err)
	}
}

func TestLayerHistory_MarksChanges(t *testing.T) {
	s := createTestStore(t, "r1", "r2", "r3", "r4")
	ctx := context.Background()

	for _, fp := range []string{"fp-a", "fp-a", "fp-b", "fp-b"} {
		if _, err := s.WriteRun(ctx, ir.CompileRun{
			Source: "layers/",
			Layers: []ir.LayerRecord{createTestRecord("roads", fp)},
		}); err != nil {
			t.Fatalf("WriteRun() failed: %v", err)
		}
	}

	history, err := s.LayerHistory(ctx, "roads")
	if err != nil {
		t.Fatalf("LayerHistory() failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("len(history) = %d, want 4", len(history))
	}

	wantChanged := []bool{true, false, true, false}
	wantRuns := []string{"r1", "r2", "r3", "r4"}
	for i, rev := range history {
		if rev.Changed != wantChanged[i] {
			t.Errorf("history[%d].Changed = %v, want %v", i, rev.Changed, wantChanged[i])
		}
		if rev.RunID != wantRuns[i] {
			t.Errorf("history[%d].RunID = %q, want %q", i, rev.RunID, wantRuns[i])
		}
		if rev.Layer != "roads" {
			t.Errorf("history[%d].Layer = %q", i, rev.Layer)
		}
	}
}

func TestLayerHistory_UnknownLayer(t *testing.T) {
	s := createTestStore(t)

	history, err := s.LayerHistory(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("LayerHistory() failed: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Errorf("LayerHistory() = %#v, want empty non-nil slice", history)
	}
}

func TestLatestRecord(t *testing.T) {
	s := createTestStore(t, "r1", "r2")
	ctx := context.Background()

	if _, ok, err := s.LatestRecord(ctx, "roads"); err != nil || ok {
		t.Fatalf("LatestRecord() on empty store = ok %v, err %v", ok, err)
	}

	for _, fp := range []string{"fp-old", "fp-new"} {
		if _, err := s.WriteRun(ctx, ir.CompileRun{
			Source: "layers/",
			Layers: []ir.LayerRecord{createTestRecord("roads", fp)},
		}); err != nil {
			t.Fatalf("WriteRun() failed: %v", err)
		}
	}

	rec, ok, err := s.LatestRecord(ctx, "roads")
	if err != nil || !ok {
		t.Fatalf("LatestRecord() = ok %v, err %v", ok, err)
	}
	if rec.Fingerprint != "fp-new" {
		t.Errorf("Fingerprint = %q, want fp-new", rec.Fingerprint)
	}
	if !reflect.DeepEqual(rec, createTestRecord("roads", "fp-new")) {
		t.Errorf("LatestRecord() = %+v", rec)
	}
}
