package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tilekind/internal/ir"
)

// createTestStore creates a new store in a temp dir with fixed run IDs.
func createTestStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(NewFixedGenerator(ids...)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a layer record with minimal required fields.
func createTestRecord(name, fingerprint string) ir.LayerRecord {
	return ir.LayerRecord{
		Name:        name,
		Params:      []ir.Param{{Table: "roads", Column: `"highway"`, Type: "text"}},
		KindCase:    "CASE\n    WHEN (\"highway\" = 'motorway') THEN ('{\"kind\": ' || mz_to_json_null_safe('highway'::text) || '}')::json\n  END",
		MinZoomCase: "CASE\n    WHEN (\"highway\" = 'motorway') THEN 4\n  END",
		Matchers:    1,
		Fingerprint: fingerprint,
	}
}
