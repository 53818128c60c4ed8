// Package store provides SQLite-backed history of compile runs.
//
// Each run records:
//   - compile_runs: one row per `tilekind compile --db`, with a UUIDv7 id
//   - layer_records: the canonical JSON of every LayerRecord the run produced
//
// # Ordering
//
// Runs are ordered by seq, an INTEGER assigned by the store on insert.
// Timestamps are never used for ordering, so history queries return the
// same result regardless of clock skew between machines.
//
// # Change detection
//
// LayerHistory compares each revision's fingerprint with the previous one
// for the same layer. Fingerprints are computed in internal/ir with RFC 8785
// canonical JSON and SHA-256 with domain separation, so an unchanged layer
// document always yields an unchanged fingerprint.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
