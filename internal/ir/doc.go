// Package ir provides the foundational value and record types for tilekind.
//
// This package contains type definitions and decoding only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Configuration values are decoded into the sealed IRValue variant
//     before any interpretation, so consumers switch exhaustively on shape
//   - IRObject preserves declaration order; filter key order is significant
//   - LayerRecord fingerprints use RFC 8785 canonical JSON (no floats)
//   - All JSON tags use snake_case
package ir
