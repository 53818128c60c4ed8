package ir

// Version constants for compiled records.
const (
	// RecordVersion is the LayerRecord schema version.
	// Bumping it changes every fingerprint.
	RecordVersion = "1"

	// CompilerVersion is the tilekind compiler version.
	CompilerVersion = "0.1.0"
)
