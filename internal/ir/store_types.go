package ir

// NOTE: These are store-layer types, not part of the compiled output.

// CompileRun is one invocation of the compiler whose records were persisted.
type CompileRun struct {
	ID              string        `json:"id"`     // UUIDv7
	Seq             int64         `json:"seq"`    // Store-assigned, monotonically increasing
	Source          string        `json:"source"` // Input path(s) as given on the command line
	CompilerVersion string        `json:"compiler_version"`
	Layers          []LayerRecord `json:"layers,omitempty"`
}

// LayerRevision is one entry of a layer's history across compile runs.
type LayerRevision struct {
	RunID       string `json:"run_id"`
	Seq         int64  `json:"seq"`
	Layer       string `json:"layer"`
	Fingerprint string `json:"fingerprint"`
	Changed     bool   `json:"changed"` // Fingerprint differs from the previous revision
}
