package ir

// Param is one typed parameter a generated layer function must declare.
// Only fixed table columns become parameters; sparse tag keys are read from
// the tags hstore inside the function body.
type Param struct {
	Table  string `json:"table"`  // Owning table ("" for the generic table)
	Column string `json:"column"` // Access expression, e.g. "\"gid\""
	Type   string `json:"type"`   // SQL type, e.g. "integer"
}

// Key returns the (table, column) identity used for deduplication and sorting.
func (p Param) Key() [2]string {
	return [2]string{p.Table, p.Column}
}

// LayerRecord is the complete compiled output for one layer.
// It is consumed verbatim by the emission step.
type LayerRecord struct {
	Name        string  `json:"name"`
	Params      []Param `json:"params"`        // Sorted by (table, column)
	KindCase    string  `json:"kind_case"`     // CASE ... END producing the JSON output record
	MinZoomCase string  `json:"min_zoom_case"` // CASE ... END producing the minimum zoom
	Matchers    int     `json:"matchers"`      // Number of arms in each CASE
	Fingerprint string  `json:"fingerprint"`   // Content hash, see LayerFingerprint

	// Synthetic lists the synthetic columns the CASE expressions read, in
	// synthetic-set order. The generated function body must define each
	// one before the CASE runs.
	Synthetic []string `json:"synthetic,omitempty"`
}
