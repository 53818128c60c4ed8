package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tilekind/internal/ir"
)

// marshalRecord converts a LayerRecord to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical records store identical text.
func marshalRecord(rec ir.LayerRecord) (string, error) {
	params := make(ir.IRArray, len(rec.Params))
	for i, p := range rec.Params {
		params[i] = ir.IRObject{
			ir.O("table", ir.IRString(p.Table)),
			ir.O("column", ir.IRString(p.Column)),
			ir.O("type", ir.IRString(p.Type)),
		}
	}
	obj := ir.IRObject{
		ir.O("name", ir.IRString(rec.Name)),
		ir.O("params", params),
		ir.O("kind_case", ir.IRString(rec.KindCase)),
		ir.O("min_zoom_case", ir.IRString(rec.MinZoomCase)),
		ir.O("matchers", ir.IRInt(rec.Matchers)),
		ir.O("fingerprint", ir.IRString(rec.Fingerprint)),
	}
	if len(rec.Synthetic) > 0 {
		synthetic := make(ir.IRArray, len(rec.Synthetic))
		for i, name := range rec.Synthetic {
			synthetic[i] = ir.IRString(name)
		}
		obj = append(obj, ir.O("synthetic", synthetic))
	}

	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses stored JSON TEXT into a LayerRecord.
func unmarshalRecord(data string) (ir.LayerRecord, error) {
	var rec ir.LayerRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return ir.LayerRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	if rec.Params == nil {
		rec.Params = []ir.Param{}
	}
	return rec, nil
}
