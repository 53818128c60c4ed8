package compiler

import (
	"github.com/roach88/tilekind/internal/ir"
)

// LayerConfig is one decoded layer document.
type LayerConfig struct {
	Name             string
	Filters          []FilterConfig
	SyntheticColumns []string
}

// FilterConfig is one entry of a layer's filters list, in declaration
// order. Filter, MinZoom and Output stay in IR form; the RuleBuilder
// interprets them.
type FilterConfig struct {
	Filter       ir.IRValue
	MinZoom      ir.IRValue
	Output       ir.IRValue
	Table        string
	ExtraColumns []string
}

var (
	layerKeys  = map[string]bool{"filters": true, "synthetic_columns": true}
	filterKeys = map[string]bool{"filter": true, "min_zoom": true, "output": true, "table": true, "extra_columns": true}
)

// DecodeLayer decodes a layer document.
//
// Unknown keys are rejected at both the document and the filter level.
func DecodeLayer(name string, doc ir.IRValue) (*LayerConfig, error) {
	obj, ok := doc.(ir.IRObject)
	if !ok {
		return nil, withLayer(name, configErrorf("", "layer document must be a mapping, got %s", ir.KindOf(doc)))
	}
	for _, k := range obj.Keys() {
		if !layerKeys[k] {
			return nil, withLayer(name, configErrorf(k, "unknown key"))
		}
	}

	cfg := &LayerConfig{Name: name}

	if raw, ok := obj.Get("synthetic_columns"); ok {
		cols, err := ir.StringList(raw)
		if err != nil {
			return nil, withLayer(name, configErrorf("synthetic_columns", "%v", err))
		}
		cfg.SyntheticColumns = cols
	}

	raw, ok := obj.Get("filters")
	if !ok {
		return nil, withLayer(name, configErrorf("filters", "filters is required"))
	}
	list, ok := raw.(ir.IRArray)
	if !ok {
		return nil, withLayer(name, configErrorf("filters", "filters must be a list, got %s", ir.KindOf(raw)))
	}
	if len(list) == 0 {
		return nil, withLayer(name, configErrorf("filters", "at least one filter is required"))
	}

	for i, elem := range list {
		f, err := decodeFilter(elem, indexPath("filters", i))
		if err != nil {
			return nil, withLayer(name, err)
		}
		cfg.Filters = append(cfg.Filters, f)
	}
	return cfg, nil
}

func decodeFilter(v ir.IRValue, path string) (FilterConfig, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return FilterConfig{}, configErrorf(path, "filter entry must be a mapping, got %s", ir.KindOf(v))
	}
	for _, k := range obj.Keys() {
		if !filterKeys[k] {
			return FilterConfig{}, configErrorf(joinPath(path, k), "unknown key")
		}
	}

	var f FilterConfig
	f.Filter, _ = obj.Get("filter")
	if f.Filter == nil {
		return FilterConfig{}, configErrorf(joinPath(path, "filter"), "filter is required")
	}
	f.MinZoom, _ = obj.Get("min_zoom")
	f.Output, _ = obj.Get("output")
	if f.Output == nil {
		return FilterConfig{}, configErrorf(joinPath(path, "output"), "output is required")
	}

	if raw, ok := obj.Get("table"); ok {
		switch t := raw.(type) {
		case ir.IRNull:
		case ir.IRString:
			f.Table = string(t)
		default:
			return FilterConfig{}, configErrorf(joinPath(path, "table"), "table must be a string, got %s", ir.KindOf(raw))
		}
	}

	if raw, ok := obj.Get("extra_columns"); ok {
		cols, err := ir.StringList(raw)
		if err != nil {
			return FilterConfig{}, configErrorf(joinPath(path, "extra_columns"), "%v", err)
		}
		f.ExtraColumns = cols
	}
	return f, nil
}
