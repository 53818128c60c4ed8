// Package emit renders compiled LayerRecords into a SQL script.
//
// Emission is deliberately thin: records are substituted verbatim into a
// text/template. The default template (templates/layers.sql.tmpl) creates
// two functions per layer, one returning the JSON output record and one
// returning the minimum zoom. Projects with a different function layout
// pass their own template with `tilekind compile --template`.
package emit
