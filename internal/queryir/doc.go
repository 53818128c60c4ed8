// Package queryir provides the predicate intermediate representation that
// filter documents are lowered into before SQL generation.
//
// ARCHITECTURE:
//
//	[layer YAML/CUE] → [compiler: RuleBuilder] → [queryir] → [querysql] → [LayerRecord]
//
// The IR knows nothing about SQL syntax. It records what a matcher tests
// (Rule), what it outputs (OutputField, Value) and which storage locations
// it touches (Column). The querysql backend owns all rendering decisions,
// including the pairing of tag comparisons with existence checks.
//
// COLUMNS:
//
// A Column is either fixed (a declared table column) or a tag (a key in the
// sparse tags hstore). Column is a comparable struct, so map[Column]struct{}
// is the dependency set used throughout the compiler.
//
// SEALED INTERFACES:
//
// Rule and Value are sealed interfaces using the marker method pattern.
// Only types in this package implement them. This enables exhaustive type
// switches in the backend and in dependency extraction:
//
//	switch r := rule.(type) {
//	case Equals:
//	    // ...
//	case And:
//	    // ...
//	default:
//	    // internal defect: unknown node
//	}
//
// ORDER:
//
// Every slice in the IR (And.Rules, In.Values, Matcher.Output) is in
// declaration order. Output text depends on it and must be reproducible.
package queryir
