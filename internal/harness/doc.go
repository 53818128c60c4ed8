// Package harness runs layer compilation scenarios.
//
// A scenario is a YAML file holding one layer document (inline or by path)
// and a list of assertions about what the compiler makes of it. The harness
// compiles the layer, round-trips the record through an in-memory store,
// renders every arm and evaluates the assertions.
//
// # Scenario Format
//
//	name: roads_priority
//	description: "What this scenario validates"
//	layer_name: roads            # optional, defaults to name
//	layer:                       # or layer_file: ../layers/roads.yaml
//	  filters:
//	    - filter: {highway: motorway}
//	      min_zoom: 5
//	      output: {kind: highway}
//	assertions:
//	  - type: condition
//	    arm: 0
//	    expect: "((tags ? 'highway') AND (tags->'highway' = 'motorway'))"
//	  - type: param
//	    table: ne
//	    column: '"scalerank"'
//	    sql_type: smallint
//
// # Assertion Types
//
//   - condition, output, min_zoom: exact SQL of one arm's WHEN or THEN
//   - arm_order: kinds of all arms, in priority order
//   - arm_count, params_count: sizes
//   - param: a (table, column) param exists, optionally with a type
//   - kind_case_contains: substring of the full kind CASE
//   - error: compilation fails with a message and, optionally, a class
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/roads.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
