// Package harness runs declarative conformance scenarios against the
// query engine.
//
// A scenario is a YAML file naming a collection, a map-form query spec and
// an expectation: the rows, scalars or count the query must produce, or
// the class of error it must fail with. Scenarios execute against a real
// in-memory SQLite store seeded with a fixed dataset, so they exercise the
// full pipeline from parsing through SQL execution.
//
// Alongside scenarios, the package provides golden-file snapshots of
// compiled SQL (via goldie), pinning the exact statements the builder
// emits for representative specs.
package harness
