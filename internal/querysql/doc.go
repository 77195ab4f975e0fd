// Package querysql compiles a queryspec.Spec into parameterized SQL for
// SQLite.
//
// The Builder runs a fixed pipeline, each stage failing fast with a typed
// error before any SQL executes:
//
//	Validate → ResolveFields → BuildJoins → BuildWhere →
//	BuildSelect (plain|aggregate) → BuildGroupBy → BuildOrderBy →
//	BuildLimitOffset → (optional) BuildCountVariant
//
// Two rules hold everywhere:
//
//   - Identifiers (tables, columns, aliases) are validated against a strict
//     charset and double-quoted; they never come from query values.
//   - Values are ALWAYS parameterized, never interpolated into SQL text.
//
// Schema problems surface as *schema.SchemaError and malformed specs as
// *queryspec.ValidationError; both are build-phase errors, so a query that
// fails here has performed zero storage-handle invocations.
//
// The "any LEFT forces all LEFT" join rule is implemented as an explicit
// coercion pass in activateJoins, not as a loop side effect. It is a
// preserved behavior: activating one LEFT join makes every activated join
// LEFT for that query.
package querysql
