// Package schema holds the static per-process collection metadata used to
// validate and resolve field references during query building.
//
// A Registry is populated once, at collection-registration time, and is
// read-only afterwards. Because registration happens before any query runs,
// the Registry is safe for unlimited concurrent readers without locking.
//
// Field references come in three syntaxes:
//
//	"status"        bare field on the base collection
//	"u.email"       field on the join activated under alias "u"
//	"u__email"      same, double-underscore form for callers that cannot
//	                use dots in keys
//
// Resolution fails with a *SchemaError when the collection, field, or join
// alias is unknown, or when the alias is not in the query's active-join set.
// Resolution never has side effects.
package schema
