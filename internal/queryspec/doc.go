// Package queryspec defines the typed query specification consumed by the
// SQL builder.
//
// A Spec is a declarative description of one query: field filters, search,
// meta filters, sort, pagination, field selection, aggregation, group-by
// and join activation. Specs are immutable by convention: build one through
// the Builder or ParseMap and never mutate it afterwards. The engine treats
// a Spec as read-only input.
//
// FilterClause, MetaClause and AggregateClause are sealed interfaces using
// the marker method pattern. Only types in this package implement them,
// which keeps type switches in the SQL compiler exhaustive and prevents
// callers from injecting clause types the compiler has never seen.
//
// Two construction paths exist:
//
//	spec := queryspec.New().
//	    WhereEq("status", "paid").
//	    Aggregate(queryspec.SimpleAggregate{Field: "amount", Func: queryspec.FuncSum}).
//	    Build()
//
// or the map form, the shape host applications ship over the wire:
//
//	spec, err := queryspec.ParseMap(map[string]any{
//	    "status":    "paid",
//	    "aggregate": map[string]any{"amount": "sum"},
//	})
//
// ParseMap interprets operator suffixes (_not, _min, _max, _after, _before,
// _query) exactly once, producing tagged clause variants; nothing downstream
// ever re-inspects map keys.
package queryspec
