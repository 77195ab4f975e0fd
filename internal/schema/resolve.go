package schema

import "strings"

// ResolvedField is the outcome of a successful field resolution.
type ResolvedField struct {
	// Qualified is the quoted, alias-qualified SQL column, e.g. `"o"."total"`.
	Qualified string

	// Property is the resolved property definition.
	Property PropertyDef

	// Collection is the owning collection's registered name.
	Collection string

	// JoinAlias is the activated join alias, or "" for the base collection.
	JoinAlias string
}

// SplitRef splits a field reference into (alias, field). A bare reference
// returns ("", field) via the second value being empty:
//
//	SplitRef("status")     → ("status", "")
//	SplitRef("u.email")    → ("u", "email")
//	SplitRef("u__email")   → ("u", "email")
//
// The first return is the bare field when no alias is present. The "__"
// form is unambiguous because Register rejects property names and join
// aliases containing "__".
func SplitRef(ref string) (string, string) {
	if i := strings.Index(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	if i := strings.Index(ref, "__"); i >= 0 {
		return ref[:i], ref[i+2:]
	}
	return ref, ""
}

// QuoteIdent wraps a validated identifier in double quotes.
func QuoteIdent(s string) string {
	return `"` + s + `"`
}

// QualifyColumn renders an alias-qualified quoted column reference.
func QualifyColumn(alias, column string) string {
	return QuoteIdent(alias) + "." + QuoteIdent(column)
}

// Resolve resolves a field reference against base and the query's
// active-join set.
//
// activeJoins maps activated alias → target collection schema. The base
// collection's own alias is its table name. Resolution is pure: no side
// effects, no caching, no mutation.
//
// Fails with *SchemaError when:
//   - the bare field is not a property of base (ErrCodeUnknownField)
//   - the alias is declared but not activated for this query (ErrCodeInactiveJoin)
//   - the alias is not declared at all (ErrCodeUnknownJoin)
//   - the aliased field is not a property of the join target (ErrCodeUnknownField)
func (r *Registry) Resolve(base *CollectionSchema, ref string, activeJoins map[string]*CollectionSchema) (ResolvedField, error) {
	alias, field := SplitRef(ref)

	// Bare reference: base collection.
	if field == "" {
		prop, ok := base.Property(alias)
		if !ok {
			return ResolvedField{}, newFieldError(base.Name, alias)
		}
		return ResolvedField{
			Qualified:  QualifyColumn(base.Table, prop.Name),
			Property:   prop,
			Collection: base.Name,
		}, nil
	}

	target, active := activeJoins[alias]
	if !active {
		if _, declared := base.Join(alias); declared {
			return ResolvedField{}, &SchemaError{
				Code:       ErrCodeInactiveJoin,
				Message:    "join is declared but not activated for this query",
				Collection: base.Name,
				Join:       alias,
				Field:      field,
			}
		}
		return ResolvedField{}, &SchemaError{
			Code:       ErrCodeUnknownJoin,
			Message:    "join alias not declared",
			Collection: base.Name,
			Join:       alias,
			Field:      field,
		}
	}

	prop, ok := target.Property(field)
	if !ok {
		return ResolvedField{}, &SchemaError{
			Code:       ErrCodeUnknownField,
			Message:    "field not found on join target",
			Collection: target.Name,
			Join:       alias,
			Field:      field,
		}
	}
	return ResolvedField{
		Qualified:  QualifyColumn(alias, prop.Name),
		Property:   prop,
		Collection: target.Name,
		JoinAlias:  alias,
	}, nil
}
