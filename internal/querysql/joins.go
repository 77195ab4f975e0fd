package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/quarry/internal/schema"
)

// ActiveJoin is one schema-declared relationship activated for a query.
type ActiveJoin struct {
	// Alias is the activation alias; joined fields are referenced through it.
	Alias string

	// Kind is the effective join operator after LEFT coercion.
	Kind schema.JoinKind

	// Target is the joined collection's schema.
	Target *schema.CollectionSchema

	// OnLocal is the qualified local join column SQL.
	OnLocal string

	// OnForeign is the qualified foreign join column SQL.
	OnForeign string
}

// activateJoins resolves the spec's join aliases against the base
// collection's declared joins, in activation order.
//
// Returns the ordered join list plus the alias → target schema map used by
// field resolution. Enforces two rules:
//
//   - Chained joins: a JoinDef whose local column reads "alias.field" must
//     reference an alias activated EARLIER in the same query.
//   - LEFT coercion: if any activated join is declared LEFT, every
//     activated join is coerced to LEFT for this query. Preserved behavior;
//     callers relying on INNER semantics must not mix kinds.
func activateJoins(reg *schema.Registry, base *schema.CollectionSchema, aliases []string) ([]ActiveJoin, map[string]*schema.CollectionSchema, error) {
	if len(aliases) == 0 {
		return nil, nil, nil
	}

	joins := make([]ActiveJoin, 0, len(aliases))
	active := make(map[string]*schema.CollectionSchema, len(aliases))

	for _, alias := range aliases {
		def, ok := base.Join(alias)
		if !ok {
			return nil, nil, &schema.SchemaError{
				Code:       schema.ErrCodeUnknownJoin,
				Message:    "cannot activate undeclared join",
				Collection: base.Name,
				Join:       alias,
			}
		}
		if _, dup := active[alias]; dup {
			return nil, nil, &schema.SchemaError{
				Code:       schema.ErrCodeUnknownJoin,
				Message:    "join activated twice",
				Collection: base.Name,
				Join:       alias,
			}
		}

		target, err := reg.Collection(def.Target)
		if err != nil {
			return nil, nil, err
		}

		onLocal, err := resolveLocalColumn(base, def, active)
		if err != nil {
			return nil, nil, err
		}

		joins = append(joins, ActiveJoin{
			Alias:     alias,
			Kind:      def.Kind,
			Target:    target,
			OnLocal:   onLocal,
			OnForeign: schema.QualifyColumn(alias, def.ForeignColumn),
		})
		active[alias] = target
	}

	// LEFT coercion: one LEFT join makes every activated join LEFT.
	for _, j := range joins {
		if j.Kind == schema.JoinLeft {
			for i := range joins {
				joins[i].Kind = schema.JoinLeft
			}
			break
		}
	}

	return joins, active, nil
}

// resolveLocalColumn resolves a JoinDef's local side, which is either a
// base-collection property or an "alias.field" reference to a previously
// activated join (join-on-a-join).
func resolveLocalColumn(base *schema.CollectionSchema, def schema.JoinDef, active map[string]*schema.CollectionSchema) (string, error) {
	first, rest := schema.SplitRef(def.LocalColumn)
	if rest == "" {
		return schema.QualifyColumn(base.Table, first), nil
	}

	prev, ok := active[first]
	if !ok {
		return "", &schema.SchemaError{
			Code:       schema.ErrCodeInactiveJoin,
			Message:    fmt.Sprintf("join %q chains on %q, which is not activated earlier in this query", def.Alias, first),
			Collection: base.Name,
			Join:       def.Alias,
			Field:      def.LocalColumn,
		}
	}
	if _, found := prev.Property(rest); !found {
		return "", &schema.SchemaError{
			Code:       schema.ErrCodeUnknownField,
			Message:    "chained join column not found",
			Collection: prev.Name,
			Join:       first,
			Field:      rest,
		}
	}
	return schema.QualifyColumn(first, rest), nil
}

// joinSQL renders the JOIN clauses in activation order.
func joinSQL(joins []ActiveJoin) string {
	if len(joins) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, j := range joins {
		fmt.Fprintf(&sb, " %s JOIN %s AS %s ON %s = %s",
			j.Kind,
			schema.QuoteIdent(j.Target.Table),
			schema.QuoteIdent(j.Alias),
			j.OnLocal,
			j.OnForeign)
	}
	return sb.String()
}
