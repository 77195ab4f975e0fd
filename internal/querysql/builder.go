package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/schema"
)

// ResultMode is the output shape a plan produces.
type ResultMode int

const (
	// ModeRecords hydrates one full record per row.
	ModeRecords ResultMode = iota
	// ModeTuples returns one partial field map per row.
	ModeTuples
	// ModeScalars returns a flat list of one column's values.
	ModeScalars
	// ModeAggregates returns one map per GROUP BY bucket.
	ModeAggregates
	// ModeCount returns a single integer.
	ModeCount
)

// Plan is a fully compiled query: one SQL statement plus, when a total was
// requested, an independent count variant sharing WHERE and JOIN but
// stripped of ORDER BY, LIMIT and OFFSET.
//
// A Plan is immutable once built. The executor runs it without consulting
// the registry again.
type Plan struct {
	// Collection is the queried collection's registered name.
	Collection string

	// Base is the queried collection's schema.
	Base *schema.CollectionSchema

	// Mode selects how the executor shapes rows.
	Mode ResultMode

	// SQL and Args are the main statement. Empty SQL in ModeCount means
	// only CountSQL runs.
	SQL  string
	Args []any

	// CountSQL and CountArgs are the count variant; empty when no count
	// was requested, so no redundant round trip happens.
	CountSQL  string
	CountArgs []any

	// Columns are the output column names for ModeTuples / ModeScalars.
	Columns []string

	// GroupAliases are the group-key output columns, including synthetic
	// cast_ columns, in declaration order.
	GroupAliases []string

	// AggregateAliases are the computed output columns in spec order.
	AggregateAliases []string

	// Joins are the activated joins after LEFT coercion.
	Joins []ActiveJoin
}

// Builder compiles specs against an injected schema registry.
//
// A Builder holds no per-query state; one instance serves any number of
// concurrent Build calls.
type Builder struct {
	reg *schema.Registry
}

// NewBuilder creates a Builder over the given registry.
func NewBuilder(reg *schema.Registry) *Builder {
	return &Builder{reg: reg}
}

// Build runs the fixed compilation pipeline:
//
//	Validate → ResolveFields → BuildJoins → BuildWhere →
//	BuildSelect → BuildGroupBy → BuildOrderBy → BuildLimitOffset →
//	(optional) BuildCountVariant
//
// Every stage fails fast: the first *schema.SchemaError or
// *queryspec.ValidationError aborts the build and nothing executes.
//
// Count-only specs compile to a single total of matching rows (distinct
// primary keys under joins) over the shared FROM/JOIN/WHERE. Group-by
// clauses never partition a count: the result is one number, not one
// per bucket.
func (b *Builder) Build(collection string, spec queryspec.Spec) (*Plan, error) {
	// Validate: schema-independent structural checks.
	if err := queryspec.Validate(spec); err != nil {
		return nil, err
	}

	base, err := b.reg.Collection(collection)
	if err != nil {
		return nil, err
	}

	// BuildJoins (field resolution needs the active-join set, so joins
	// come before everything that resolves references).
	joins, active, err := activateJoins(b.reg, base, spec.Joins)
	if err != nil {
		return nil, err
	}

	c := &compiler{reg: b.reg, base: base, active: active}

	whereSQL, whereArgs, err := c.compileWhere(spec.Filters)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Collection: collection,
		Base:       base,
		Joins:      joins,
	}

	from := schema.QuoteIdent(base.Table) + joinSQL(joins)
	where := ""
	if whereSQL != "" {
		where = " WHERE " + whereSQL
	}

	countSQL := fmt.Sprintf("SELECT %s FROM %s%s", countExpr(base, joins), from, where)

	// Count-only plans skip the row statement entirely; grouping does
	// not apply, the total covers all matching rows.
	if spec.CountOnly {
		plan.Mode = ModeCount
		plan.CountSQL = countSQL
		plan.CountArgs = whereArgs
		return plan, nil
	}

	// BuildSelect + BuildGroupBy.
	var selectParts []string
	var selectArgs []any
	var groupBy []string

	if len(spec.Aggregates) > 0 {
		plan.Mode = ModeAggregates

		gb, err := c.compileGroupBy(spec.GroupBy)
		if err != nil {
			return nil, err
		}
		selectParts = append(selectParts, gb.selects...)
		groupBy = gb.groupBy
		plan.GroupAliases = gb.aliases

		for _, agg := range spec.Aggregates {
			sql, args, alias, err := c.compileAggregate(agg)
			if err != nil {
				return nil, err
			}
			selectParts = append(selectParts, sql)
			selectArgs = append(selectArgs, args...)
			plan.AggregateAliases = append(plan.AggregateAliases, alias)
		}

		// Declared extra fields merge into aggregate rows.
		if spec.Fields.Mode != queryspec.FieldsAll {
			for _, name := range spec.Fields.Names {
				rf, err := c.resolve(name)
				if err != nil {
					return nil, err
				}
				out := outputName(name)
				selectParts = append(selectParts, rf.Qualified+" AS "+schema.QuoteIdent(out))
				plan.Columns = append(plan.Columns, out)
			}
		}
	} else {
		switch spec.Fields.Mode {
		case queryspec.FieldsAll:
			plan.Mode = ModeRecords
			selectParts = append(selectParts, schema.QuoteIdent(base.Table)+".*")
		case queryspec.FieldsList, queryspec.FieldsScalar:
			if spec.Fields.Mode == queryspec.FieldsScalar {
				plan.Mode = ModeScalars
			} else {
				plan.Mode = ModeTuples
			}
			for _, name := range spec.Fields.Names {
				rf, err := c.resolve(name)
				if err != nil {
					return nil, err
				}
				out := outputName(name)
				selectParts = append(selectParts, rf.Qualified+" AS "+schema.QuoteIdent(out))
				plan.Columns = append(plan.Columns, out)
			}
		}
	}

	// BuildOrderBy.
	orderBy, err := c.compileOrderBy(spec, plan)
	if err != nil {
		return nil, err
	}

	// BuildLimitOffset.
	limit := limitOffsetSQL(spec.Page)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectParts, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(from)
	sb.WriteString(where)
	if len(groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groupBy, ", "))
	}
	sb.WriteString(orderBy)
	sb.WriteString(limit)

	plan.SQL = sb.String()
	plan.Args = append(append([]any{}, selectArgs...), whereArgs...)

	// BuildCountVariant: only when requested, to avoid a redundant round
	// trip. The count shares WHERE/JOIN and is independent of the main
	// statement.
	if spec.WithTotal {
		plan.CountSQL = countSQL
		plan.CountArgs = whereArgs
	}

	return plan, nil
}

// countExpr counts distinct primary keys under joins so one-to-many row
// multiplication does not inflate totals.
func countExpr(base *schema.CollectionSchema, joins []ActiveJoin) string {
	if len(joins) == 0 {
		return "COUNT(*)"
	}
	return fmt.Sprintf("COUNT(DISTINCT %s)", schema.QualifyColumn(base.Table, base.PrimaryKey))
}

// compileOrderBy renders ORDER BY. Sort keys resolve against the schema;
// in aggregate mode a key may instead name an output alias (an aggregate
// alias, a group key or a cast_ column). Paginated queries without an
// explicit sort get a primary-key tiebreaker so pages are stable.
func (c *compiler) compileOrderBy(spec queryspec.Spec, plan *Plan) (string, error) {
	var keys []string

	aliases := make(map[string]bool, len(plan.GroupAliases)+len(plan.AggregateAliases))
	if plan.Mode == ModeAggregates {
		for _, a := range plan.GroupAliases {
			aliases[a] = true
		}
		for _, a := range plan.AggregateAliases {
			aliases[a] = true
		}
	}

	for _, s := range spec.Sort {
		dir := " ASC"
		if s.Desc {
			dir = " DESC"
		}
		if aliases[s.Field] {
			keys = append(keys, schema.QuoteIdent(s.Field)+dir)
			continue
		}
		rf, err := c.resolve(s.Field)
		if err != nil {
			return "", err
		}
		keys = append(keys, rf.Qualified+dir)
	}

	if len(keys) == 0 {
		if plan.Mode != ModeAggregates && (spec.Page.PerPage > 0 || spec.Page.Offset > 0) {
			keys = append(keys, schema.QualifyColumn(c.base.Table, c.base.PrimaryKey)+" ASC")
		} else {
			return "", nil
		}
	}

	return " ORDER BY " + strings.Join(keys, ", "), nil
}

// limitOffsetSQL renders pagination. Page/PerPage win over a raw Offset;
// a raw offset without a limit uses SQLite's LIMIT -1.
func limitOffsetSQL(p queryspec.Page) string {
	if p.PerPage > 0 {
		page := p.Page
		if page < 1 {
			page = 1
		}
		offset := (page - 1) * p.PerPage
		if offset > 0 {
			return fmt.Sprintf(" LIMIT %d OFFSET %d", p.PerPage, offset)
		}
		return fmt.Sprintf(" LIMIT %d", p.PerPage)
	}
	if p.Offset > 0 {
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", p.Offset)
	}
	return ""
}
