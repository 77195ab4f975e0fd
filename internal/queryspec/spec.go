package queryspec

// Spec is the declarative input for one query.
//
// A Spec is immutable once built: the engine and SQL builder only read it,
// and two concurrent queries may share the same Spec value safely. Construct
// through New().Build() or ParseMap.
type Spec struct {
	// Filters are the WHERE conditions, AND-combined.
	Filters []FilterClause

	// Sort lists ORDER BY keys in priority order.
	Sort []SortKey

	// Page describes pagination.
	Page Page

	// Fields selects the output shape for non-aggregate queries.
	Fields Fields

	// Aggregates switches the query into aggregate mode when non-empty.
	Aggregates []AggregateClause

	// GroupBy lists GROUP BY keys in declaration order.
	GroupBy []GroupByClause

	// Joins lists the join aliases to activate, in activation order.
	Joins []string

	// WithTotal requests a second, count-variant query alongside the rows.
	WithTotal bool

	// CountOnly requests only the row count; no row query is built.
	CountOnly bool
}

// Builder assembles a Spec fluently. The zero Builder is usable; New() is
// the conventional entry point.
type Builder struct {
	spec Spec
}

// New creates an empty spec builder.
func New() *Builder {
	return &Builder{}
}

// Where appends a filter clause.
func (b *Builder) Where(c FilterClause) *Builder {
	b.spec.Filters = append(b.spec.Filters, c)
	return b
}

// WhereEq appends an equality filter.
func (b *Builder) WhereEq(field string, value any) *Builder {
	return b.Where(Equals{Field: field, Value: value})
}

// WhereNot appends a negated equality filter.
func (b *Builder) WhereNot(field string, value any) *Builder {
	return b.Where(NotEquals{Field: field, Value: value})
}

// WhereIn appends a set-membership filter.
func (b *Builder) WhereIn(field string, values ...any) *Builder {
	return b.Where(In{Field: field, Values: values})
}

// WhereRange appends an inclusive numeric range filter.
func (b *Builder) WhereRange(field string, min, max any) *Builder {
	return b.Where(NumericRange{Field: field, Min: min, Max: max})
}

// Search appends a search filter over the schema's searchable properties.
func (b *Builder) Search(term string, columns ...string) *Builder {
	return b.Where(Search{Term: term, Columns: columns})
}

// Meta appends a meta-filter tree.
func (b *Builder) Meta(q MetaClause) *Builder {
	return b.Where(MetaFilter{Query: q})
}

// SortBy appends an ORDER BY key.
func (b *Builder) SortBy(field string, desc bool) *Builder {
	b.spec.Sort = append(b.spec.Sort, SortKey{Field: field, Desc: desc})
	return b
}

// Paginate sets page/per_page pagination.
func (b *Builder) Paginate(page, perPage int) *Builder {
	b.spec.Page.Page = page
	b.spec.Page.PerPage = perPage
	return b
}

// Offset sets raw offset pagination.
func (b *Builder) Offset(offset int) *Builder {
	b.spec.Page.Offset = offset
	return b
}

// Select requests partial tuples of the named fields. With a single name
// the result is a flat scalar list.
func (b *Builder) Select(fields ...string) *Builder {
	if len(fields) == 1 {
		b.spec.Fields = Fields{Mode: FieldsScalar, Names: fields}
	} else {
		b.spec.Fields = Fields{Mode: FieldsList, Names: fields}
	}
	return b
}

// SelectAll requests full record hydration (the default).
func (b *Builder) SelectAll() *Builder {
	b.spec.Fields = Fields{Mode: FieldsAll}
	return b
}

// Aggregate appends a computed output column.
func (b *Builder) Aggregate(a AggregateClause) *Builder {
	b.spec.Aggregates = append(b.spec.Aggregates, a)
	return b
}

// GroupBy appends a plain GROUP BY key.
func (b *Builder) GroupBy(field string) *Builder {
	b.spec.GroupBy = append(b.spec.GroupBy, GroupByClause{Field: field})
	return b
}

// GroupByBucket appends a temporally bucketed GROUP BY key.
func (b *Builder) GroupByBucket(field string, bucket Bucket) *Builder {
	b.spec.GroupBy = append(b.spec.GroupBy, GroupByClause{Field: field, Bucket: bucket})
	return b
}

// Join activates declared joins by alias, in order.
func (b *Builder) Join(aliases ...string) *Builder {
	b.spec.Joins = append(b.spec.Joins, aliases...)
	return b
}

// WithTotal requests the count-variant query alongside the rows.
func (b *Builder) WithTotal() *Builder {
	b.spec.WithTotal = true
	return b
}

// CountOnly requests only the row count.
func (b *Builder) CountOnly() *Builder {
	b.spec.CountOnly = true
	return b
}

// Build returns the assembled Spec. The builder must not be reused after
// Build; the returned Spec shares its slices.
func (b *Builder) Build() Spec {
	return b.spec
}
