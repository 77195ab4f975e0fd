package queryspec

import "strings"

// FilterClause represents one WHERE-clause condition.
//
// This is a sealed interface - only types in this package implement it.
// Top-level clauses combine with AND. Meta sub-trees (MetaGroup) may nest
// AND/OR; plain field filters may not.
//
// Clause types:
//   - Equals / NotEquals: single-value comparison
//   - In / NotIn: set membership
//   - NumericRange: >= / <= bounds, combinable
//   - TimeRange: datetime bounds with inclusivity control
//   - DateMatch: calendar-component equality (year/month/day)
//   - Search: OR-combined LIKE across searchable properties
//   - MetaFilter: EXISTS condition against the generic metadata store
type FilterClause interface {
	filterClause() // Marker method - seals interface to this package
}

// Equals filters rows where field = value.
type Equals struct {
	Field string
	Value any
}

func (Equals) filterClause() {}

// NotEquals filters rows where field <> value.
type NotEquals struct {
	Field string
	Value any
}

func (NotEquals) filterClause() {}

// In filters rows where field is one of Values.
// An empty Values set matches nothing.
type In struct {
	Field  string
	Values []any
}

func (In) filterClause() {}

// NotIn filters rows where field is none of Values.
// An empty Values set matches everything.
type NotIn struct {
	Field  string
	Values []any
}

func (NotIn) filterClause() {}

// NumericRange filters rows where Min <= field <= Max.
// A nil bound is unbounded. Both bounds are inclusive.
type NumericRange struct {
	Field string
	Min   any
	Max   any
}

func (NumericRange) filterClause() {}

// TimeRange filters rows by datetime bounds.
//
// Bounds are INCLUSIVE by default: After means field >= bound and Before
// means field <= bound. Setting Strict switches both present bounds to
// strict comparison (> / <). This is the explicit override exposed by the
// structured "_query" filter form's "inclusive" flag.
//
// A nil bound is unbounded. Bound values are passed to the storage handle
// as-is (time.Time or an ISO-8601 string both work with the SQLite driver).
type TimeRange struct {
	Field  string
	After  any
	Before any
	Strict bool
}

func (TimeRange) filterClause() {}

// DateMatch filters rows whose datetime field falls on the given calendar
// components. Zero components are unconstrained; at least one must be set.
type DateMatch struct {
	Field string
	Year  int
	Month int
	Day   int
}

func (DateMatch) filterClause() {}

// Search filters rows where the term appears in any of the named columns
// (or, with no columns, in any schema-flagged searchable property),
// OR-combined as LIKE '%term%'.
type Search struct {
	Term    string
	Columns []string
}

func (Search) filterClause() {}

// MetaFilter routes a condition tree to the generic metadata store.
// Compiles to an EXISTS subquery keyed by (record_id, meta_key, meta_value).
type MetaFilter struct {
	Query MetaClause
}

func (MetaFilter) filterClause() {}

// MetaClause is one node of a meta-filter tree.
//
// This is a sealed interface - only MetaCompare and MetaGroup implement it.
type MetaClause interface {
	metaClause() // Marker method - seals interface to this package
}

// MetaOp is a meta-filter comparison operator.
type MetaOp string

const (
	MetaEq    MetaOp = "="
	MetaNeq   MetaOp = "!="
	MetaIn    MetaOp = "IN"
	MetaNotIn MetaOp = "NOT IN"
	MetaLike  MetaOp = "LIKE"
)

// MetaCompare matches records having a meta entry for Key whose value
// satisfies Op against Value. For MetaIn/MetaNotIn, Value must be []any.
type MetaCompare struct {
	Key   string
	Op    MetaOp
	Value any
}

func (MetaCompare) metaClause() {}

// MetaRelation combines MetaGroup children.
type MetaRelation string

const (
	MetaAnd MetaRelation = "AND"
	MetaOr  MetaRelation = "OR"
)

// MetaGroup combines child nodes with AND or OR. Groups may nest.
type MetaGroup struct {
	Relation MetaRelation
	Nodes    []MetaClause
}

func (MetaGroup) metaClause() {}

// SortKey is one ORDER BY key.
type SortKey struct {
	Field string
	Desc  bool
}

// Page describes pagination. Page/PerPage take precedence over Offset;
// with PerPage set and Page zero, page 1 is assumed. All zero means
// unpaginated.
type Page struct {
	Page    int
	PerPage int
	Offset  int
}

// FieldsMode selects the output shape for non-aggregate queries.
type FieldsMode int

const (
	// FieldsAll hydrates one full record per row.
	FieldsAll FieldsMode = iota
	// FieldsList returns one ordered partial map per row.
	FieldsList
	// FieldsScalar returns a flat list of a single column's values.
	FieldsScalar
)

// Fields is the requested output field selection.
type Fields struct {
	Mode  FieldsMode
	Names []string
}

// AggregateFunc is an aggregate function name.
type AggregateFunc string

const (
	FuncSum   AggregateFunc = "SUM"
	FuncAvg   AggregateFunc = "AVG"
	FuncCount AggregateFunc = "COUNT"
	FuncMin   AggregateFunc = "MIN"
	FuncMax   AggregateFunc = "MAX"
)

// ValidAggregateFunc reports whether f is a known aggregate function.
func ValidAggregateFunc(f AggregateFunc) bool {
	switch f {
	case FuncSum, FuncAvg, FuncCount, FuncMin, FuncMax:
		return true
	}
	return false
}

// AggregateClause describes one computed output column.
//
// This is a sealed interface - only SimpleAggregate, ExprAggregate and
// CaseAggregate implement it.
type AggregateClause interface {
	aggregateClause() // Marker method - seals interface to this package

	// OutputAlias is the result column name for this aggregate.
	OutputAlias() string
}

// SimpleAggregate applies Func directly to a field.
// Alias defaults to "{field}_{function}" lowercased.
type SimpleAggregate struct {
	Field string
	Func  AggregateFunc
	Alias string
}

func (SimpleAggregate) aggregateClause() {}

// OutputAlias returns the explicit alias or the "{field}_{function}" default.
func (a SimpleAggregate) OutputAlias() string {
	if a.Alias != "" {
		return a.Alias
	}
	// Joined references contribute only the bare field to the alias.
	field := a.Field
	if i := strings.LastIndex(field, "."); i >= 0 {
		field = field[i+1:]
	} else if i := strings.Index(field, "__"); i >= 0 {
		field = field[i+2:]
	}
	return field + "_" + strings.ToLower(string(a.Func))
}

// ExprAggregate wraps an arithmetic expression template in Func. The
// template references the resolved column through the "{field}" placeholder:
//
//	ExprAggregate{Func: FuncSum, Field: "amount", Expr: "{field} * 0.01"}
//
// Only whitelisted functions and operators may appear in Expr; anything
// else fails validation before any SQL is built.
type ExprAggregate struct {
	Field string
	Func  AggregateFunc
	Expr  string
	Alias string
}

func (ExprAggregate) aggregateClause() {}

// OutputAlias returns the explicit alias or the "{field}_{function}" default.
func (a ExprAggregate) OutputAlias() string {
	if a.Alias != "" {
		return a.Alias
	}
	return SimpleAggregate{Field: a.Field, Func: a.Func}.OutputAlias()
}

// CaseValue is one CASE branch result: either a literal (parameterized) or
// a reference to another field (resolved to a qualified column).
type CaseValue struct {
	Literal  any
	FieldRef string
}

// CaseBranch is one WHEN arm: field = Match yields Then.
type CaseBranch struct {
	Match any
	Then  CaseValue
}

// MathOp is an optional post-aggregate arithmetic step, e.g. dividing a
// SUM by 100. Op must be one of + - * /.
type MathOp struct {
	Op      string
	Operand float64
}

// CaseAggregate applies Func to a CASE over a field's values:
//
//	Func(CASE field WHEN match THEN value ... ELSE else END)
//
// optionally wrapped again by Math.
type CaseAggregate struct {
	Field string
	Func  AggregateFunc
	When  []CaseBranch
	Else  *CaseValue
	Math  *MathOp
	Alias string
}

func (CaseAggregate) aggregateClause() {}

// OutputAlias returns the explicit alias or the "{field}_{function}" default.
func (a CaseAggregate) OutputAlias() string {
	if a.Alias != "" {
		return a.Alias
	}
	return SimpleAggregate{Field: a.Field, Func: a.Func}.OutputAlias()
}

// Bucket is a temporal truncation applied to a datetime group-by field.
type Bucket string

const (
	// BucketNone groups on the raw field value.
	BucketNone Bucket = ""
	// BucketHour truncates to the hour.
	BucketHour Bucket = "hour"
	// BucketDay truncates to the calendar date.
	BucketDay Bucket = "day"
	// BucketWeek truncates to the Monday of the ISO week.
	BucketWeek Bucket = "week"
	// BucketMonth truncates to the first of the month.
	BucketMonth Bucket = "month"
	// BucketYear truncates to the first of the year.
	BucketYear Bucket = "year"
	// BucketDayOfWeek maps to an integer 0=Monday..6=Sunday.
	BucketDayOfWeek Bucket = "day_of_week"
)

// ValidBucket reports whether b is a known bucket.
func ValidBucket(b Bucket) bool {
	switch b {
	case BucketNone, BucketHour, BucketDay, BucketWeek, BucketMonth, BucketYear, BucketDayOfWeek:
		return true
	}
	return false
}

// GroupByClause is one GROUP BY key, optionally bucketed. A bucketed field
// yields a synthetic "cast_{field}" output column alongside the raw key.
type GroupByClause struct {
	Field  string
	Bucket Bucket
}
