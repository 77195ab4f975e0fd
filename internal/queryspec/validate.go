package queryspec

import "fmt"

// Validate performs the structural (schema-independent) checks on a spec.
//
// The SQL builder runs this as its first pipeline stage; callers may also
// run it early to reject a spec before touching the engine. Field existence
// is NOT checked here - that requires the schema registry and happens
// during field resolution.
//
// Validate is a pure function with no side effects.
func Validate(spec Spec) error {
	for _, f := range spec.Filters {
		if err := validateFilter(f); err != nil {
			return err
		}
	}

	for _, s := range spec.Sort {
		if s.Field == "" {
			return &ValidationError{Code: ErrCodeBadSort, Message: "sort key has empty field"}
		}
	}

	if spec.Page.Page < 0 || spec.Page.PerPage < 0 || spec.Page.Offset < 0 {
		return &ValidationError{Code: ErrCodeBadPage, Message: "pagination values must not be negative"}
	}
	if spec.Page.Page > 0 && spec.Page.PerPage == 0 {
		return &ValidationError{Code: ErrCodeBadPage, Message: "page requires per_page"}
	}

	if spec.Fields.Mode != FieldsAll && len(spec.Fields.Names) == 0 {
		return &ValidationError{Code: ErrCodeBadSpec, Message: "field selection has no field names"}
	}

	for _, a := range spec.Aggregates {
		if err := validateAggregate(a); err != nil {
			return err
		}
	}

	for _, g := range spec.GroupBy {
		if g.Field == "" {
			return &ValidationError{Code: ErrCodeBadGroupBy, Message: "group-by key has empty field"}
		}
		if !ValidBucket(g.Bucket) {
			return &ValidationError{
				Code:    ErrCodeBadGroupBy,
				Message: fmt.Sprintf("unknown bucket %q", g.Bucket),
				Field:   g.Field,
			}
		}
	}

	if len(spec.GroupBy) > 0 && len(spec.Aggregates) == 0 && !spec.CountOnly {
		return &ValidationError{Code: ErrCodeBadGroupBy, Message: "group-by requires aggregates"}
	}

	return nil
}

func validateFilter(f FilterClause) error {
	switch c := f.(type) {
	case Equals, NotEquals, In, NotIn:
		// Field presence is the only structural requirement; emptiness is
		// caught by resolution anyway, but fail early with a better error.
		if filterField(f) == "" {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "filter has empty field"}
		}
	case NumericRange:
		if c.Field == "" {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "range filter has empty field"}
		}
		if c.Min == nil && c.Max == nil {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "range filter has no bounds", Field: c.Field}
		}
	case TimeRange:
		if c.Field == "" {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "time range filter has empty field"}
		}
		if c.After == nil && c.Before == nil {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "time range filter has no bounds", Field: c.Field}
		}
	case DateMatch:
		if c.Field == "" {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "date match filter has empty field"}
		}
		if c.Year == 0 && c.Month == 0 && c.Day == 0 {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "date match filter has no components", Field: c.Field}
		}
		if c.Month < 0 || c.Month > 12 || c.Day < 0 || c.Day > 31 {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "date match component out of range", Field: c.Field}
		}
	case Search:
		if c.Term == "" {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "search filter has empty term"}
		}
	case MetaFilter:
		return validateMeta(c.Query)
	default:
		return &ValidationError{Code: ErrCodeBadFilter, Message: fmt.Sprintf("unknown filter clause type %T", f)}
	}
	return nil
}

func validateMeta(m MetaClause) error {
	switch c := m.(type) {
	case MetaCompare:
		if c.Key == "" {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "meta compare has empty key"}
		}
		switch c.Op {
		case MetaEq, MetaNeq, MetaLike:
		case MetaIn, MetaNotIn:
			if _, ok := c.Value.([]any); !ok {
				return &ValidationError{
					Code:    ErrCodeBadFilter,
					Message: "meta IN/NOT IN requires a value list",
					Field:   c.Key,
				}
			}
		default:
			return &ValidationError{
				Code:    ErrCodeBadFilter,
				Message: fmt.Sprintf("unknown meta operator %q", c.Op),
				Field:   c.Key,
			}
		}
	case MetaGroup:
		if c.Relation != MetaAnd && c.Relation != MetaOr {
			return &ValidationError{
				Code:    ErrCodeBadFilter,
				Message: fmt.Sprintf("unknown meta relation %q", c.Relation),
			}
		}
		if len(c.Nodes) == 0 {
			return &ValidationError{Code: ErrCodeBadFilter, Message: "empty meta group"}
		}
		for _, n := range c.Nodes {
			if err := validateMeta(n); err != nil {
				return err
			}
		}
	case nil:
		return &ValidationError{Code: ErrCodeBadFilter, Message: "nil meta query"}
	default:
		return &ValidationError{Code: ErrCodeBadFilter, Message: fmt.Sprintf("unknown meta clause type %T", m)}
	}
	return nil
}

func validateAggregate(a AggregateClause) error {
	switch agg := a.(type) {
	case SimpleAggregate:
		if agg.Field == "" {
			return &ValidationError{Code: ErrCodeBadAggregate, Message: "aggregate has empty field"}
		}
		if !ValidAggregateFunc(agg.Func) {
			return badFunc(agg.Func, agg.Field)
		}
	case ExprAggregate:
		if agg.Field == "" {
			return &ValidationError{Code: ErrCodeBadAggregate, Message: "expression aggregate has empty field"}
		}
		if !ValidAggregateFunc(agg.Func) {
			return badFunc(agg.Func, agg.Field)
		}
		if err := CheckExpression(agg.Expr); err != nil {
			return err
		}
	case CaseAggregate:
		if agg.Field == "" {
			return &ValidationError{Code: ErrCodeBadAggregate, Message: "case aggregate has empty field"}
		}
		if !ValidAggregateFunc(agg.Func) {
			return badFunc(agg.Func, agg.Field)
		}
		if len(agg.When) == 0 {
			return &ValidationError{Code: ErrCodeBadAggregate, Message: "case aggregate has no branches", Field: agg.Field}
		}
		if agg.Math != nil {
			switch agg.Math.Op {
			case "+", "-", "*", "/":
			default:
				return &ValidationError{
					Code:    ErrCodeDisallowedToken,
					Message: "post-aggregate math operator outside the whitelist",
					Token:   agg.Math.Op,
				}
			}
		}
	default:
		return &ValidationError{Code: ErrCodeBadAggregate, Message: fmt.Sprintf("unknown aggregate clause type %T", a)}
	}
	return nil
}

func badFunc(f AggregateFunc, field string) *ValidationError {
	return &ValidationError{
		Code:    ErrCodeBadAggregate,
		Message: fmt.Sprintf("unknown aggregate function %q", f),
		Field:   field,
	}
}

func filterField(f FilterClause) string {
	switch c := f.(type) {
	case Equals:
		return c.Field
	case NotEquals:
		return c.Field
	case In:
		return c.Field
	case NotIn:
		return c.Field
	default:
		return ""
	}
}
