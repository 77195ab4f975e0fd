package querysql

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/schema"
)

// MetaTable is the backing table of the generic metadata store.
const MetaTable = "meta_values"

// compiler carries the per-query resolution context through the pipeline
// stages. One compiler is built per Build call; nothing is shared between
// queries.
type compiler struct {
	reg    *schema.Registry
	base   *schema.CollectionSchema
	active map[string]*schema.CollectionSchema
}

func (c *compiler) resolve(ref string) (schema.ResolvedField, error) {
	return c.reg.Resolve(c.base, ref, c.active)
}

// compileWhere compiles the spec's filter clauses into a WHERE fragment
// (without the keyword) and its parameters. Clauses combine with AND in
// spec order. Returns ("", nil, nil) for an unfiltered query.
func (c *compiler) compileWhere(filters []queryspec.FilterClause) (string, []any, error) {
	var parts []string
	var args []any

	for _, f := range filters {
		sql, clauseArgs, err := c.compileFilter(f)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		args = append(args, clauseArgs...)
	}

	return strings.Join(parts, " AND "), args, nil
}

func (c *compiler) compileFilter(f queryspec.FilterClause) (string, []any, error) {
	switch clause := f.(type) {
	case queryspec.Equals:
		return c.compileComparison(clause.Field, clause.Value, false)
	case queryspec.NotEquals:
		return c.compileComparison(clause.Field, clause.Value, true)
	case queryspec.In:
		return c.compileMembership(clause.Field, clause.Values, false)
	case queryspec.NotIn:
		return c.compileMembership(clause.Field, clause.Values, true)
	case queryspec.NumericRange:
		return c.compileNumericRange(clause)
	case queryspec.TimeRange:
		return c.compileTimeRange(clause)
	case queryspec.DateMatch:
		return c.compileDateMatch(clause)
	case queryspec.Search:
		return c.compileSearch(clause)
	case queryspec.MetaFilter:
		return c.compileMetaClause(clause.Query)
	default:
		return "", nil, &queryspec.ValidationError{
			Code:    queryspec.ErrCodeBadFilter,
			Message: fmt.Sprintf("unknown filter clause type %T", f),
		}
	}
}

// compileComparison handles Equals/NotEquals, including NULL comparison and
// the meta-store fallback for non-schema field names.
func (c *compiler) compileComparison(field string, value any, negate bool) (string, []any, error) {
	rf, err := c.resolve(field)
	if err != nil {
		if meta, ok := c.metaFallback(field, err); ok {
			op := queryspec.MetaEq
			if negate {
				op = queryspec.MetaNeq
			}
			return c.compileMetaClause(queryspec.MetaCompare{Key: meta, Op: op, Value: value})
		}
		return "", nil, err
	}

	if value == nil {
		if negate {
			return rf.Qualified + " IS NOT NULL", nil, nil
		}
		return rf.Qualified + " IS NULL", nil, nil
	}

	op := "="
	if negate {
		op = "<>"
	}
	return fmt.Sprintf("%s %s ?", rf.Qualified, op), []any{value}, nil
}

func (c *compiler) compileMembership(field string, values []any, negate bool) (string, []any, error) {
	rf, err := c.resolve(field)
	if err != nil {
		if meta, ok := c.metaFallback(field, err); ok {
			op := queryspec.MetaIn
			if negate {
				op = queryspec.MetaNotIn
			}
			return c.compileMetaClause(queryspec.MetaCompare{Key: meta, Op: op, Value: values})
		}
		return "", nil, err
	}

	// Empty sets have fixed truth values rather than invalid SQL.
	if len(values) == 0 {
		if negate {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil
	}

	op := "IN"
	if negate {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", rf.Qualified, op, placeholders(len(values))), values, nil
}

func (c *compiler) compileNumericRange(clause queryspec.NumericRange) (string, []any, error) {
	rf, err := c.resolve(clause.Field)
	if err != nil {
		return "", nil, err
	}

	var parts []string
	var args []any
	if clause.Min != nil {
		parts = append(parts, rf.Qualified+" >= ?")
		args = append(args, clause.Min)
	}
	if clause.Max != nil {
		parts = append(parts, rf.Qualified+" <= ?")
		args = append(args, clause.Max)
	}
	return strings.Join(parts, " AND "), args, nil
}

// compileTimeRange compiles datetime bounds. Bounds are inclusive by
// default; Strict switches both present bounds to > / <.
func (c *compiler) compileTimeRange(clause queryspec.TimeRange) (string, []any, error) {
	rf, err := c.resolve(clause.Field)
	if err != nil {
		return "", nil, err
	}

	lower, upper := ">=", "<="
	if clause.Strict {
		lower, upper = ">", "<"
	}

	var parts []string
	var args []any
	if clause.After != nil {
		parts = append(parts, fmt.Sprintf("%s %s ?", rf.Qualified, lower))
		args = append(args, clause.After)
	}
	if clause.Before != nil {
		parts = append(parts, fmt.Sprintf("%s %s ?", rf.Qualified, upper))
		args = append(args, clause.Before)
	}
	return strings.Join(parts, " AND "), args, nil
}

// compileDateMatch matches calendar components of the stored, timezone-
// normalized datetime text.
func (c *compiler) compileDateMatch(clause queryspec.DateMatch) (string, []any, error) {
	rf, err := c.resolve(clause.Field)
	if err != nil {
		return "", nil, err
	}

	var parts []string
	var args []any
	component := func(format string, value int) {
		parts = append(parts, fmt.Sprintf("CAST(strftime('%s', %s) AS INTEGER) = ?", format, rf.Qualified))
		args = append(args, value)
	}
	if clause.Year != 0 {
		component("%Y", clause.Year)
	}
	if clause.Month != 0 {
		component("%m", clause.Month)
	}
	if clause.Day != 0 {
		component("%d", clause.Day)
	}
	return strings.Join(parts, " AND "), args, nil
}

// compileSearch OR-combines LIKE '%term%' across the schema's searchable
// properties, or across the explicitly named columns. The term is
// NFC-normalized so composed and decomposed input match the stored form,
// and LIKE wildcards in the term are escaped.
func (c *compiler) compileSearch(clause queryspec.Search) (string, []any, error) {
	columns := clause.Columns
	if len(columns) == 0 {
		columns = c.base.Searchable
		if len(columns) == 0 {
			return "", nil, &queryspec.ValidationError{
				Code:    queryspec.ErrCodeBadFilter,
				Message: fmt.Sprintf("collection %q has no searchable properties and no search columns were given", c.base.Name),
			}
		}
	}

	term := "%" + escapeLike(norm.NFC.String(clause.Term)) + "%"

	parts := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, col := range columns {
		rf, err := c.resolve(col)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, rf.Qualified+` LIKE ? ESCAPE '\'`)
		args = append(args, term)
	}

	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args, nil
}

// compileMetaClause compiles a meta-filter tree. Every compare node becomes
// its own EXISTS subquery against the metadata store, so AND over two keys
// matches records carrying both entries (the store is multi-valued: one row
// per value).
func (c *compiler) compileMetaClause(m queryspec.MetaClause) (string, []any, error) {
	if !c.base.MetaEnabled {
		return "", nil, &queryspec.ValidationError{
			Code:    queryspec.ErrCodeBadFilter,
			Message: fmt.Sprintf("collection %q has no metadata store", c.base.Name),
		}
	}
	return c.compileMetaNode(m)
}

func (c *compiler) compileMetaNode(m queryspec.MetaClause) (string, []any, error) {
	switch node := m.(type) {
	case queryspec.MetaCompare:
		return c.compileMetaCompare(node)
	case queryspec.MetaGroup:
		parts := make([]string, 0, len(node.Nodes))
		var args []any
		for _, child := range node.Nodes {
			sql, childArgs, err := c.compileMetaNode(child)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, childArgs...)
		}
		if len(parts) == 1 {
			return parts[0], args, nil
		}
		return "(" + strings.Join(parts, " "+string(node.Relation)+" ") + ")", args, nil
	default:
		return "", nil, &queryspec.ValidationError{
			Code:    queryspec.ErrCodeBadFilter,
			Message: fmt.Sprintf("unknown meta clause type %T", m),
		}
	}
}

func (c *compiler) compileMetaCompare(node queryspec.MetaCompare) (string, []any, error) {
	pk := schema.QualifyColumn(c.base.Table, c.base.PrimaryKey)
	prefix := fmt.Sprintf(
		`EXISTS (SELECT 1 FROM %s AS "mv" WHERE "mv"."record_id" = %s AND "mv"."meta_key" = ? AND "mv"."meta_value"`,
		schema.QuoteIdent(MetaTable), pk)

	switch node.Op {
	case queryspec.MetaEq, queryspec.MetaNeq, queryspec.MetaLike:
		op := string(node.Op)
		if node.Op == queryspec.MetaNeq {
			op = "<>"
		}
		return fmt.Sprintf("%s %s ?)", prefix, op), []any{node.Key, node.Value}, nil
	case queryspec.MetaIn, queryspec.MetaNotIn:
		values, ok := node.Value.([]any)
		if !ok {
			return "", nil, &queryspec.ValidationError{
				Code:    queryspec.ErrCodeBadFilter,
				Message: "meta IN/NOT IN requires a value list",
				Field:   node.Key,
			}
		}
		if len(values) == 0 {
			if node.Op == queryspec.MetaNotIn {
				return "1 = 1", nil, nil
			}
			return "1 = 0", nil, nil
		}
		args := append([]any{node.Key}, values...)
		return fmt.Sprintf("%s %s (%s))", prefix, node.Op, placeholders(len(values))), args, nil
	default:
		return "", nil, &queryspec.ValidationError{
			Code:    queryspec.ErrCodeBadFilter,
			Message: fmt.Sprintf("unknown meta operator %q", node.Op),
			Field:   node.Key,
		}
	}
}

// metaFallback decides whether an unresolved filter field routes to the
// metadata store: only bare (unaliased) names on meta-enabled collections.
// Aliased references and schema errors other than UNKNOWN_FIELD re-surface.
func (c *compiler) metaFallback(field string, err error) (string, bool) {
	if !c.base.MetaEnabled {
		return "", false
	}
	se, ok := err.(*schema.SchemaError)
	if !ok || se.Code != schema.ErrCodeUnknownField || se.Join != "" {
		return "", false
	}
	if _, rest := schema.SplitRef(field); rest != "" {
		return "", false
	}
	return field, true
}

// escapeLike escapes LIKE wildcards and the escape character itself.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
