package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/schema"
)

// groupByResult is the output of the group-by stage: SELECT fragments for
// the group keys, the GROUP BY expressions, and the output aliases in
// declaration order.
type groupByResult struct {
	selects  []string
	groupBy  []string
	aliases  []string
	bucketed map[string]bool // alias → synthetic cast_ column
}

// compileGroupBy translates the group-by clauses. Plain fields pass through
// as GROUP BY keys and output aliases unchanged. Bucketed fields produce a
// derived truncation expression and the synthetic alias "cast_{field}"; the
// GROUP BY key is the truncation expression itself, so rows group by bucket
// rather than raw value.
//
// All truncations operate on the stored, timezone-normalized datetime text.
func (c *compiler) compileGroupBy(clauses []queryspec.GroupByClause) (*groupByResult, error) {
	res := &groupByResult{bucketed: make(map[string]bool)}

	for _, g := range clauses {
		rf, err := c.resolve(g.Field)
		if err != nil {
			return nil, err
		}

		if g.Bucket == queryspec.BucketNone {
			alias := outputName(g.Field)
			res.selects = append(res.selects, rf.Qualified+" AS "+schema.QuoteIdent(alias))
			res.groupBy = append(res.groupBy, rf.Qualified)
			res.aliases = append(res.aliases, alias)
			continue
		}

		expr, err := bucketExpr(g.Bucket, rf.Qualified)
		if err != nil {
			return nil, err
		}
		alias := "cast_" + outputName(g.Field)
		res.selects = append(res.selects, expr+" AS "+schema.QuoteIdent(alias))
		res.groupBy = append(res.groupBy, expr)
		res.aliases = append(res.aliases, alias)
		res.bucketed[alias] = true
	}

	return res, nil
}

// bucketExpr renders the SQLite truncation expression for a bucket.
//
//	hour         2026-08-24 13:00:00
//	day          2026-08-24
//	week         2026-08-24  (the Monday of the ISO week)
//	month        2026-08-01
//	year         2026-01-01
//	day_of_week  0..6, Monday = 0
func bucketExpr(b queryspec.Bucket, col string) (string, error) {
	switch b {
	case queryspec.BucketHour:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:00:00', %s)", col), nil
	case queryspec.BucketDay:
		return fmt.Sprintf("date(%s)", col), nil
	case queryspec.BucketWeek:
		// Shift back six days, then forward to the next Monday: lands on
		// the Monday of the column's own ISO week for every weekday.
		return fmt.Sprintf("date(%s, '-6 days', 'weekday 1')", col), nil
	case queryspec.BucketMonth:
		return fmt.Sprintf("date(%s, 'start of month')", col), nil
	case queryspec.BucketYear:
		return fmt.Sprintf("date(%s, 'start of year')", col), nil
	case queryspec.BucketDayOfWeek:
		// strftime('%w') is 0=Sunday; rotate so Monday is 0.
		return fmt.Sprintf("(CAST(strftime('%%w', %s) AS INTEGER) + 6) %% 7", col), nil
	default:
		return "", &queryspec.ValidationError{
			Code:    queryspec.ErrCodeBadGroupBy,
			Message: fmt.Sprintf("unknown bucket %q", b),
		}
	}
}

// outputName maps a field reference to its result column name: bare fields
// keep their name, joined references flatten to "alias__field".
func outputName(ref string) string {
	return strings.ReplaceAll(ref, ".", "__")
}
