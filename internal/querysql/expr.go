package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/schema"
)

// compileAggregate compiles one aggregate clause into a SELECT fragment
// ("expr AS alias"), its parameters and its output alias.
//
// All literal values (CASE match values, branch literals) are
// parameterized. Expression templates have already passed the token
// whitelist during validation; compilation re-runs the check anyway so a
// hand-built Spec that skipped Validate cannot smuggle tokens through.
func (c *compiler) compileAggregate(a queryspec.AggregateClause) (string, []any, string, error) {
	alias := a.OutputAlias()
	if !schema.ValidIdentifier(alias) {
		return "", nil, "", &queryspec.ValidationError{
			Code:    queryspec.ErrCodeBadAggregate,
			Message: fmt.Sprintf("aggregate alias %q is not a valid identifier", alias),
		}
	}

	switch agg := a.(type) {
	case queryspec.SimpleAggregate:
		rf, err := c.resolve(agg.Field)
		if err != nil {
			return "", nil, "", err
		}
		sql := fmt.Sprintf("%s(%s) AS %s", agg.Func, rf.Qualified, schema.QuoteIdent(alias))
		return sql, nil, alias, nil

	case queryspec.ExprAggregate:
		if err := queryspec.CheckExpression(agg.Expr); err != nil {
			return "", nil, "", err
		}
		rf, err := c.resolve(agg.Field)
		if err != nil {
			return "", nil, "", err
		}
		expr := strings.ReplaceAll(agg.Expr, queryspec.Placeholder, rf.Qualified)
		sql := fmt.Sprintf("%s(%s) AS %s", agg.Func, expr, schema.QuoteIdent(alias))
		return sql, nil, alias, nil

	case queryspec.CaseAggregate:
		return c.compileCaseAggregate(agg, alias)

	default:
		return "", nil, "", &queryspec.ValidationError{
			Code:    queryspec.ErrCodeBadAggregate,
			Message: fmt.Sprintf("unknown aggregate clause type %T", a),
		}
	}
}

// compileCaseAggregate builds
//
//	Func(CASE field WHEN ? THEN value ... ELSE else END)
//
// optionally wrapped by the post-aggregate math step.
func (c *compiler) compileCaseAggregate(agg queryspec.CaseAggregate, alias string) (string, []any, string, error) {
	rf, err := c.resolve(agg.Field)
	if err != nil {
		return "", nil, "", err
	}

	var sb strings.Builder
	var args []any

	sb.WriteString(string(agg.Func))
	sb.WriteString("(CASE ")
	sb.WriteString(rf.Qualified)

	for _, branch := range agg.When {
		sb.WriteString(" WHEN ? THEN ")
		args = append(args, branch.Match)

		valueSQL, valueArgs, err := c.compileCaseValue(branch.Then)
		if err != nil {
			return "", nil, "", err
		}
		sb.WriteString(valueSQL)
		args = append(args, valueArgs...)
	}

	if agg.Else != nil {
		sb.WriteString(" ELSE ")
		valueSQL, valueArgs, err := c.compileCaseValue(*agg.Else)
		if err != nil {
			return "", nil, "", err
		}
		sb.WriteString(valueSQL)
		args = append(args, valueArgs...)
	}

	sb.WriteString(" END)")
	expr := sb.String()

	// Post-aggregate math wraps the whole aggregate. The operand is a
	// validated float, rendered as a numeric literal so the count variant
	// and golden SQL stay free of phantom parameters.
	if agg.Math != nil {
		expr = fmt.Sprintf("(%s %s %s)", expr, agg.Math.Op,
			strconv.FormatFloat(agg.Math.Operand, 'f', -1, 64))
	}

	return expr + " AS " + schema.QuoteIdent(alias), args, alias, nil
}

func (c *compiler) compileCaseValue(v queryspec.CaseValue) (string, []any, error) {
	if v.FieldRef != "" {
		rf, err := c.resolve(v.FieldRef)
		if err != nil {
			return "", nil, err
		}
		return rf.Qualified, nil, nil
	}
	return "?", []any{v.Literal}, nil
}
