package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/schema"
	"github.com/roach88/quarry/internal/testutil"
)

func newBuilder() *Builder {
	return NewBuilder(testutil.FixtureRegistry())
}

func TestBuild_EqualityFilter(t *testing.T) {
	plan, err := newBuilder().Build("orders", queryspec.New().
		WhereEq("status", "paid").
		Build())
	require.NoError(t, err)

	assert.Equal(t, ModeRecords, plan.Mode)
	assert.Equal(t, `SELECT "orders".* FROM "orders" WHERE "orders"."status" = ?`, plan.SQL)
	assert.Equal(t, []any{"paid"}, plan.Args)
	assert.Empty(t, plan.CountSQL, "count variant must be skipped when not requested")
}

func TestBuild_ValuesNeverInterpolated(t *testing.T) {
	plan, err := newBuilder().Build("orders", queryspec.New().
		WhereEq("status", "paid'; DROP TABLE orders; --").
		Build())
	require.NoError(t, err)

	assert.NotContains(t, plan.SQL, "DROP TABLE")
	assert.Equal(t, []any{"paid'; DROP TABLE orders; --"}, plan.Args)
}

func TestBuild_MembershipAndNegation(t *testing.T) {
	plan, err := newBuilder().Build("orders", queryspec.New().
		WhereIn("status", "paid", "due").
		WhereNot("amount", 0).
		Build())
	require.NoError(t, err)

	assert.Contains(t, plan.SQL, `"orders"."status" IN (?, ?)`)
	assert.Contains(t, plan.SQL, `"orders"."amount" <> ?`)
	assert.Equal(t, []any{"paid", "due", 0}, plan.Args)
}

func TestBuild_EmptyMembership(t *testing.T) {
	plan, err := newBuilder().Build("orders", queryspec.New().
		Where(queryspec.In{Field: "status"}).
		Build())
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "1 = 0")

	plan, err = newBuilder().Build("orders", queryspec.New().
		Where(queryspec.NotIn{Field: "status"}).
		Build())
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "1 = 1")
}

func TestBuild_NullComparison(t *testing.T) {
	plan, err := newBuilder().Build("users", queryspec.New().
		WhereEq("country", nil).
		WhereNot("email", nil).
		Build())
	require.NoError(t, err)

	assert.Contains(t, plan.SQL, `"users"."country" IS NULL`)
	assert.Contains(t, plan.SQL, `"users"."email" IS NOT NULL`)
	assert.Empty(t, plan.Args)
}

func TestBuild_NumericRange(t *testing.T) {
	plan, err := newBuilder().Build("orders", queryspec.New().
		WhereRange("amount", 10, 100).
		Build())
	require.NoError(t, err)

	assert.Contains(t, plan.SQL, `"orders"."amount" >= ? AND "orders"."amount" <= ?`)
	assert.Equal(t, []any{10, 100}, plan.Args)
}

func TestBuild_TimeRangeInclusivity(t *testing.T) {
	t.Run("inclusive by default", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Where(queryspec.TimeRange{Field: "created_at", After: "2026-01-01", Before: "2026-02-01"}).
			Build())
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, `"orders"."created_at" >= ?`)
		assert.Contains(t, plan.SQL, `"orders"."created_at" <= ?`)
	})

	t.Run("strict override", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Where(queryspec.TimeRange{Field: "created_at", After: "2026-01-01", Strict: true}).
			Build())
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, `"orders"."created_at" > ?`)
		assert.NotContains(t, plan.SQL, ">=")
	})
}

func TestBuild_DateMatch(t *testing.T) {
	plan, err := newBuilder().Build("orders", queryspec.New().
		Where(queryspec.DateMatch{Field: "created_at", Year: 2026, Month: 8}).
		Build())
	require.NoError(t, err)

	assert.Contains(t, plan.SQL, `CAST(strftime('%Y', "orders"."created_at") AS INTEGER) = ?`)
	assert.Contains(t, plan.SQL, `CAST(strftime('%m', "orders"."created_at") AS INTEGER) = ?`)
	assert.Equal(t, []any{2026, 8}, plan.Args)
}

func TestBuild_Search(t *testing.T) {
	t.Run("schema searchable set", func(t *testing.T) {
		plan, err := newBuilder().Build("users", queryspec.New().
			Search("ann").
			Build())
		require.NoError(t, err)

		assert.Contains(t, plan.SQL, `"users"."email" LIKE ? ESCAPE '\'`)
		assert.Contains(t, plan.SQL, `"users"."name" LIKE ? ESCAPE '\'`)
		assert.Contains(t, plan.SQL, " OR ")
		assert.Equal(t, []any{"%ann%", "%ann%"}, plan.Args)
	})

	t.Run("explicit columns", func(t *testing.T) {
		plan, err := newBuilder().Build("users", queryspec.New().
			Search("ann", "email").
			Build())
		require.NoError(t, err)

		assert.Contains(t, plan.SQL, `"users"."email" LIKE ?`)
		assert.NotContains(t, plan.SQL, `"users"."name"`)
	})

	t.Run("wildcards escaped", func(t *testing.T) {
		plan, err := newBuilder().Build("users", queryspec.New().
			Search("50%_off", "email").
			Build())
		require.NoError(t, err)
		assert.Equal(t, []any{`%50\%\_off%`}, plan.Args)
	})
}

func TestBuild_MetaFilters(t *testing.T) {
	t.Run("explicit tree", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Meta(queryspec.MetaGroup{
				Relation: queryspec.MetaOr,
				Nodes: []queryspec.MetaClause{
					queryspec.MetaCompare{Key: "color", Op: queryspec.MetaEq, Value: "red"},
					queryspec.MetaCompare{Key: "size", Op: queryspec.MetaIn, Value: []any{"s", "m"}},
				},
			}).
			Build())
		require.NoError(t, err)

		assert.Contains(t, plan.SQL, `EXISTS (SELECT 1 FROM "meta_values" AS "mv"`)
		assert.Contains(t, plan.SQL, `"mv"."record_id" = "orders"."id"`)
		assert.Contains(t, plan.SQL, " OR ")
		assert.Equal(t, []any{"color", "red", "size", "s", "m"}, plan.Args)
	})

	t.Run("non-schema field routes to meta store", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			WhereEq("gift_wrap", "yes").
			Build())
		require.NoError(t, err)

		assert.Contains(t, plan.SQL, `"mv"."meta_key" = ?`)
		assert.Equal(t, []any{"gift_wrap", "yes"}, plan.Args)
	})

	t.Run("meta filter without meta store fails", func(t *testing.T) {
		_, err := newBuilder().Build("users", queryspec.New().
			WhereEq("gift_wrap", "yes").
			Build())
		require.Error(t, err)
		assert.True(t, schema.IsSchemaError(err))
	})
}

func TestBuild_Joins(t *testing.T) {
	t.Run("inner join", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Join("u").
			WhereEq("u.email", "a@b.c").
			Build())
		require.NoError(t, err)

		assert.Contains(t, plan.SQL, `INNER JOIN "users" AS "u" ON "orders"."user_id" = "u"."id"`)
		assert.Contains(t, plan.SQL, `"u"."email" = ?`)
	})

	t.Run("left coercion", func(t *testing.T) {
		// items declares o as INNER and buyer as LEFT; activating both
		// coerces o to LEFT as well.
		plan, err := newBuilder().Build("items", queryspec.New().
			Join("o", "buyer").
			Build())
		require.NoError(t, err)

		assert.Contains(t, plan.SQL, `LEFT JOIN "orders" AS "o"`)
		assert.Contains(t, plan.SQL, `LEFT JOIN "users" AS "buyer"`)
		assert.NotContains(t, plan.SQL, "INNER JOIN")

		for _, j := range plan.Joins {
			assert.Equal(t, schema.JoinLeft, j.Kind)
		}
	})

	t.Run("join on a join", func(t *testing.T) {
		plan, err := newBuilder().Build("items", queryspec.New().
			Join("o", "buyer").
			Build())
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, `ON "o"."user_id" = "buyer"."id"`)
	})

	t.Run("chained join without prerequisite fails", func(t *testing.T) {
		_, err := newBuilder().Build("items", queryspec.New().
			Join("buyer").
			Build())
		require.Error(t, err)
		se := err.(*schema.SchemaError)
		assert.Equal(t, schema.ErrCodeInactiveJoin, se.Code)
	})

	t.Run("undeclared join fails", func(t *testing.T) {
		_, err := newBuilder().Build("orders", queryspec.New().
			Join("ghost").
			Build())
		require.Error(t, err)
		assert.Equal(t, schema.ErrCodeUnknownJoin, err.(*schema.SchemaError).Code)
	})

	t.Run("inactive join reference fails", func(t *testing.T) {
		_, err := newBuilder().Build("orders", queryspec.New().
			WhereEq("u.email", "a@b.c").
			Build())
		require.Error(t, err)
		assert.Equal(t, schema.ErrCodeInactiveJoin, err.(*schema.SchemaError).Code)
	})
}

func TestBuild_FieldSelection(t *testing.T) {
	t.Run("tuples", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Select("id", "status").
			Build())
		require.NoError(t, err)

		assert.Equal(t, ModeTuples, plan.Mode)
		assert.Equal(t, `SELECT "orders"."id" AS "id", "orders"."status" AS "status" FROM "orders"`, plan.SQL)
		assert.Equal(t, []string{"id", "status"}, plan.Columns)
	})

	t.Run("scalar", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Select("amount").
			Build())
		require.NoError(t, err)
		assert.Equal(t, ModeScalars, plan.Mode)
	})

	t.Run("joined field output name", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Join("u").
			Select("id", "u.email").
			Build())
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, `"u"."email" AS "u__email"`)
		assert.Equal(t, []string{"id", "u__email"}, plan.Columns)
	})
}

func TestBuild_Aggregates(t *testing.T) {
	t.Run("simple with default alias", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			WhereEq("status", "paid").
			Aggregate(queryspec.SimpleAggregate{Field: "amount", Func: queryspec.FuncSum}).
			Build())
		require.NoError(t, err)

		assert.Equal(t, ModeAggregates, plan.Mode)
		assert.Equal(t, `SELECT SUM("orders"."amount") AS "amount_sum" FROM "orders" WHERE "orders"."status" = ?`, plan.SQL)
		assert.Equal(t, []string{"amount_sum"}, plan.AggregateAliases)
	})

	t.Run("expression template", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Aggregate(queryspec.ExprAggregate{
				Field: "amount",
				Func:  queryspec.FuncAvg,
				Expr:  "ROUND({field} * 0.8, 2)",
				Alias: "net_avg",
			}).
			Build())
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, `AVG(ROUND("orders"."amount" * 0.8, 2)) AS "net_avg"`)
	})

	t.Run("case with math", func(t *testing.T) {
		elseVal := queryspec.CaseValue{Literal: 0}
		plan, err := newBuilder().Build("orders", queryspec.New().
			Aggregate(queryspec.CaseAggregate{
				Field: "status",
				Func:  queryspec.FuncSum,
				When: []queryspec.CaseBranch{
					{Match: "paid", Then: queryspec.CaseValue{Literal: 100}},
					{Match: "due", Then: queryspec.CaseValue{FieldRef: "amount"}},
				},
				Else:  &elseVal,
				Math:  &queryspec.MathOp{Op: "/", Operand: 100},
				Alias: "paid_share",
			}).
			Build())
		require.NoError(t, err)

		assert.Contains(t, plan.SQL,
			`(SUM(CASE "orders"."status" WHEN ? THEN ? WHEN ? THEN "orders"."amount" ELSE ? END) / 100) AS "paid_share"`)
		assert.Equal(t, []any{"paid", 100, "due", 0}, plan.Args)
	})

	t.Run("select args precede where args", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			WhereEq("status", "paid").
			Aggregate(queryspec.CaseAggregate{
				Field: "status",
				Func:  queryspec.FuncCount,
				When:  []queryspec.CaseBranch{{Match: "due", Then: queryspec.CaseValue{Literal: 1}}},
			}).
			Build())
		require.NoError(t, err)
		assert.Equal(t, []any{"due", 1, "paid"}, plan.Args)
	})

	t.Run("disallowed token aborts build", func(t *testing.T) {
		_, err := newBuilder().Build("orders", queryspec.New().
			Aggregate(queryspec.ExprAggregate{
				Field: "amount",
				Func:  queryspec.FuncSum,
				Expr:  "LOWER({field})",
			}).
			Build())
		require.Error(t, err)
		assert.True(t, queryspec.IsValidationError(err))
	})
}

func TestBuild_GroupByBuckets(t *testing.T) {
	plan, err := newBuilder().Build("orders", queryspec.New().
		Aggregate(queryspec.SimpleAggregate{Field: "amount", Func: queryspec.FuncSum}).
		GroupBy("status").
		GroupByBucket("created_at", queryspec.BucketDay).
		Build())
	require.NoError(t, err)

	assert.Contains(t, plan.SQL, `"orders"."status" AS "status"`)
	assert.Contains(t, plan.SQL, `date("orders"."created_at") AS "cast_created_at"`)
	assert.Contains(t, plan.SQL, `GROUP BY "orders"."status", date("orders"."created_at")`)
	assert.Equal(t, []string{"status", "cast_created_at"}, plan.GroupAliases)
}

func TestBucketExpr(t *testing.T) {
	col := `"orders"."created_at"`
	testCases := []struct {
		bucket queryspec.Bucket
		want   string
	}{
		{queryspec.BucketHour, `strftime('%Y-%m-%d %H:00:00', "orders"."created_at")`},
		{queryspec.BucketDay, `date("orders"."created_at")`},
		{queryspec.BucketWeek, `date("orders"."created_at", '-6 days', 'weekday 1')`},
		{queryspec.BucketMonth, `date("orders"."created_at", 'start of month')`},
		{queryspec.BucketYear, `date("orders"."created_at", 'start of year')`},
		{queryspec.BucketDayOfWeek, `(CAST(strftime('%w', "orders"."created_at") AS INTEGER) + 6) % 7`},
	}

	for _, tc := range testCases {
		got, err := bucketExpr(tc.bucket, col)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, string(tc.bucket))
	}
}

func TestBuild_OrderByAndPagination(t *testing.T) {
	t.Run("explicit sort", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			SortBy("created_at", true).
			SortBy("id", false).
			Paginate(2, 25).
			Build())
		require.NoError(t, err)

		assert.Contains(t, plan.SQL, `ORDER BY "orders"."created_at" DESC, "orders"."id" ASC`)
		assert.Contains(t, plan.SQL, "LIMIT 25 OFFSET 25")
	})

	t.Run("pagination without sort gets pk tiebreaker", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Paginate(1, 10).
			Build())
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, `ORDER BY "orders"."id" ASC LIMIT 10`)
	})

	t.Run("raw offset", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Offset(30).
			Build())
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, "LIMIT -1 OFFSET 30")
	})

	t.Run("aggregate sort by output alias", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Aggregate(queryspec.SimpleAggregate{Field: "amount", Func: queryspec.FuncSum}).
			GroupBy("status").
			SortBy("amount_sum", true).
			Build())
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, `ORDER BY "amount_sum" DESC`)
	})
}

func TestBuild_CountVariants(t *testing.T) {
	t.Run("count only", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			WhereEq("status", "paid").
			CountOnly().
			Build())
		require.NoError(t, err)

		assert.Equal(t, ModeCount, plan.Mode)
		assert.Empty(t, plan.SQL)
		assert.Equal(t, `SELECT COUNT(*) FROM "orders" WHERE "orders"."status" = ?`, plan.CountSQL)
		assert.Equal(t, []any{"paid"}, plan.CountArgs)
	})

	t.Run("count only ignores group_by", func(t *testing.T) {
		// A count never partitions by bucket: one total, no GROUP BY.
		plan, err := newBuilder().Build("orders", queryspec.New().
			WhereEq("status", "paid").
			GroupByBucket("created_at", queryspec.BucketMonth).
			CountOnly().
			Build())
		require.NoError(t, err)

		assert.Equal(t, ModeCount, plan.Mode)
		assert.Empty(t, plan.SQL)
		assert.Equal(t, `SELECT COUNT(*) FROM "orders" WHERE "orders"."status" = ?`, plan.CountSQL)
		assert.NotContains(t, plan.CountSQL, "GROUP BY")
	})

	t.Run("with total shares where and joins, strips order and limit", func(t *testing.T) {
		plan, err := newBuilder().Build("orders", queryspec.New().
			Join("u").
			WhereEq("status", "paid").
			SortBy("created_at", true).
			Paginate(1, 10).
			WithTotal().
			Build())
		require.NoError(t, err)

		assert.Contains(t, plan.CountSQL, `COUNT(DISTINCT "orders"."id")`)
		assert.Contains(t, plan.CountSQL, `INNER JOIN "users" AS "u"`)
		assert.Contains(t, plan.CountSQL, `WHERE "orders"."status" = ?`)
		assert.NotContains(t, plan.CountSQL, "ORDER BY")
		assert.NotContains(t, plan.CountSQL, "LIMIT")
	})
}

func TestBuild_SchemaErrors(t *testing.T) {
	builder := newBuilder()

	t.Run("unknown collection", func(t *testing.T) {
		_, err := builder.Build("ghosts", queryspec.New().Build())
		require.Error(t, err)
		assert.Equal(t, schema.ErrCodeUnknownCollection, err.(*schema.SchemaError).Code)
	})

	t.Run("unknown sort field", func(t *testing.T) {
		_, err := builder.Build("users", queryspec.New().SortBy("ghost", false).Build())
		require.Error(t, err)
		assert.True(t, schema.IsSchemaError(err))
	})

	t.Run("unknown aggregate field", func(t *testing.T) {
		_, err := builder.Build("users", queryspec.New().
			Aggregate(queryspec.SimpleAggregate{Field: "ghost", Func: queryspec.FuncSum}).
			Build())
		require.Error(t, err)
		assert.True(t, schema.IsSchemaError(err))
	})

	t.Run("unknown selected field", func(t *testing.T) {
		_, err := builder.Build("users", queryspec.New().Select("id", "ghost").Build())
		require.Error(t, err)
		assert.True(t, schema.IsSchemaError(err))
	})
}
