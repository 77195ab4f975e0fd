package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/querysql"
	"github.com/roach88/quarry/internal/testutil"
)

// setupTestEngine creates an engine over a seeded in-memory store.
func setupTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	s := testutil.NewSeededStore(t)
	return New(testutil.FixtureRegistry(), s, opts...)
}

// countingStorage counts Query invocations before delegating (or failing).
type countingStorage struct {
	inner Storage
	calls int
	fail  func(query string) error
}

func (c *countingStorage) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.calls++
	if c.fail != nil {
		if err := c.fail(query); err != nil {
			return nil, err
		}
	}
	if c.inner == nil {
		return nil, errors.New("no storage configured")
	}
	return c.inner.Query(ctx, query, args...)
}

func TestQuery_FullRecords(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		WhereEq("status", "paid").
		SortBy("id", false).
		Build()

	result, err := e.Query(context.Background(), "orders", spec)
	require.NoError(t, err)

	assert.Equal(t, querysql.ModeRecords, result.Mode)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "1", result.Records[0].ID)
	assert.Equal(t, "2", result.Records[1].ID)
	assert.Equal(t, "orders", result.Records[0].Collection)

	amount, ok := result.Records[0].Get("amount")
	require.True(t, ok)
	assert.Equal(t, 10.0, amount)
}

func TestQuery_NegatedEquality(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().WhereNot("status", "paid").Build()

	result, err := e.Query(context.Background(), "orders", spec)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "3", result.Records[0].ID)
}

func TestQuery_NullEquality(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().WhereEq("country", nil).Build()

	result, err := e.Query(context.Background(), "users", spec)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	name, _ := result.Records[0].Get("name")
	assert.Equal(t, "Carol", name)
}

func TestQuery_Scalars(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		Select("email").
		SortBy("id", false).
		Build()

	result, err := e.Query(context.Background(), "users", spec)
	require.NoError(t, err)

	assert.Equal(t, querysql.ModeScalars, result.Mode)
	assert.Equal(t, []any{"alice@example.com", "bob@example.com", "carol@example.com"}, result.Scalars)
}

func TestQuery_Tuples(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		Select("id", "status").
		SortBy("id", false).
		Build()

	result, err := e.Query(context.Background(), "orders", spec)
	require.NoError(t, err)

	assert.Equal(t, querysql.ModeTuples, result.Mode)
	require.Len(t, result.Tuples, 3)
	assert.Equal(t, map[string]any{"id": int64(1), "status": "paid"}, result.Tuples[0])
	assert.Equal(t, map[string]any{"id": int64(3), "status": "due"}, result.Tuples[2])
}

func TestQuery_JoinedTuples(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		Join("u").
		WhereEq("u.country", "de").
		Select("id", "u.email").
		Build()

	result, err := e.Query(context.Background(), "orders", spec)
	require.NoError(t, err)

	require.Len(t, result.Tuples, 1)
	assert.Equal(t, int64(2), result.Tuples[0]["id"])
	assert.Equal(t, "bob@example.com", result.Tuples[0]["u__email"])
}

func TestQuery_LeftCoercionKeepsUnmatchedRows(t *testing.T) {
	e := setupTestEngine(t)

	// items declares o as INNER; activating buyer (LEFT) coerces o to
	// LEFT, so item 5, whose order does not exist, must still come back
	// with NULLs in every joined column.
	spec := queryspec.New().
		Join("o", "buyer").
		Select("id", "sku", "o.status", "buyer.email").
		SortBy("id", false).
		Build()

	result, err := e.Query(context.Background(), "items", spec)
	require.NoError(t, err)
	require.Len(t, result.Tuples, 5)

	matched := result.Tuples[0]
	assert.Equal(t, int64(1), matched["id"])
	assert.Equal(t, "paid", matched["o__status"])
	assert.Equal(t, "alice@example.com", matched["buyer__email"])

	dangling := result.Tuples[4]
	assert.Equal(t, int64(5), dangling["id"])
	assert.Equal(t, "ghost", dangling["sku"])
	assert.Nil(t, dangling["o__status"])
	assert.Nil(t, dangling["buyer__email"])
}

func TestQuery_TimeRangeInclusiveByDefault(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		Where(queryspec.TimeRange{Field: "created_at", After: "2024-02-01 14:00:00"}).
		SortBy("id", false).
		Build()

	result, err := e.Query(context.Background(), "orders", spec)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "2", result.Records[0].ID)
	assert.Equal(t, "3", result.Records[1].ID)
}

func TestQuery_TimeRangeStrict(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		Where(queryspec.TimeRange{Field: "created_at", After: "2024-02-01 14:00:00", Strict: true}).
		Build()

	result, err := e.Query(context.Background(), "orders", spec)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "3", result.Records[0].ID)
}

func TestQuery_Search(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().Search("ali").Build()

	result, err := e.Query(context.Background(), "users", spec)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	name, _ := result.Records[0].Get("name")
	assert.Equal(t, "Alice", name)
}

func TestQuery_MetaCompare(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		Meta(queryspec.MetaCompare{Key: "priority", Op: queryspec.MetaEq, Value: "high"}).
		Build()

	result, err := e.Query(context.Background(), "orders", spec)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "1", result.Records[0].ID)
}

func TestQuery_MetaGroupOr(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		Meta(queryspec.MetaGroup{
			Relation: queryspec.MetaOr,
			Nodes: []queryspec.MetaClause{
				queryspec.MetaCompare{Key: "priority", Op: queryspec.MetaEq, Value: "low"},
				queryspec.MetaCompare{Key: "tag", Op: queryspec.MetaEq, Value: "gift"},
			},
		}).
		SortBy("id", false).
		Build()

	result, err := e.Query(context.Background(), "orders", spec)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "1", result.Records[0].ID)
	assert.Equal(t, "2", result.Records[1].ID)
}

func TestQuery_BareFieldRoutesToMeta(t *testing.T) {
	e := setupTestEngine(t)

	// "priority" is not a schema property of orders; with meta enabled the
	// bare filter routes to the meta store.
	spec := queryspec.New().WhereEq("priority", "high").Build()

	result, err := e.Query(context.Background(), "orders", spec)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "1", result.Records[0].ID)
}

func TestQuery_BareFieldWithoutMetaFails(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().WhereEq("priority", "high").Build()

	_, err := e.Query(context.Background(), "users", spec)
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestQuery_PaginationWithTotal(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().Paginate(1, 2).Build()
	spec.WithTotal = true

	result, err := e.Query(context.Background(), "orders", spec)
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	require.NotNil(t, result.Total)
	assert.Equal(t, int64(3), *result.Total)
	// Unsorted pagination gets a primary-key tiebreaker.
	assert.Equal(t, "1", result.Records[0].ID)
}

func TestAggregate_OverallSum(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		WhereEq("status", "paid").
		Aggregate(queryspec.SimpleAggregate{Field: "amount", Func: queryspec.FuncSum}).
		Build()

	rows, err := e.Aggregate(context.Background(), "orders", spec)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, 30.0, rows[0]["amount_sum"])
}

func TestAggregate_GroupByStatus(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		Aggregate(queryspec.SimpleAggregate{Field: "id", Func: queryspec.FuncCount, Alias: "n"}).
		GroupBy("status").
		SortBy("status", false).
		Build()

	rows, err := e.Aggregate(context.Background(), "orders", spec)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "due", rows[0]["status"])
	assert.Equal(t, int64(1), rows[0]["n"])
	assert.Equal(t, "paid", rows[1]["status"])
	assert.Equal(t, int64(2), rows[1]["n"])
}

func TestAggregate_MonthBucket(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		Aggregate(queryspec.SimpleAggregate{Field: "amount", Func: queryspec.FuncSum}).
		GroupByBucket("created_at", queryspec.BucketMonth).
		SortBy("cast_created_at", false).
		Build()

	rows, err := e.Aggregate(context.Background(), "orders", spec)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-01", rows[0]["cast_created_at"])
	assert.Equal(t, 10.0, rows[0]["amount_sum"])
	assert.Equal(t, "2024-02-01", rows[1]["cast_created_at"])
	assert.Equal(t, 25.0, rows[1]["amount_sum"])
}

func TestAggregate_CaseExpression(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		Aggregate(queryspec.CaseAggregate{
			Field: "status",
			Func:  queryspec.FuncCount,
			When: []queryspec.CaseBranch{
				{Match: "paid", Then: queryspec.CaseValue{Literal: 1}},
			},
			Alias: "paid_count",
		}).
		Build()

	rows, err := e.Aggregate(context.Background(), "orders", spec)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["paid_count"])
}

func TestAggregate_RequiresAggregates(t *testing.T) {
	e := setupTestEngine(t)

	_, err := e.Aggregate(context.Background(), "orders", queryspec.Spec{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestCount_IgnoresPagination(t *testing.T) {
	e := setupTestEngine(t)

	spec := queryspec.New().
		WhereEq("status", "paid").
		Paginate(1, 1).
		Build()

	count, err := e.Count(context.Background(), "orders", spec)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCount_DistinctUnderJoins(t *testing.T) {
	e := setupTestEngine(t)

	// Order 1 has two item lines; the count must not double it.
	spec := queryspec.New().Join("o").Build()

	count, err := e.Count(context.Background(), "items", spec)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestQuery_BuildErrorSkipsStorage(t *testing.T) {
	storage := &countingStorage{}
	e := New(testutil.FixtureRegistry(), storage)

	spec := queryspec.New().WhereEq("nope", 1).Build()

	_, err := e.Query(context.Background(), "users", spec)
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
	assert.Equal(t, 0, storage.calls, "build failures must not touch storage")
}

func TestQuery_UnknownCollection(t *testing.T) {
	storage := &countingStorage{}
	e := New(testutil.FixtureRegistry(), storage)

	_, err := e.Query(context.Background(), "ghosts", queryspec.Spec{})
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
	assert.Equal(t, 0, storage.calls)
}

func TestQuery_FailingCountFailsWholeCall(t *testing.T) {
	s := testutil.NewSeededStore(t)
	storage := &countingStorage{
		inner: s,
		fail: func(query string) error {
			if strings.Contains(query, "COUNT(") {
				return errors.New("count exploded")
			}
			return nil
		},
	}
	e := New(testutil.FixtureRegistry(), storage)

	spec := queryspec.New().Paginate(1, 2).Build()
	spec.WithTotal = true

	result, err := e.Query(context.Background(), "orders", spec)
	require.Error(t, err)
	assert.Nil(t, result, "a failing count must not resolve to partial results")
	assert.True(t, IsStorageError(err))
}

func TestQuery_StorageErrorWrapsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	storage := &countingStorage{fail: func(string) error { return cause }}
	e := New(testutil.FixtureRegistry(), storage)

	_, err := e.Query(context.Background(), "users", queryspec.Spec{})
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
	assert.True(t, errors.Is(err, cause))
}

func TestInterceptors_RunInOrder(t *testing.T) {
	var stages []string
	e := setupTestEngine(t, WithInterceptors(
		Interceptor{
			Name: "first",
			PreValidate: func(context.Context, string, queryspec.Spec) error {
				stages = append(stages, "first.pre")
				return nil
			},
			PostBuild: func(context.Context, *querysql.Plan) error {
				stages = append(stages, "first.build")
				return nil
			},
			PostExecute: func(context.Context, *querysql.Plan, *Result) error {
				stages = append(stages, "first.exec")
				return nil
			},
		},
		Interceptor{
			Name: "second",
			PreValidate: func(context.Context, string, queryspec.Spec) error {
				stages = append(stages, "second.pre")
				return nil
			},
		},
	))

	_, err := e.Query(context.Background(), "users", queryspec.Spec{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"first.pre", "second.pre",
		"first.build",
		"first.exec",
	}, stages)
}

func TestInterceptors_PostBuildErrorBlocksExecution(t *testing.T) {
	storage := &countingStorage{}
	e := New(testutil.FixtureRegistry(), storage, WithInterceptors(Interceptor{
		Name: "gate",
		PostBuild: func(context.Context, *querysql.Plan) error {
			return errors.New("denied")
		},
	}))

	_, err := e.Query(context.Background(), "users", queryspec.Spec{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gate")
	assert.Equal(t, 0, storage.calls)
}
