// Package engine executes compiled query plans and shapes their results.
//
// The Engine is the orchestrating facade over the schema registry, the SQL
// builder, an injected storage handle and the record hydrator. Each call is
// stateless: specs are read-only inputs, plans and results are built per
// call, and two concurrent queries never interfere. The only suspension
// point is the storage handle itself; the engine adds no retry, timeout or
// cancellation logic beyond honoring the caller's context.
package engine

import (
	"context"
	"database/sql"

	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/querysql"
	"github.com/roach88/quarry/internal/record"
	"github.com/roach88/quarry/internal/schema"
)

// Storage is the injected storage handle. Connection lifecycle, pooling,
// retries and timeouts are the caller's concern.
type Storage interface {
	// Query executes parameterized SQL and returns the resulting rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Hydrator builds a domain record from a raw row.
type Hydrator interface {
	Hydrate(collection string, row map[string]any) (*record.Record, error)
}

// Engine compiles and runs queries against one registry and one storage
// handle. Safe for concurrent use.
type Engine struct {
	reg          *schema.Registry
	builder      *querysql.Builder
	storage      Storage
	hydrator     Hydrator
	interceptors []Interceptor
}

// Option configures an Engine.
type Option func(*Engine)

// WithHydrator replaces the default record hydrator.
func WithHydrator(h Hydrator) Option {
	return func(e *Engine) { e.hydrator = h }
}

// WithInterceptors appends interceptors, consulted in order at each
// pipeline stage.
func WithInterceptors(ics ...Interceptor) Option {
	return func(e *Engine) { e.interceptors = append(e.interceptors, ics...) }
}

// New creates an Engine over the given registry and storage handle.
func New(reg *schema.Registry, storage Storage, opts ...Option) *Engine {
	e := &Engine{
		reg:     reg,
		builder: querysql.NewBuilder(reg),
		storage: storage,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.hydrator == nil {
		pks := make(map[string]string)
		for _, name := range reg.Names() {
			if cs, err := reg.Collection(name); err == nil {
				pks[name] = cs.PrimaryKey
			}
		}
		e.hydrator = record.NewHydrator(pks)
	}
	return e
}

// Query compiles and executes one spec against a collection.
//
// Build-phase failures (schema or validation) return before any storage
// invocation. When the spec requests a total alongside rows, both
// statements must succeed: a failing count fails the whole call rather
// than resolving to zero.
func (e *Engine) Query(ctx context.Context, collection string, spec queryspec.Spec) (*Result, error) {
	if err := e.runPreValidate(ctx, collection, spec); err != nil {
		return nil, err
	}

	plan, err := e.builder.Build(collection, spec)
	if err != nil {
		return nil, err
	}

	if err := e.runPostBuild(ctx, plan); err != nil {
		return nil, err
	}

	result, err := e.execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	if err := e.runPostExecute(ctx, plan, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns only the number of matching rows. The spec's field
// selection, sort and pagination are ignored.
func (e *Engine) Count(ctx context.Context, collection string, spec queryspec.Spec) (int64, error) {
	spec.CountOnly = true
	spec.WithTotal = false

	result, err := e.Query(ctx, collection, spec)
	if err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Aggregate runs an aggregate-mode spec and returns its rows, one map per
// GROUP BY bucket (a single map when there is no group-by).
func (e *Engine) Aggregate(ctx context.Context, collection string, spec queryspec.Spec) ([]map[string]any, error) {
	if len(spec.Aggregates) == 0 {
		return nil, &queryspec.ValidationError{
			Code:    queryspec.ErrCodeBadAggregate,
			Message: "Aggregate requires at least one aggregate clause",
		}
	}

	result, err := e.Query(ctx, collection, spec)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}
