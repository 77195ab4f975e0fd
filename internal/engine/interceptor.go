package engine

import (
	"context"
	"fmt"

	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/querysql"
)

// Interceptor observes a query at fixed pipeline stages. Interceptors run
// in registration order; the first error aborts the call. Each hook gets
// read access to the in-progress artifacts and must not mutate them.
//
// Any nil hook is skipped, so an interceptor may subscribe to a single
// stage.
type Interceptor struct {
	// Name identifies the interceptor in error messages.
	Name string

	// PreValidate runs before the spec enters the build pipeline.
	PreValidate func(ctx context.Context, collection string, spec queryspec.Spec) error

	// PostBuild runs after compilation, before any SQL executes.
	PostBuild func(ctx context.Context, plan *querysql.Plan) error

	// PostExecute runs after both statements completed and the result is
	// shaped.
	PostExecute func(ctx context.Context, plan *querysql.Plan, result *Result) error
}

func (e *Engine) runPreValidate(ctx context.Context, collection string, spec queryspec.Spec) error {
	for _, ic := range e.interceptors {
		if ic.PreValidate == nil {
			continue
		}
		if err := ic.PreValidate(ctx, collection, spec); err != nil {
			return fmt.Errorf("interceptor %s (pre-validate): %w", ic.Name, err)
		}
	}
	return nil
}

func (e *Engine) runPostBuild(ctx context.Context, plan *querysql.Plan) error {
	for _, ic := range e.interceptors {
		if ic.PostBuild == nil {
			continue
		}
		if err := ic.PostBuild(ctx, plan); err != nil {
			return fmt.Errorf("interceptor %s (post-build): %w", ic.Name, err)
		}
	}
	return nil
}

func (e *Engine) runPostExecute(ctx context.Context, plan *querysql.Plan, result *Result) error {
	for _, ic := range e.interceptors {
		if ic.PostExecute == nil {
			continue
		}
		if err := ic.PostExecute(ctx, plan, result); err != nil {
			return fmt.Errorf("interceptor %s (post-execute): %w", ic.Name, err)
		}
	}
	return nil
}
