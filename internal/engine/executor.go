package engine

import (
	"context"
	"database/sql"

	"github.com/roach88/quarry/internal/querysql"
)

// execute runs a plan's statements against the storage handle and shapes
// the outcome. The count variant is independent of the main statement and
// shares none of its state; when both are present, either both succeed or
// the whole call fails - a failing count never resolves to zero.
func (e *Engine) execute(ctx context.Context, plan *querysql.Plan) (*Result, error) {
	result := &Result{Mode: plan.Mode}

	if plan.Mode == querysql.ModeCount {
		count, err := e.runCount(ctx, plan)
		if err != nil {
			return nil, err
		}
		result.Count = count
		return result, nil
	}

	rawRows, err := e.runRows(ctx, plan)
	if err != nil {
		return nil, err
	}

	if err := e.shape(plan, rawRows, result); err != nil {
		return nil, err
	}

	if plan.CountSQL != "" {
		total, err := e.runCount(ctx, plan)
		if err != nil {
			return nil, err
		}
		result.Total = &total
	}

	return result, nil
}

// runRows executes the main statement and scans every row into a generic
// column → value map.
func (e *Engine) runRows(ctx context.Context, plan *querysql.Plan) ([]map[string]any, error) {
	rows, err := e.storage.Query(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, &StorageError{Op: "query", Collection: plan.Collection, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &StorageError{Op: "scan", Collection: plan.Collection, Err: err}
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &StorageError{Op: "scan", Collection: plan.Collection, Err: err}
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "scan", Collection: plan.Collection, Err: err}
	}

	return out, nil
}

// runCount executes the count variant and scans its single integer.
func (e *Engine) runCount(ctx context.Context, plan *querysql.Plan) (int64, error) {
	rows, err := e.storage.Query(ctx, plan.CountSQL, plan.CountArgs...)
	if err != nil {
		return 0, &StorageError{Op: "count", Collection: plan.Collection, Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, &StorageError{Op: "count", Collection: plan.Collection, Err: err}
		}
		return 0, &StorageError{Op: "count", Collection: plan.Collection, Err: sql.ErrNoRows}
	}

	var count int64
	if err := rows.Scan(&count); err != nil {
		return 0, &StorageError{Op: "count", Collection: plan.Collection, Err: err}
	}
	if err := rows.Err(); err != nil {
		return 0, &StorageError{Op: "count", Collection: plan.Collection, Err: err}
	}
	return count, nil
}

// normalizeValue maps driver values to plain Go types; []byte columns
// become strings so results are comparable and JSON-friendly.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
