package engine

import (
	"github.com/roach88/quarry/internal/querysql"
	"github.com/roach88/quarry/internal/record"
)

// Result is the terminal output of one query. Exactly one of the payload
// fields is populated, selected by Mode. A Result is single-use: the
// engine never retains or reuses one.
type Result struct {
	// Mode says which payload field is populated.
	Mode querysql.ResultMode

	// Records holds hydrated records (ModeRecords).
	Records []*record.Record

	// Tuples holds ordered partial field maps (ModeTuples).
	Tuples []map[string]any

	// Scalars holds one column's values (ModeScalars).
	Scalars []any

	// Rows holds aggregate rows, one per GROUP BY bucket (ModeAggregates).
	Rows []map[string]any

	// Count holds the integer result of a count-only query (ModeCount).
	Count int64

	// Total holds the count-variant result when the spec requested a
	// total alongside rows; nil otherwise.
	Total *int64
}

// shape converts raw rows into the plan's requested output shape.
func (e *Engine) shape(plan *querysql.Plan, rawRows []map[string]any, result *Result) error {
	switch plan.Mode {
	case querysql.ModeRecords:
		result.Records = make([]*record.Record, 0, len(rawRows))
		for _, row := range rawRows {
			rec, err := e.hydrator.Hydrate(plan.Collection, row)
			if err != nil {
				return &StorageError{Op: "hydrate", Collection: plan.Collection, Err: err}
			}
			result.Records = append(result.Records, rec)
		}

	case querysql.ModeScalars:
		column := plan.Columns[0]
		result.Scalars = make([]any, 0, len(rawRows))
		for _, row := range rawRows {
			result.Scalars = append(result.Scalars, row[column])
		}

	case querysql.ModeTuples:
		// Rows already carry exactly the selected output columns.
		result.Tuples = rawRows

	case querysql.ModeAggregates:
		// Aggregate rows merge aggregate aliases, group keys (including
		// synthetic cast_ columns) and declared extra fields; with no
		// group-by the slice holds the single overall row.
		result.Rows = rawRows
	}

	return nil
}
