package harness

import (
	"context"
	"fmt"

	"github.com/roach88/quarry/internal/engine"
	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/querysql"
	"github.com/roach88/quarry/internal/schema"
)

// Result is the outcome of running one scenario.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool

	// Errors lists every expectation that failed. Empty if Pass is true.
	Errors []string

	// Output is the engine result, nil when the query failed.
	Output *engine.Result
}

// AddError records a failed expectation and marks the result failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run parses a scenario's query, executes it against the given registry
// and storage, and checks every expectation. Scenario execution itself
// never returns an error; failures are reported through the Result so a
// runner can present all of them.
func Run(ctx context.Context, s *Scenario, reg *schema.Registry, storage engine.Storage) *Result {
	result := &Result{Pass: true}

	spec, err := queryspec.ParseMap(s.Query)
	if err != nil {
		checkError(result, s, err)
		return result
	}

	e := engine.New(reg, storage)
	out, err := e.Query(ctx, s.Collection, spec)
	if err != nil {
		checkError(result, s, err)
		return result
	}
	if s.Expect.Error != "" {
		result.AddError("expected %s error, query succeeded", s.Expect.Error)
		return result
	}

	result.Output = out
	checkOutput(result, s, out)
	return result
}

// checkError matches a pipeline error against the scenario's expected
// failure class.
func checkError(result *Result, s *Scenario, err error) {
	if s.Expect.Error == "" {
		result.AddError("query failed: %v", err)
		return
	}

	var class string
	switch {
	case engine.IsSchemaError(err):
		class = "schema"
	case engine.IsValidationError(err):
		class = "validation"
	case engine.IsStorageError(err):
		class = "storage"
	default:
		class = "unknown"
	}
	if class != s.Expect.Error {
		result.AddError("expected %s error, got %s: %v", s.Expect.Error, class, err)
	}
}

// checkOutput matches an engine result against the scenario expectations.
func checkOutput(result *Result, s *Scenario, out *engine.Result) {
	rows := outputRows(out)

	if s.Expect.RowCount != nil && len(rows) != *s.Expect.RowCount {
		result.AddError("expected %d rows, got %d", *s.Expect.RowCount, len(rows))
	}

	if s.Expect.Rows != nil {
		if len(rows) != len(s.Expect.Rows) {
			result.AddError("expected %d rows, got %d", len(s.Expect.Rows), len(rows))
		} else {
			for i, want := range s.Expect.Rows {
				for key, wantVal := range want {
					got, ok := rows[i][key]
					if !ok {
						result.AddError("row %d: missing column %q", i, key)
						continue
					}
					if !valuesEqual(wantVal, got) {
						result.AddError("row %d column %q: expected %v, got %v", i, key, wantVal, got)
					}
				}
			}
		}
	}

	if s.Expect.Scalars != nil {
		if out.Mode != querysql.ModeScalars {
			result.AddError("expected scalar output")
		} else if len(out.Scalars) != len(s.Expect.Scalars) {
			result.AddError("expected %d scalars, got %d", len(s.Expect.Scalars), len(out.Scalars))
		} else {
			for i, want := range s.Expect.Scalars {
				if !valuesEqual(want, out.Scalars[i]) {
					result.AddError("scalar %d: expected %v, got %v", i, want, out.Scalars[i])
				}
			}
		}
	}

	if s.Expect.Count != nil {
		if out.Mode != querysql.ModeCount {
			result.AddError("expected count-only output")
		} else if out.Count != *s.Expect.Count {
			result.AddError("expected count %d, got %d", *s.Expect.Count, out.Count)
		}
	}

	if s.Expect.Total != nil {
		if out.Total == nil {
			result.AddError("expected total %d, none returned", *s.Expect.Total)
		} else if *out.Total != *s.Expect.Total {
			result.AddError("expected total %d, got %d", *s.Expect.Total, *out.Total)
		}
	}
}

// outputRows flattens any row-shaped output mode into comparable maps.
func outputRows(out *engine.Result) []map[string]any {
	switch out.Mode {
	case querysql.ModeRecords:
		rows := make([]map[string]any, 0, len(out.Records))
		for _, rec := range out.Records {
			rows = append(rows, rec.Fields)
		}
		return rows
	case querysql.ModeTuples:
		return out.Tuples
	case querysql.ModeAggregates:
		return out.Rows
	}
	return nil
}
