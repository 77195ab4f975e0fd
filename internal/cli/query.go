package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/engine"
	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/querysql"
	"github.com/roach88/quarry/internal/store"
)

// queryFlags holds the flags shared by query and count.
type queryFlags struct {
	SchemasDir string
	DBPath     string
	SpecJSON   string
	SpecFile   string
	DryRun     bool
	Total      bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.SchemasDir, "schemas", "./schemas", "directory of CUE schema files")
	cmd.Flags().StringVar(&f.DBPath, "db", "", "path to the SQLite database")
	cmd.Flags().StringVar(&f.SpecJSON, "spec", "", "query spec as inline JSON")
	cmd.Flags().StringVar(&f.SpecFile, "spec-file", "", "path to a JSON query spec file")
}

// loadSpec reads the map-form spec from --spec or --spec-file and parses
// it into a structured query spec.
func (f *queryFlags) loadSpec() (queryspec.Spec, error) {
	raw := []byte(f.SpecJSON)
	if f.SpecFile != "" {
		data, err := os.ReadFile(f.SpecFile)
		if err != nil {
			return queryspec.Spec{}, WrapExitError(ExitCommandError, "reading spec file", err)
		}
		raw = data
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return queryspec.Spec{}, WrapExitError(ExitCommandError, "parsing spec JSON", err)
	}
	return queryspec.ParseMap(m)
}

// NewQueryCommand creates the query command: compile a spec against a
// collection and either execute it or print the generated SQL.
func NewQueryCommand(opts *RootOptions) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Run a declarative query against a collection",
		Long: `Compiles a map-form query spec into parameterized SQL and executes it.
With --dry-run the generated SQL and its arguments are printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			collection := args[0]

			result, errs := LoadCollections(flags.SchemasDir, LoadModeFailFast)
			if len(errs) > 0 {
				formatter.Error(ErrCodeBadCollection, errs[0].Error(), nil)
				return NewExitError(ExitCommandError, "schema load failed")
			}

			spec, err := flags.loadSpec()
			if err != nil {
				return outputQueryError(formatter, err)
			}
			if flags.Total {
				spec.WithTotal = true
			}

			if flags.DryRun {
				plan, err := querysql.NewBuilder(result.Registry).Build(collection, spec)
				if err != nil {
					return outputQueryError(formatter, err)
				}
				return outputPlan(formatter, plan)
			}

			if flags.DBPath == "" {
				formatter.Error(ErrCodeNotFound, "--db is required (or use --dry-run)", nil)
				return NewExitError(ExitCommandError, "missing database path")
			}
			s, err := store.Open(flags.DBPath)
			if err != nil {
				formatter.Error(ErrCodeNotFound, err.Error(), nil)
				return NewExitError(ExitCommandError, "opening database")
			}
			defer s.Close()

			e := engine.New(result.Registry, s)
			res, err := e.Query(cmd.Context(), collection, spec)
			if err != nil {
				return outputQueryError(formatter, err)
			}
			return outputResult(formatter, res)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "print generated SQL instead of executing")
	cmd.Flags().BoolVar(&flags.Total, "total", false, "include the total match count alongside rows")
	return cmd
}

// NewCountCommand creates the count command: the number of records
// matching a spec, ignoring field selection and pagination.
func NewCountCommand(opts *RootOptions) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count records matching a declarative query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			collection := args[0]

			result, errs := LoadCollections(flags.SchemasDir, LoadModeFailFast)
			if len(errs) > 0 {
				formatter.Error(ErrCodeBadCollection, errs[0].Error(), nil)
				return NewExitError(ExitCommandError, "schema load failed")
			}

			spec, err := flags.loadSpec()
			if err != nil {
				return outputQueryError(formatter, err)
			}

			if flags.DryRun {
				spec.CountOnly = true
				plan, err := querysql.NewBuilder(result.Registry).Build(collection, spec)
				if err != nil {
					return outputQueryError(formatter, err)
				}
				return outputPlan(formatter, plan)
			}

			if flags.DBPath == "" {
				formatter.Error(ErrCodeNotFound, "--db is required (or use --dry-run)", nil)
				return NewExitError(ExitCommandError, "missing database path")
			}
			s, err := store.Open(flags.DBPath)
			if err != nil {
				formatter.Error(ErrCodeNotFound, err.Error(), nil)
				return NewExitError(ExitCommandError, "opening database")
			}
			defer s.Close()

			e := engine.New(result.Registry, s)
			count, err := e.Count(cmd.Context(), collection, spec)
			if err != nil {
				return outputQueryError(formatter, err)
			}

			if opts.Format == "json" {
				return formatter.Success(map[string]any{"count": count})
			}
			return formatter.Success(count)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "print generated SQL instead of executing")
	return cmd
}

// outputPlan renders a compiled plan without executing it.
func outputPlan(formatter *OutputFormatter, plan *querysql.Plan) error {
	if formatter.Format == "json" {
		payload := map[string]any{
			"sql":  plan.SQL,
			"args": plan.Args,
		}
		if plan.CountSQL != "" {
			payload["count_sql"] = plan.CountSQL
			payload["count_args"] = plan.CountArgs
		}
		return formatter.Success(payload)
	}

	w := formatter.Writer
	if plan.SQL != "" {
		fmt.Fprintln(w, plan.SQL)
		fmt.Fprintf(w, "-- args: %v\n", plan.Args)
	}
	if plan.CountSQL != "" {
		fmt.Fprintln(w, plan.CountSQL)
		fmt.Fprintf(w, "-- args: %v\n", plan.CountArgs)
	}
	return nil
}

// outputResult renders an executed query result in the configured format.
func outputResult(formatter *OutputFormatter, res *engine.Result) error {
	var payload any
	switch res.Mode {
	case querysql.ModeRecords:
		rows := make([]map[string]any, 0, len(res.Records))
		for _, rec := range res.Records {
			rows = append(rows, rec.Fields)
		}
		payload = rows
	case querysql.ModeTuples:
		payload = res.Tuples
	case querysql.ModeScalars:
		payload = res.Scalars
	case querysql.ModeAggregates:
		payload = res.Rows
	case querysql.ModeCount:
		payload = res.Count
	}

	if formatter.Format == "json" {
		out := map[string]any{"rows": payload}
		if res.Total != nil {
			out["total"] = *res.Total
		}
		return formatter.Success(out)
	}

	// Text mode prints one JSON document per row for greppability.
	enc := json.NewEncoder(formatter.Writer)
	switch v := payload.(type) {
	case []map[string]any:
		for _, row := range v {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
	case []any:
		for _, s := range v {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
	default:
		fmt.Fprintln(formatter.Writer, payload)
	}
	if res.Total != nil {
		fmt.Fprintf(formatter.Writer, "-- total: %d\n", *res.Total)
	}
	return nil
}

// outputQueryError classifies a pipeline error into a CLI error code and
// exit status.
func outputQueryError(formatter *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		formatter.Error(ErrCodeGeneric, exitErr.Error(), nil)
		return exitErr
	}

	switch {
	case engine.IsSchemaError(err), engine.IsValidationError(err):
		formatter.Error(ErrCodeBadSpec, err.Error(), nil)
	case engine.IsStorageError(err):
		formatter.Error(ErrCodeQueryFailed, err.Error(), nil)
	default:
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
	}
	return NewExitError(ExitFailure, "query failed")
}
