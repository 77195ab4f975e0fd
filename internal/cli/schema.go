package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewSchemaCommand creates the schema command group: validate and show.
func NewSchemaCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and validate collection schemas",
	}

	cmd.AddCommand(newSchemaValidateCommand(opts))
	cmd.AddCommand(newSchemaShowCommand(opts))

	return cmd
}

func newSchemaValidateCommand(opts *RootOptions) *cobra.Command {
	var schemasDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate CUE collection schemas",
		Long:  "Loads every CUE schema file in the directory and reports all registration errors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}

			result, errs := LoadCollections(schemasDir, LoadModeCollectAll)
			if result != nil {
				formatter.VerboseLog("scanned %d CUE file(s)", result.FileCount)
			}

			if len(errs) > 0 {
				details := make([]string, 0, len(errs))
				for _, e := range errs {
					details = append(details, e.Error())
				}
				formatter.Error(ErrCodeBadCollection,
					fmt.Sprintf("%d schema error(s)", len(errs)), details)
				return NewExitError(ExitFailure, "schema validation failed")
			}

			names := result.Registry.Names()
			if opts.Format == "json" {
				return formatter.Success(map[string]any{
					"collections": names,
					"files":       result.FileCount,
				})
			}
			return formatter.Success(fmt.Sprintf("OK: %d collection(s): %s",
				len(names), strings.Join(names, ", ")))
		},
	}

	cmd.Flags().StringVar(&schemasDir, "schemas", "./schemas", "directory of CUE schema files")
	return cmd
}

func newSchemaShowCommand(opts *RootOptions) *cobra.Command {
	var schemasDir string

	cmd := &cobra.Command{
		Use:   "show [collection]",
		Short: "Show a collection schema (or list all collections)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}

			result, errs := LoadCollections(schemasDir, LoadModeFailFast)
			if len(errs) > 0 {
				formatter.Error(ErrCodeBadCollection, errs[0].Error(), nil)
				return NewExitError(ExitCommandError, "schema load failed")
			}

			if len(args) == 0 {
				names := result.Registry.Names()
				if opts.Format == "json" {
					return formatter.Success(map[string]any{"collections": names})
				}
				return formatter.Success(strings.Join(names, "\n"))
			}

			cs, err := result.Registry.Collection(args[0])
			if err != nil {
				formatter.Error(ErrCodeBadCollection, err.Error(), nil)
				return NewExitError(ExitFailure, "unknown collection")
			}

			if opts.Format == "json" {
				return formatter.Success(cs)
			}
			out, err := yaml.Marshal(cs)
			if err != nil {
				return WrapExitError(ExitCommandError, "rendering schema", err)
			}
			return formatter.Success(string(out))
		},
	}

	cmd.Flags().StringVar(&schemasDir, "schemas", "./schemas", "directory of CUE schema files")
	return cmd
}
