package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/quarry/internal/schema"
)

// LoadMode controls how errors are handled during schema loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading collection schemas from a
// directory of CUE files.
type LoadResult struct {
	Registry  *schema.Registry
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	// Collection schema errors
	ErrCodeBadCollection = "E101" // Collection definition failed registration
	ErrCodeBadProperty   = "E102" // Malformed property definition
	ErrCodeBadJoin       = "E103" // Malformed join definition

	// Query spec errors
	ErrCodeBadSpec     = "E110" // Query spec failed parsing/validation
	ErrCodeQueryFailed = "E111" // Query execution failed
)

// cueProperty mirrors one property entry in a CUE collection file.
type cueProperty struct {
	Type     string   `json:"type"`
	Nullable bool     `json:"nullable"`
	Default  any      `json:"default"`
	Enum     []string `json:"enum"`
}

// cueJoin mirrors one join entry in a CUE collection file.
type cueJoin struct {
	Target  string `json:"target"`
	Local   string `json:"local"`
	Foreign string `json:"foreign"`
	Kind    string `json:"kind"`
}

// cueCollection mirrors one collection in a CUE schema file:
//
//	collection: orders: {
//	    table:      "orders"
//	    primaryKey: "id"
//	    properties: { id: {type: "int"}, ... }
//	    joins:      { u: {target: "users", local: "user_id", foreign: "id", kind: "INNER"} }
//	    searchable: ["status"]
//	    meta:       true
//	}
type cueCollection struct {
	Table      string   `json:"table"`
	PrimaryKey string   `json:"primaryKey"`
	Searchable []string `json:"searchable"`
	Meta       bool     `json:"meta"`
}

// LoadCollections loads collection schemas from a directory of CUE files
// and registers them into a fresh registry.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadCollections(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		Registry:  schema.NewRegistry(),
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	collectionsVal := value.LookupPath(cue.ParsePath("collection"))
	if !collectionsVal.Exists() {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no collections found in schema files"})
		return result, errs
	}

	iter, iterErr := collectionsVal.Fields()
	if iterErr != nil {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating collections: %v", iterErr)})
		return result, errs
	}

	for iter.Next() {
		name := iter.Label()
		cs, convErrs := convertCollection(name, iter.Value())
		if len(convErrs) > 0 {
			errs = append(errs, convErrs...)
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		if err := result.Registry.Register(*cs); err != nil {
			errs = append(errs, &LoadError{
				Code:    ErrCodeBadCollection,
				Message: fmt.Sprintf("collection %q: %v", name, err),
			})
			if mode == LoadModeFailFast {
				return result, errs
			}
		}
	}

	if len(result.Registry.Names()) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no collections found in schema files"})
	}

	return result, errs
}

// convertCollection decodes one CUE collection value into a registry
// schema. Property and join declaration order is preserved.
func convertCollection(name string, v cue.Value) (*schema.CollectionSchema, []error) {
	var head cueCollection
	if err := v.Decode(&head); err != nil {
		return nil, []error{&LoadError{
			Code:    ErrCodeBadCollection,
			Message: fmt.Sprintf("collection %q: %v", name, err),
		}}
	}

	cs := &schema.CollectionSchema{
		Name:        name,
		Table:       head.Table,
		PrimaryKey:  head.PrimaryKey,
		Searchable:  head.Searchable,
		MetaEnabled: head.Meta,
	}
	if cs.Table == "" {
		cs.Table = name
	}

	var errs []error

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if propsVal.Exists() {
		iter, err := propsVal.Fields()
		if err != nil {
			errs = append(errs, &LoadError{
				Code:    ErrCodeBadProperty,
				Message: fmt.Sprintf("collection %q: iterating properties: %v", name, err),
			})
		} else {
			for iter.Next() {
				var p cueProperty
				propName := iter.Label()
				if err := iter.Value().Decode(&p); err != nil {
					errs = append(errs, &LoadError{
						Code:    ErrCodeBadProperty,
						Message: fmt.Sprintf("collection %q property %q: %v", name, propName, err),
					})
					continue
				}
				cs.Properties = append(cs.Properties, schema.PropertyDef{
					Name:     propName,
					Type:     schema.PropertyType(p.Type),
					Nullable: p.Nullable,
					Default:  p.Default,
					Enum:     p.Enum,
				})
			}
		}
	}

	joinsVal := v.LookupPath(cue.ParsePath("joins"))
	if joinsVal.Exists() {
		iter, err := joinsVal.Fields()
		if err != nil {
			errs = append(errs, &LoadError{
				Code:    ErrCodeBadJoin,
				Message: fmt.Sprintf("collection %q: iterating joins: %v", name, err),
			})
		} else {
			for iter.Next() {
				var j cueJoin
				alias := iter.Label()
				if err := iter.Value().Decode(&j); err != nil {
					errs = append(errs, &LoadError{
						Code:    ErrCodeBadJoin,
						Message: fmt.Sprintf("collection %q join %q: %v", name, alias, err),
					})
					continue
				}
				kind := schema.JoinKind(j.Kind)
				if j.Kind == "" {
					kind = schema.JoinInner
				}
				cs.Joins = append(cs.Joins, schema.JoinDef{
					Alias:         alias,
					Target:        j.Target,
					LocalColumn:   j.Local,
					ForeignColumn: j.Foreign,
					Kind:          kind,
				})
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return cs, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
