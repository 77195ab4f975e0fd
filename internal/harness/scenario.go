package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance test case: a query spec in map form,
// the collection it runs against, and the expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. Defaults to the file name
	// (without extension) when loaded from disk.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Collection is the registered collection name to query.
	Collection string `yaml:"collection"`

	// Query is the map-form query spec, exactly as an API caller would
	// send it.
	Query map[string]any `yaml:"query"`

	// Expect specifies the required outcome.
	Expect Expect `yaml:"expect"`
}

// Expect is the expected outcome of a scenario. Exactly one of the result
// fields should be set (Rows, Scalars, Count or Error); RowCount may
// accompany Rows or stand alone.
type Expect struct {
	// Rows are the expected result rows in order. Subset match per row:
	// only the listed keys are compared.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Scalars are the expected flat values, in order.
	Scalars []any `yaml:"scalars,omitempty"`

	// Count is the expected count for count-only queries.
	Count *int64 `yaml:"count,omitempty"`

	// Total is the expected count-variant total, when the query requests
	// one.
	Total *int64 `yaml:"total,omitempty"`

	// RowCount is the expected number of result rows, checked when Rows
	// is not given (or in addition to it).
	RowCount *int `yaml:"row_count,omitempty"`

	// Error names the expected failure class: "schema", "validation" or
	// "storage". When set, the query must fail and produce no result.
	Error string `yaml:"error,omitempty"`
}

// Validate checks scenario well-formedness before execution.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario missing name")
	}
	if s.Collection == "" {
		return fmt.Errorf("scenario %q: missing collection", s.Name)
	}
	if s.Expect.Error != "" {
		switch s.Expect.Error {
		case "schema", "validation", "storage":
		default:
			return fmt.Errorf("scenario %q: unknown error class %q", s.Name, s.Expect.Error)
		}
	}
	return nil
}

// LoadScenario reads and validates one scenario file. A missing name
// defaults to the file's base name.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenarios loads every .yaml scenario under dir, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var scenarios []*Scenario
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		s, err := LoadScenario(path)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Name < scenarios[j].Name })
	return scenarios, nil
}
