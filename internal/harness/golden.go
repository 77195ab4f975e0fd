package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/quarry/internal/queryspec"
	"github.com/roach88/quarry/internal/querysql"
	"github.com/roach88/quarry/internal/schema"
)

// PlanSnapshot is the serialized form of a compiled plan for golden
// comparison. Field order is fixed by the struct so serialization is
// deterministic.
type PlanSnapshot struct {
	Collection string `json:"collection"`
	SQL        string `json:"sql,omitempty"`
	Args       []any  `json:"args,omitempty"`
	CountSQL   string `json:"count_sql,omitempty"`
	CountArgs  []any  `json:"count_args,omitempty"`
}

// AssertGoldenSQL compiles a map-form query and compares the generated
// SQL against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGoldenSQL(t *testing.T, name string, reg *schema.Registry, collection string, query map[string]any) {
	t.Helper()

	spec, err := queryspec.ParseMap(query)
	if err != nil {
		t.Fatalf("parsing query for %s: %v", name, err)
	}

	plan, err := querysql.NewBuilder(reg).Build(collection, spec)
	if err != nil {
		t.Fatalf("building plan for %s: %v", name, err)
	}

	snapshot := PlanSnapshot{
		Collection: plan.Collection,
		SQL:        plan.SQL,
		Args:       plan.Args,
		CountSQL:   plan.CountSQL,
		CountArgs:  plan.CountArgs,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshaling snapshot for %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
