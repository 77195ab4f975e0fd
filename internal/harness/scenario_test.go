package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, "basic.yaml", `
name: basic
collection: orders
query:
  status: paid
expect:
  row_count: 2
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "basic", s.Name)
	assert.Equal(t, "orders", s.Collection)
	assert.Equal(t, "paid", s.Query["status"])
	require.NotNil(t, s.Expect.RowCount)
	assert.Equal(t, 2, *s.Expect.RowCount)
}

func TestLoadScenario_NameDefaultsToFile(t *testing.T) {
	path := writeScenario(t, "from-filename.yaml", `
collection: orders
query: {}
expect:
  row_count: 3
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "from-filename", s.Name)
}

func TestLoadScenario_MissingCollection(t *testing.T) {
	path := writeScenario(t, "broken.yaml", `
name: broken
query: {}
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection")
}

func TestLoadScenario_UnknownErrorClass(t *testing.T) {
	path := writeScenario(t, "bad-class.yaml", `
name: bad-class
collection: orders
query: {}
expect:
  error: catastrophe
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catastrophe")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, "mangled.yaml", "query: [unclosed")

	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenarios_SortedByName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zeta", "alpha"} {
		content := "collection: orders\nquery: {}\nexpect:\n  row_count: 3\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644))
	}

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "alpha", scenarios[0].Name)
	assert.Equal(t, "zeta", scenarios[1].Name)
}

func TestLoadScenarios_IgnoresNonYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not yaml"), 0o644))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	assert.Empty(t, scenarios)
}
