package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/polyscan/internal/aggregator"
	"github.com/dusk-indust/polyscan/internal/lang"
	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
	"github.com/dusk-indust/polyscan/internal/store"
)

func jsParsers() []*parser.Parser {
	return []*parser.Parser{parser.New(&lang.JavaScript{}, nil)}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewRunner_BadExcludePattern(t *testing.T) {
	_, err := NewRunner(jsParsers(), Options{Excludes: []string{"["}})
	require.Error(t, err)
}

func TestCollect_WalksFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.js"), "function b() {}\n")
	writeFile(t, filepath.Join(dir, "a.js"), "function a() {}\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "plain text\n")
	writeFile(t, filepath.Join(dir, "node_modules", "dep.js"), "function d() {}\n")

	r, err := NewRunner(jsParsers(), Options{Excludes: []string{"**/node_modules/**"}})
	require.NoError(t, err)

	// The explicit file duplicates one the walk finds.
	files, err := r.Collect([]string{dir, filepath.Join(dir, "a.js")})
	require.NoError(t, err)

	require.Len(t, files, 2, "txt skipped, node_modules excluded, duplicate collapsed")
	assert.Equal(t, filepath.Join(dir, "a.js"), files[0], "output is sorted")
	assert.Equal(t, filepath.Join(dir, "b.js"), files[1])
}

func TestCollect_MissingPathIsAnError(t *testing.T) {
	r, err := NewRunner(jsParsers(), Options{})
	require.NoError(t, err)

	_, err = r.Collect([]string{"no/such/path"})
	require.Error(t, err)
}

func TestRun_ParsesAndFansIn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.js"), "function main() {\n  helper();\n}\n")
	writeFile(t, filepath.Join(dir, "util.js"), "function helper() {\n  return 1;\n}\n")

	agg := aggregator.New(aggregator.Options{})
	st := store.NewMemStore()
	r, err := NewRunner(jsParsers(), Options{
		Jobs:       2,
		Aggregator: agg,
		Store:      st,
	})
	require.NoError(t, err)

	files, err := r.Collect([]string{dir})
	require.NoError(t, err)
	results, err := r.Run(context.Background(), files)
	require.NoError(t, err)

	require.Len(t, results, 2)
	for i, result := range results {
		require.NotNil(t, result)
		assert.Equal(t, files[i], result.Metadata.FilePath, "results keep input order")
		assert.NotEmpty(t, result.Components)
	}

	stats := agg.GetStatistics()
	assert.Greater(t, stats.TotalRelationships, 0, "relationships fan in to the aggregator")
	assert.Greater(t, stats.BySourceTag["structural:javascript"], 0,
		"the source tag carries pass level and language")

	comp, err := st.GetComponent(context.Background(), "app|function:main")
	require.NoError(t, err)
	require.NotNil(t, comp, "components fan in to the store")
	assert.Equal(t, "main", comp.Name)
}

func TestRun_SecondRunHitsCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.js")
	writeFile(t, path, "function main() {}\n")

	reporter := NewProgressReporter()
	r, err := NewRunner(jsParsers(), Options{Reporter: reporter})
	require.NoError(t, err)

	first, err := r.Run(context.Background(), []string{path})
	require.NoError(t, err)
	second, err := r.Run(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Same(t, first[0], second[0], "unchanged content reuses the cached result")

	reporter.Close()
	var sawCached bool
	for event := range reporter.Subscribe() {
		if event.Status == StatusCached {
			sawCached = true
		}
	}
	assert.True(t, sawCached)
}

func TestRun_MissingFileBecomesErrorResult(t *testing.T) {
	r, err := NewRunner(jsParsers(), Options{})
	require.NoError(t, err)

	results, err := r.Run(context.Background(), []string{"no/such/file.js"})
	require.NoError(t, err, "per-file failures never abort the batch")
	require.Len(t, results, 1)
	require.Len(t, results[0].Errors, 1)
	assert.Equal(t, model.CodeFileNotFound, results[0].Errors[0].Code)
}

func TestRun_UnclaimedFileBecomesErrorResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "plain text\n")

	reporter := NewProgressReporter()
	r, err := NewRunner(jsParsers(), Options{Reporter: reporter})
	require.NoError(t, err)

	// Callers may hand Run paths that never went through Collect.
	results, err := r.Run(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0])
	require.Len(t, results[0].Errors, 1)
	assert.Equal(t, model.CodeUnsupported, results[0].Errors[0].Code)

	reporter.Close()
	var sawFailed bool
	for event := range reporter.Subscribe() {
		if event.Status == StatusFailed {
			sawFailed = true
		}
	}
	assert.True(t, sawFailed)
}

func TestCacheKey_ChangesWithContent(t *testing.T) {
	a := cacheKey("f.js", []byte("one"))
	b := cacheKey("f.js", []byte("two"))
	c := cacheKey("g.js", []byte("one"))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFormatEvent(t *testing.T) {
	assert.Contains(t, FormatEvent(Event{FilePath: "a.js", Status: StatusComplete}), "✓")
	assert.Contains(t, FormatEvent(Event{FilePath: "a.js", Status: StatusFailed, Message: "boom"}), "boom")
}
