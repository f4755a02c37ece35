package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestEngine(cfg config.IndexerConfig) *Engine {
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	return NewEngine(cfg, metrics.New(prometheus.NewRegistry()))
}

func names(t *testing.T, e *Engine, q string) []string {
	t.Helper()
	res, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	out := make([]string, 0, len(res.Results))
	for _, r := range res.Results {
		out = append(out, r.DocID)
	}
	return out
}

func TestLoadPathsWholeFiles(t *testing.T) {
	dir := t.TempDir()
	d1 := writeFile(t, dir, "d1.txt", "the cat sat")
	d2 := writeFile(t, dir, "sub/d2.txt", "the cat")
	d3 := writeFile(t, dir, "sub/d3.txt", "the dog sat")

	e := newTestEngine(config.IndexerConfig{})
	n, err := e.LoadPaths(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, e.Stats().Documents)

	assert.ElementsMatch(t, []string{d1}, names(t, e, "cat && sat"))
	assert.ElementsMatch(t, []string{d1, d2, d3}, names(t, e, "cat || sat"))
	assert.ElementsMatch(t, []string{d2}, names(t, e, "cat &! sat"))

	doc, ok := e.Document(d3)
	require.True(t, ok)
	assert.Equal(t, 2, doc.Terms, "the stop word 'the' is not counted")
}

func TestLoadPathsSplitLines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lines.txt", "the cat sat\n\n   \nthe cat\nthe dog sat\n")

	e := newTestEngine(config.IndexerConfig{SplitLines: true})
	n, err := e.LoadPaths(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []string{path + ":1"}, names(t, e, "cat && sat"))
	assert.ElementsMatch(t, []string{path + ":4"}, names(t, e, "cat &! sat"))
	_, ok := e.Document(path + ":5")
	assert.True(t, ok)
}

func TestLoadPathsSkipsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "d.txt", "cat")

	e := newTestEngine(config.IndexerConfig{})
	n, err := e.LoadPaths(context.Background(), []string{path, path})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoadPathsMissing(t *testing.T) {
	e := newTestEngine(config.IndexerConfig{})
	_, err := e.LoadPaths(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMinTokenLength(t *testing.T) {
	e := newTestEngine(config.IndexerConfig{MinTokenLength: 4})
	require.NoError(t, e.IndexDocument("d", "cat sat kitten"))
	doc, _ := e.Document("d")
	assert.Equal(t, 1, doc.Terms)
	assert.Empty(t, names(t, e, "cat"))
	assert.Equal(t, []string{"d"}, names(t, e, "kitten"))
}

type fakeSource struct {
	docs [][2]string
	err  error
}

func (f fakeSource) Each(ctx context.Context, fn func(name, body string) error) error {
	for _, d := range f.docs {
		if err := fn(d[0], d[1]); err != nil {
			return err
		}
	}
	return f.err
}

func TestLoadSource(t *testing.T) {
	e := newTestEngine(config.IndexerConfig{})
	n, err := e.LoadSource(context.Background(), fakeSource{docs: [][2]string{
		{"a", "the cat sat"},
		{"b", "the cat"},
		{"a", "duplicate"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, names(t, e, "cat"))

	_, err = e.LoadSource(context.Background(), fakeSource{err: errors.New("connection reset")})
	assert.ErrorContains(t, err, "connection reset")
}

func TestSearchErrors(t *testing.T) {
	e := newTestEngine(config.IndexerConfig{})
	require.NoError(t, e.IndexDocument("d", "cat"))

	_, err := e.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrEmptyQuery)

	_, err = e.Search(context.Background(), "cat &&")
	assert.ErrorIs(t, err, apperrors.ErrSyntax)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Search(ctx, "cat")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchResultFields(t *testing.T) {
	e := newTestEngine(config.IndexerConfig{})
	require.NoError(t, e.IndexDocument("d1", "the cat sat"))
	require.NoError(t, e.IndexDocument("d2", "the cat"))

	res, err := e.Search(context.Background(), "CAT && dog")
	require.NoError(t, err)
	assert.Equal(t, "CAT && dog", res.Query)
	assert.Zero(t, res.TotalHits)
	assert.Equal(t, map[string]int{"cat": 2, "dog": 0}, res.TermStats)
}

func TestFingerprintNormalizes(t *testing.T) {
	e := newTestEngine(config.IndexerConfig{})
	tokensA, a := e.Fingerprint("Cat&&sat")
	tokensB, b := e.Fingerprint("  cat &&  SAT ")
	assert.Equal(t, tokensA, tokensB)
	assert.Equal(t, a, b)
	_, c := e.Fingerprint("cat || sat")
	assert.NotEqual(t, a, c)
}

func TestConcurrentSearch(t *testing.T) {
	e := newTestEngine(config.IndexerConfig{})
	require.NoError(t, e.IndexDocument("d1", "the cat sat"))
	require.NoError(t, e.IndexDocument("d2", "the cat"))

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			res, err := e.Search(context.Background(), "cat || sat")
			assert.NoError(t, err)
			assert.Equal(t, 2, res.TotalHits)
		})
	}
	wg.Wait()
}

func TestCloseReleasesNames(t *testing.T) {
	e := newTestEngine(config.IndexerConfig{})
	require.NoError(t, e.IndexDocument("d1", "cat"))
	require.NoError(t, e.IndexDocument("d2", "dog"))

	released := map[string]int{}
	e.Close(func(name string) { released[name]++ })
	assert.Equal(t, map[string]int{"d1": 1, "d2": 1}, released)
	assert.Zero(t, e.Stats().Documents)
}
