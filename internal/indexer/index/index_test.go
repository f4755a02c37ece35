package index

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatIndex(t *testing.T) *Index {
	t.Helper()
	idx := New(nil, nil)
	require.NoError(t, idx.IndexDocument("doc1", []string{"cat", "sat"}))
	require.NoError(t, idx.IndexDocument("doc2", []string{"cat"}))
	return idx
}

func docIDs(results []ranker.ScoredDoc) []string {
	out := []string{}
	for _, r := range results {
		out = append(out, r.DocID)
	}
	return out
}

func TestIndexDocumentSkipsStopWords(t *testing.T) {
	idx := New(bytes.Compare, nil)
	require.NoError(t, idx.IndexDocument("doc1", []string{"the", "cat", "sat"}))

	assertCounts(t, idx, 1, 2)
	doc, ok := idx.Document("doc1")
	require.True(t, ok)
	assert.Equal(t, 2, doc.Terms)
	assert.Equal(t, 2, doc.DistinctTerms)

	_, ok = idx.TermDocs("the")
	assert.False(t, ok)
}

func TestIndexDocumentCounts(t *testing.T) {
	idx := New(nil, nil)
	require.NoError(t, idx.IndexDocument("a", []string{"cat", "cat", "dog", "of"}))
	require.NoError(t, idx.IndexDocument("b", []string{"dog", "emu"}))

	assertCounts(t, idx, 2, 3)
	assert.Equal(t, 2, idx.DocFrequency("dog"))
	assert.Equal(t, 1, idx.DocFrequency("cat"))
	assert.Equal(t, 0, idx.DocFrequency("of"))

	a, _ := idx.Document("a")
	assert.Equal(t, DocStats{Name: "a", Terms: 3, DistinctTerms: 2}, a)
	n, ok := idx.TermFrequency(docKey(0), "cat")
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestIndexDocumentRejects(t *testing.T) {
	idx := newCatIndex(t)

	err := idx.IndexDocument("", []string{"x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = idx.IndexDocument("doc1", []string{"dog"})
	assert.ErrorIs(t, err, apperrors.ErrDocumentExists)
	assertCounts(t, idx, 2, 2)
}

func TestIndexDocumentOnlyStopWords(t *testing.T) {
	idx := New(nil, nil)
	require.NoError(t, idx.IndexDocument("empty", []string{"the", "and"}))
	require.NoError(t, idx.IndexDocument("none", nil))
	assertCounts(t, idx, 2, 0)
	doc, ok := idx.Document("empty")
	require.True(t, ok)
	assert.Zero(t, doc.Terms)
}

func TestQueryBoolean(t *testing.T) {
	idx := newCatIndex(t)
	tests := []struct {
		query []string
		want  []string
	}{
		{[]string{"cat", "&&", "sat"}, []string{"doc1"}},
		{[]string{"cat", "||", "sat"}, []string{"doc1", "doc2"}},
		{[]string{"cat", "&!", "sat"}, []string{"doc2"}},
		{[]string{"dog"}, []string{}},
		{[]string{"(", "cat", "||", "dog", ")", "&&", "sat"}, []string{"doc1"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.query), func(t *testing.T) {
			results, err := idx.Query(tt.query)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, docIDs(results))
		})
	}
}

func TestQueryErrors(t *testing.T) {
	idx := newCatIndex(t)

	_, err := idx.Query(nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyQuery)

	_, err = idx.Query([]string{"cat", "&&"})
	assert.ErrorIs(t, err, apperrors.ErrSyntax)
	assert.ErrorContains(t, err, "unexpected end of input")

	_, err = idx.Query([]string{"cat", "sat"})
	var se *parser.SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Msg, "unexpected token after expression")
}

func TestQueryScores(t *testing.T) {
	idx := New(nil, nil)
	require.NoError(t, idx.IndexDocument("d1", []string{"cat", "cat", "sat"}))
	require.NoError(t, idx.IndexDocument("d2", []string{"cat", "dog"}))
	require.NoError(t, idx.IndexDocument("d3", []string{"dog", "emu", "emu", "emu"}))

	results, err := idx.Query([]string{"cat", "||", "emu"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	ln := math.Log
	want := map[string]float64{
		"d1": (2.0 / 3.0) * ln(3.0/2.0),
		"d2": (1.0 / 2.0) * ln(3.0/2.0),
		"d3": (3.0 / 4.0) * ln(3.0/1.0),
	}
	for _, r := range results {
		assert.InDelta(t, want[r.DocID], r.Score, 1e-12, r.DocID)
	}
	assert.Equal(t, []string{"d3", "d1", "d2"}, docIDs(results))
}

func TestQueryTermInEveryDocumentScoresZero(t *testing.T) {
	idx := newCatIndex(t)
	results, err := idx.Query([]string{"cat"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Zero(t, r.Score, r.DocID)
	}
}

func TestQueryLeavesIndexIntact(t *testing.T) {
	idx := newCatIndex(t)
	for range 3 {
		_, err := idx.Query([]string{"cat", "&!", "sat"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, idx.DocFrequency("cat"))
	assert.Equal(t, 1, idx.DocFrequency("sat"))
}

func TestFingerprint(t *testing.T) {
	idx := New(nil, nil)
	a := idx.Fingerprint([]string{"cat", "&&", "sat"})
	assert.Equal(t, a, idx.Fingerprint([]string{"cat", "&&", "sat"}))
	assert.NotEqual(t, a, idx.Fingerprint([]string{"cat&&", "sat"}))

	calls := 0
	custom := New(nil, func(b []byte) uint64 { calls++; return uint64(len(b)) })
	assert.Equal(t, uint64(7), custom.Fingerprint([]string{"abc", "def"}))
	assert.Equal(t, 1, calls)
}

func TestDocName(t *testing.T) {
	idx := newCatIndex(t)
	name, ok := idx.DocName(docKey(1))
	require.True(t, ok)
	assert.Equal(t, "doc2", name)
	_, ok = idx.DocName(docKey(7))
	assert.False(t, ok)
	_, ok = idx.DocName([]byte("x"))
	assert.False(t, ok)
}

func TestCloseReleasesNamesOnce(t *testing.T) {
	idx := New(nil, nil)
	for i := range 20 {
		// Every document shares most terms so each name sits in many sets.
		require.NoError(t, idx.IndexDocument(fmt.Sprintf("doc%d", i), []string{"alpha", "beta", "gamma", fmt.Sprint(i)}))
	}
	released := make(map[string]int)
	idx.Close(func(name string) { released[name]++ })

	assert.Len(t, released, 20)
	for name, n := range released {
		assert.Equal(t, 1, n, name)
	}
	assert.Equal(t, Stats{}, idx.Stat())

	idx.Close(func(name string) { t.Fatalf("released %q twice", name) })
}

func BenchmarkIndexDocument(b *testing.B) {
	idx := New(nil, nil)
	tokens := []string{"this", "is", "a", "benchmark", "document", "with", "several", "terms", "for", "indexing"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = idx.IndexDocument(fmt.Sprintf("doc-%d", i), tokens)
	}
}

func BenchmarkQuery(b *testing.B) {
	idx := New(nil, nil)
	for i := range 5000 {
		_ = idx.IndexDocument(fmt.Sprintf("doc-%d", i), []string{"search", "engine", fmt.Sprintf("t%d", i%50)})
	}
	q := []string{"(", "search", "||", "t3", ")", "&!", "t7"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Query(q)
	}
}

func assertCounts(t *testing.T, idx *Index, docs, terms int) {
	t.Helper()
	st := idx.Stat()
	assert.Equal(t, docs, st.Documents, "documents")
	assert.Equal(t, terms, st.Terms, "terms")
}

func TestCorpusFingerprint(t *testing.T) {
	a := New(nil, nil)
	require.NoError(t, a.IndexDocument("d1", []string{"cat", "sat"}))
	b := New(nil, nil)
	require.NoError(t, b.IndexDocument("d1", []string{"dog", "ran"}))
	assert.Equal(t, a.Stat().Documents, b.Stat().Documents)
	assert.NotEqual(t, a.Stat().Corpus, b.Stat().Corpus, "same size, different content")

	before := a.Stat().Corpus
	require.NoError(t, a.IndexDocument("d2", []string{"dog"}))
	assert.NotEqual(t, before, a.Stat().Corpus)

	c := New(nil, nil)
	require.NoError(t, c.IndexDocument("d2", []string{"dog"}))
	require.NoError(t, c.IndexDocument("d1", []string{"cat", "the", "sat"}))
	assert.Equal(t, a.Stat().Corpus, c.Stat().Corpus, "insertion order and stop words do not matter")
}
