package ranker

import (
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStats is a hand-built corpus:
//
//	d1: cat cat sat   (3 terms)
//	d2: cat dog       (2 terms)
//	d3: dog           (1 term)
type fakeStats struct {
	freq  map[string]map[string]int
	total map[string]int
}

func newFakeStats() *fakeStats {
	return &fakeStats{
		freq: map[string]map[string]int{
			"d1": {"cat": 2, "sat": 1},
			"d2": {"cat": 1, "dog": 1},
			"d3": {"dog": 1},
		},
		total: map[string]int{"d1": 3, "d2": 2, "d3": 1},
	}
}

func (f *fakeStats) DocCount() int { return len(f.total) }

func (f *fakeStats) DocFrequency(term string) int {
	n := 0
	for _, terms := range f.freq {
		if _, ok := terms[term]; ok {
			n++
		}
	}
	return n
}

func (f *fakeStats) TermFrequency(doc []byte, term string) (int, bool) {
	c, ok := f.freq[string(doc)][term]
	return c, ok
}

func (f *fakeStats) DocTermCount(doc []byte) (int, bool) {
	c, ok := f.total[string(doc)]
	return c, ok
}

func parse(t *testing.T, tokens ...string) parser.Node {
	t.Helper()
	n, err := parser.Parse(tokens)
	require.NoError(t, err)
	return n
}

func TestScoreTerm(t *testing.T) {
	stats := newFakeStats()
	want := (2.0 / 3.0) * math.Log(3.0/2.0)
	assert.InDelta(t, want, Score(parse(t, "cat"), stats, []byte("d1")), 1e-12)
	assert.Zero(t, Score(parse(t, "cat"), stats, []byte("d3")), "term absent from document")
	assert.Zero(t, Score(parse(t, "cat"), stats, []byte("nope")), "unknown document")
	assert.Zero(t, Score(parse(t, "zebra"), stats, []byte("d1")), "unknown term")
}

func TestScoreOperators(t *testing.T) {
	stats := newFakeStats()
	d2 := []byte("d2")
	cat := Score(parse(t, "cat"), stats, d2)
	dog := Score(parse(t, "dog"), stats, d2)

	assert.InDelta(t, cat+dog, Score(parse(t, "cat", "&&", "dog"), stats, d2), 1e-12)
	assert.InDelta(t, cat+dog, Score(parse(t, "cat", "||", "dog"), stats, d2), 1e-12)
	assert.InDelta(t, cat, Score(parse(t, "cat", "&!", "dog"), stats, d2), 1e-12)
}

func TestScoreUbiquitousTermIsZero(t *testing.T) {
	stats := &fakeStats{
		freq:  map[string]map[string]int{"a": {"x": 3}, "b": {"x": 1, "y": 1}},
		total: map[string]int{"a": 3, "b": 2},
	}
	for _, d := range []string{"a", "b"} {
		assert.Zero(t, Score(parse(t, "x"), stats, []byte(d)))
	}
}

func TestSortAndTop(t *testing.T) {
	results := []ScoredDoc{
		{DocID: "c", Score: 0.1},
		{DocID: "b", Score: 0.5},
		{DocID: "a", Score: 0.1},
		{DocID: "d", Score: 0.9},
	}
	Sort(results)
	assert.Equal(t, []ScoredDoc{
		{DocID: "d", Score: 0.9},
		{DocID: "b", Score: 0.5},
		{DocID: "a", Score: 0.1},
		{DocID: "c", Score: 0.1},
	}, results)

	assert.Len(t, Top(results, 2), 2)
	assert.Len(t, Top(results, 0), 4)
	assert.Len(t, Top(results, 10), 4)
}
