package executor

import (
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/collection/avl"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/ranker"
)

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats"`
}

// Postings is the part of the index the evaluator reads. Implementations
// hand out their own sets; Evaluate never modifies them.
type Postings interface {
	TermDocs(term string) (*avl.Set, bool)
}

// Evaluate returns the set of documents matching the query tree. The
// returned set is always freshly allocated and owned by the caller, so
// clearing it (or any intermediate set) cannot affect the index.
func Evaluate(n parser.Node, src Postings) *avl.Set {
	switch n := n.(type) {
	case *parser.Term:
		docs, ok := src.TermDocs(n.Text)
		if !ok {
			return avl.NewSet(nil)
		}
		return docs.Clone()
	case *parser.Binary:
		left := Evaluate(n.Left, src)
		right := Evaluate(n.Right, src)
		var out *avl.Set
		switch n.Op {
		case parser.OpAnd:
			out = avl.Intersection(left, right)
		case parser.OpOr:
			out = avl.Union(left, right)
		case parser.OpAndNot:
			out = avl.Difference(left, right)
		}
		left.Clear()
		right.Clear()
		if out != nil {
			return out
		}
	}
	return avl.NewSet(nil)
}

// TermStats reports the document frequency of every distinct term in the
// query, including terms that match nothing.
func TermStats(n parser.Node, src Postings) map[string]int {
	stats := make(map[string]int)
	for _, term := range parser.Terms(n) {
		if docs, ok := src.TermDocs(term); ok {
			stats[term] = docs.Len()
		} else {
			stats[term] = 0
		}
	}
	return stats
}
