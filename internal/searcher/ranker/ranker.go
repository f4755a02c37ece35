package ranker

import (
	"cmp"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/parser"
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Stats is the view of the index the scorer needs. Documents are passed as
// the opaque keys the evaluator produced.
type Stats interface {
	DocCount() int
	DocFrequency(term string) int
	TermFrequency(doc []byte, term string) (int, bool)
	DocTermCount(doc []byte) (int, bool)
}

// Score computes the TF-IDF relevance of doc for the query tree. AND and
// OR add the scores of both operands; AND-NOT keeps only the left score.
// A term the document does not contain contributes 0.
func Score(n parser.Node, stats Stats, doc []byte) float64 {
	switch n := n.(type) {
	case *parser.Term:
		return termScore(n.Text, stats, doc)
	case *parser.Binary:
		switch n.Op {
		case parser.OpAnd, parser.OpOr:
			return Score(n.Left, stats, doc) + Score(n.Right, stats, doc)
		case parser.OpAndNot:
			return Score(n.Left, stats, doc)
		}
	}
	return 0
}

func termScore(term string, stats Stats, doc []byte) float64 {
	total, ok := stats.DocTermCount(doc)
	if !ok || total == 0 {
		return 0
	}
	count, ok := stats.TermFrequency(doc, term)
	if !ok {
		return 0
	}
	df := stats.DocFrequency(term)
	if df == 0 {
		return 0
	}
	tf := float64(count) / float64(total)
	idf := computeIDF(stats.DocCount(), df)
	return tf * idf
}

func computeIDF(totalDocs, docFreq int) float64 {
	return math.Log(float64(totalDocs) / float64(docFreq))
}

// Sort orders results by descending score. Equal scores keep name order so
// the output is deterministic.
func Sort(results []ScoredDoc) {
	slices.SortStableFunc(results, func(a, b ScoredDoc) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.DocID, b.DocID)
	})
}

// Top returns at most limit results; a limit of zero or less keeps all.
func Top(results []ScoredDoc, limit int) []ScoredDoc {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
