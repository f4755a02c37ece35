// Package index implements the in-memory inverted index: term to document
// sets, per-document term frequencies and the counters TF-IDF needs.
//
// Document names live in a single arena owned by the Index. Every other
// container refers to a document by its DocID, encoded as a 4-byte
// big-endian key, so a name is stored once and released once no matter how
// many term sets reference it.
//
// An Index is not safe for concurrent use; callers serialize mutation
// against reads.
package index

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/collection/avl"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
)

// DocID is the arena handle of an indexed document.
type DocID uint32

// HashFunc hashes a byte sequence to 64 bits.
type HashFunc func([]byte) uint64

// Stats is the snapshot reported by Stat. Corpus identifies the indexed
// content: it changes whenever a document is added, and two indexes holding
// the same documents have the same value regardless of insertion order.
type Stats struct {
	Documents int    `json:"documents"`
	Terms     int    `json:"terms"`
	Corpus    uint64 `json:"corpus"`
}

// DocStats describes one indexed document.
type DocStats struct {
	Name          string `json:"name"`
	Terms         int    `json:"terms"`
	DistinctTerms int    `json:"distinct_terms"`
}

// Index is the inverted index over a growing set of named documents.
type Index struct {
	names         []string
	docs          *avl.Map[DocID]
	terms         *avl.Map[*avl.Set]
	termFrequency *avl.Map[*avl.Map[int]]
	docTermCount  *avl.Map[int]
	nDocs         int
	nTerms        int
	corpus        uint64
	cmp           avl.Compare
	hash          HashFunc
}

// New creates an empty index. cmp orders term keys (nil means bytewise)
// and hash backs Fingerprint (nil means xxhash64). The containers are
// comparator-ordered trees; the hash is never used to place entries.
func New(cmp avl.Compare, hash HashFunc) *Index {
	if hash == nil {
		hash = xxhash.Sum64
	}
	return &Index{
		docs:          avl.NewMap[DocID](nil),
		terms:         avl.NewMap[*avl.Set](cmp),
		termFrequency: avl.NewMap[*avl.Map[int]](nil),
		docTermCount:  avl.NewMap[int](nil),
		cmp:           cmp,
		hash:          hash,
	}
}

// IndexDocument adds a document and its tokens. Stop words are skipped.
// The index is append-only: a name that is already indexed is rejected.
func (idx *Index) IndexDocument(name string, tokens []string) error {
	if name == "" {
		return fmt.Errorf("indexing document: %w: empty document name", apperrors.ErrInvalidInput)
	}
	if idx.docs.Contains([]byte(name)) {
		return fmt.Errorf("indexing %q: %w", name, apperrors.ErrDocumentExists)
	}

	id := DocID(len(idx.names))
	idx.names = append(idx.names, name)
	idx.docs.Insert([]byte(name), id)
	idx.nDocs++
	key := docKey(id)

	freq := avl.NewMap[int](idx.cmp)
	idx.termFrequency.Insert(key, freq)

	count := 0
	digest := append(make([]byte, 0, len(name)+8*len(tokens)), name...)
	for _, term := range tokens {
		if term == "" || tokenizer.IsStopWord(term) {
			continue
		}
		count++
		digest = append(append(digest, 0x1f), term...)
		tk := []byte(term)
		if set, ok := idx.terms.Get(tk); ok {
			set.Insert(key)
		} else {
			set = avl.NewSet(nil)
			set.Insert(key)
			idx.terms.Insert(tk, set)
			idx.nTerms++
		}
		n, _ := freq.Get(tk)
		freq.Insert(tk, n+1)
	}
	idx.docTermCount.Insert(key, count)
	idx.corpus += idx.hash(digest)
	return nil
}

// Query parses tokens, evaluates the expression and scores every matching
// document. Results are ordered by descending score.
func (idx *Index) Query(tokens []string) ([]ranker.ScoredDoc, error) {
	if len(tokens) == 0 {
		return nil, apperrors.ErrEmptyQuery
	}
	ast, err := parser.Parse(tokens)
	if err != nil {
		return nil, fmt.Errorf("parsing query: %w", err)
	}
	return idx.Run(ast), nil
}

// Run evaluates an already parsed expression.
func (idx *Index) Run(ast parser.Node) []ranker.ScoredDoc {
	matches := executor.Evaluate(ast, idx)
	defer matches.Clear()

	results := make([]ranker.ScoredDoc, 0, matches.Len())
	for key := range matches.All() {
		results = append(results, ranker.ScoredDoc{
			DocID: idx.names[docIDFromKey(key)],
			Score: ranker.Score(ast, idx, key),
		})
	}
	ranker.Sort(results)
	return results
}

// Stat reports document and term counts along with the corpus
// fingerprint.
func (idx *Index) Stat() Stats {
	return Stats{Documents: idx.nDocs, Terms: idx.nTerms, Corpus: idx.corpus}
}

// Document returns per-document statistics by name.
func (idx *Index) Document(name string) (DocStats, bool) {
	id, ok := idx.docs.Get([]byte(name))
	if !ok {
		return DocStats{}, false
	}
	key := docKey(id)
	total, _ := idx.docTermCount.Get(key)
	freq, _ := idx.termFrequency.Get(key)
	return DocStats{Name: name, Terms: total, DistinctTerms: freq.Len()}, true
}

// Fingerprint hashes a normalized token sequence. Equal queries produce
// equal fingerprints; it is used to key cached results.
func (idx *Index) Fingerprint(tokens []string) uint64 {
	return idx.hash([]byte(strings.Join(tokens, "\x1f")))
}

// TermDocs returns the index's own set for term. Callers must not modify
// it.
func (idx *Index) TermDocs(term string) (*avl.Set, bool) {
	return idx.terms.Get([]byte(term))
}

func (idx *Index) DocCount() int {
	return idx.nDocs
}

func (idx *Index) DocFrequency(term string) int {
	set, ok := idx.terms.Get([]byte(term))
	if !ok {
		return 0
	}
	return set.Len()
}

func (idx *Index) TermFrequency(doc []byte, term string) (int, bool) {
	freq, ok := idx.termFrequency.Get(doc)
	if !ok {
		return 0, false
	}
	return freq.Get([]byte(term))
}

func (idx *Index) DocTermCount(doc []byte) (int, bool) {
	return idx.docTermCount.Get(doc)
}

// DocName resolves a document key produced by the evaluator.
func (idx *Index) DocName(doc []byte) (string, bool) {
	if len(doc) != 4 {
		return "", false
	}
	id := docIDFromKey(doc)
	if int(id) >= len(idx.names) {
		return "", false
	}
	return idx.names[id], true
}

// Close releases every container. release, when non-nil, is called once per
// document name. The index is empty afterwards.
func (idx *Index) Close(release func(name string)) {
	idx.terms.Clear(func(s *avl.Set) { s.Clear() })
	idx.termFrequency.Clear(func(m *avl.Map[int]) { m.Clear(nil) })
	idx.docTermCount.Clear(nil)
	idx.docs.Clear(nil)
	if release != nil {
		for _, name := range idx.names {
			release(name)
		}
	}
	clear(idx.names)
	idx.names = nil
	idx.nDocs = 0
	idx.nTerms = 0
	idx.corpus = 0
}

func docKey(id DocID) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(id))
	return b[:]
}

func docIDFromKey(key []byte) DocID {
	return DocID(binary.BigEndian.Uint32(key))
}
