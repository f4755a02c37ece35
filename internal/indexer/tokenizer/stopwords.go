package tokenizer

import "slices"

// stopWords must stay sorted ascending; IsStopWord binary-searches it.
var stopWords = []string{
	"about", "all", "an", "and", "any", "are", "as", "at", "be", "been", "being",
	"but", "by", "did", "do", "does", "else", "for", "from", "had", "has", "have", "here",
	"how", "if", "in", "is", "like", "more", "most", "no", "none", "not",
	"of", "on", "or", "some", "such", "than", "that", "the", "then",
	"there", "these", "this", "those", "to", "was", "were", "what", "when", "where",
	"which", "who", "whom", "whose", "why", "with",
}

// IsStopWord reports whether term is excluded from indexing.
func IsStopWord(term string) bool {
	_, found := slices.BinarySearch(stopWords, term)
	return found
}
