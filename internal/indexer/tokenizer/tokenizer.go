// Package tokenizer turns documents and query lines into token sequences
// for the search engine. Only ASCII letters and digits are word characters;
// everything else separates tokens. No stemming is applied.
package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Options controls how a byte stream is split into tokens.
type Options struct {
	// MinLength drops tokens shorter than this many bytes.
	MinLength int
	// Split reports whether c ends the current token. It is required.
	Split func(c byte) bool
	// Filter, when set, drops characters for which it returns false.
	Filter func(c byte) bool
	// Transform, when set, rewrites each kept character.
	Transform func(c byte) byte
}

// WordOptions is the preset used for document text: ASCII alphanumeric
// words, lowercased.
var WordOptions = Options{
	MinLength: 1,
	Split:     func(c byte) bool { return !isAlnum(c) },
	Transform: toLower,
}

// Append reads r to the end and appends its tokens to dst in stream
// order. On a read error the returned slice is dst exactly as it was
// passed in, so a caller's sequence is never left half-extended.
func Append(dst []string, r io.Reader, opts Options) ([]string, error) {
	if opts.Split == nil {
		return dst, fmt.Errorf("tokenizer: split predicate is required")
	}
	origLen := len(dst)
	br := bufio.NewReader(r)
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 && word.Len() >= opts.MinLength {
			dst = append(dst, word.String())
		}
		word.Reset()
	}
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			flush()
			return dst, nil
		}
		if err != nil {
			clear(dst[origLen:])
			return dst[:origLen], fmt.Errorf("reading token stream: %w", err)
		}
		if opts.Split(c) {
			flush()
			continue
		}
		if opts.Filter != nil && !opts.Filter(c) {
			continue
		}
		if opts.Transform != nil {
			c = opts.Transform(c)
		}
		word.WriteByte(c)
	}
}

// Query lexes a single query line. The operators "&&", "||" and "&!" and
// the parentheses are emitted as tokens whether or not they are separated
// by whitespace; words are lowercased; any other byte is a separator.
func Query(line string) []string {
	tokens := make([]string, 0, 8)
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case strings.HasPrefix(line[i:], "&&"), strings.HasPrefix(line[i:], "||"), strings.HasPrefix(line[i:], "&!"):
			tokens = append(tokens, line[i:i+2])
			i += 2
		case isAlnum(c):
			j := i
			for j < len(line) && isAlnum(line[j]) {
				j++
			}
			tokens = append(tokens, strings.ToLower(line[i:j]))
			i = j
		default:
			i++
		}
	}
	return tokens
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func toLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
