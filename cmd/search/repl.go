package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
)

const prompt = "> "

type searcher interface {
	Search(ctx context.Context, line string) (*executor.SearchResult, error)
}

func isQuit(line string) bool {
	switch line {
	case ".quit", ".exit", "q":
		return true
	}
	return false
}

// repl reads one query per line until EOF or a quit command. Query errors
// are printed and the loop continues; only I/O errors end it early.
func repl(ctx context.Context, in io.Reader, out io.Writer, s searcher, limit int) error {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, prompt)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if isQuit(line) {
			return nil
		}
		if line != "" {
			if err := runQuery(ctx, out, s, line, limit); err != nil {
				return err
			}
		}
		fmt.Fprint(out, prompt)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading queries: %w", err)
	}
	fmt.Fprintln(out)
	return nil
}

func runQuery(ctx context.Context, out io.Writer, s searcher, line string, limit int) error {
	res, err := s.Search(ctx, line)
	switch {
	case errors.Is(err, apperrors.ErrSyntax), errors.Is(err, apperrors.ErrEmptyQuery):
		_, werr := fmt.Fprintln(out, err)
		return werr
	case err != nil:
		return err
	}
	if res.TotalHits == 0 {
		_, err := fmt.Fprintln(out, "not found")
		return err
	}
	for i, r := range ranker.Top(res.Results, limit) {
		if _, err := fmt.Fprintf(out, "%d. %s (%.6f)\n", i+1, r.DocID, r.Score); err != nil {
			return err
		}
	}
	if limit > 0 && res.TotalHits > limit {
		_, err := fmt.Fprintf(out, "... %d more\n", res.TotalHits-limit)
		return err
	}
	return nil
}
