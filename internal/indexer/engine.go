package indexer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/tracing"
)

const maxLineBytes = 1 << 20

// DocumentSource streams (name, body) pairs into the engine. fn's error
// stops the stream and is returned.
type DocumentSource interface {
	Each(ctx context.Context, fn func(name, body string) error) error
}

// Engine owns the index and serializes access to it. Writers take the
// exclusive lock; searches share the read lock, so once loading is done any
// number of queries run concurrently.
type Engine struct {
	mu      sync.RWMutex
	idx     *index.Index
	cfg     config.IndexerConfig
	opts    tokenizer.Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type pendingDoc struct {
	name   string
	tokens []string
}

// NewEngine creates an engine with an empty index. m may be nil.
func NewEngine(cfg config.IndexerConfig, m *metrics.Metrics) *Engine {
	opts := tokenizer.WordOptions
	if cfg.MinTokenLength > 0 {
		opts.MinLength = cfg.MinTokenLength
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{
		idx:     index.New(nil, nil),
		cfg:     cfg,
		opts:    opts,
		metrics: m,
		logger:  logger.WithComponent("indexer"),
	}
}

// IndexDocument tokenizes body and adds it under name.
func (e *Engine) IndexDocument(name string, body string) error {
	tokens, err := tokenizer.Append(nil, strings.NewReader(body), e.opts)
	if err != nil {
		return fmt.Errorf("tokenizing %q: %w", name, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.add(name, tokens)
}

func (e *Engine) add(name string, tokens []string) error {
	if err := e.idx.IndexDocument(name, tokens); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("document indexed", "name", name, "tokens", len(tokens))
	return nil
}

// LoadPaths indexes every regular file under paths. Each file is one
// document named by its path, or with SplitLines each non-empty line is a
// document named "path:line". Files are read concurrently but indexed in
// path order, so the result does not depend on scheduling. A document that
// is already indexed is skipped with a warning.
func (e *Engine) LoadPaths(ctx context.Context, paths []string) (int, error) {
	start := time.Now()
	files, err := collectFiles(paths)
	if err != nil {
		return 0, err
	}

	batches := make([][]pendingDoc, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs, err := e.readFile(path)
			if err != nil {
				return err
			}
			batches[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	indexed := 0
	for _, docs := range batches {
		for _, d := range docs {
			if err := e.add(d.name, d.tokens); err != nil {
				if errors.Is(err, apperrors.ErrDocumentExists) {
					e.logger.Warn("skipping duplicate document", "name", d.name)
					continue
				}
				return indexed, err
			}
			indexed++
		}
	}
	e.updateGauges()
	e.logger.Info("corpus loaded",
		"files", len(files),
		"documents", indexed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return indexed, nil
}

// LoadSource indexes every document src yields.
func (e *Engine) LoadSource(ctx context.Context, src DocumentSource) (int, error) {
	indexed := 0
	err := src.Each(ctx, func(name, body string) error {
		if err := e.IndexDocument(name, body); err != nil {
			if errors.Is(err, apperrors.ErrDocumentExists) {
				e.logger.Warn("skipping duplicate document", "name", name)
				return nil
			}
			return err
		}
		indexed++
		return nil
	})
	e.mu.Lock()
	e.updateGauges()
	e.mu.Unlock()
	if err != nil {
		return indexed, fmt.Errorf("loading document source: %w", err)
	}
	e.logger.Info("document source loaded", "documents", indexed)
	return indexed, nil
}

// Search lexes, parses and evaluates one query line. All matching
// documents are returned, best first; syntax errors wrap
// apperrors.ErrSyntax and a line without tokens is apperrors.ErrEmptyQuery.
func (e *Engine) Search(ctx context.Context, line string) (*executor.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := tokenizer.Query(line)
	if len(tokens) == 0 {
		e.countQuery("syntax_error")
		return nil, apperrors.ErrEmptyQuery
	}
	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	parseSpan.SetAttr("tokens", len(tokens))
	ast, err := parser.Parse(tokens)
	parseSpan.End()
	if err != nil {
		e.countQuery("syntax_error")
		return nil, fmt.Errorf("parsing query: %w", err)
	}

	_, evalSpan := tracing.StartChildSpan(ctx, "evaluate")
	e.mu.RLock()
	results := e.idx.Run(ast)
	termStats := executor.TermStats(ast, e.idx)
	e.mu.RUnlock()
	evalSpan.SetAttr("hits", len(results))
	evalSpan.End()

	if len(results) == 0 {
		e.countQuery("zero_result")
	} else {
		e.countQuery("hit")
	}
	if e.metrics != nil {
		e.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	e.logger.Debug("query evaluated", "query", ast.String(), "hits", len(results))

	return &executor.SearchResult{
		Query:     line,
		TotalHits: len(results),
		Results:   results,
		TermStats: termStats,
	}, nil
}

// Fingerprint returns the normalized tokens of line and their hash. Lines
// that lex to the same tokens share a fingerprint.
func (e *Engine) Fingerprint(line string) ([]string, uint64) {
	tokens := tokenizer.Query(line)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return tokens, e.idx.Fingerprint(tokens)
}

func (e *Engine) Stats() index.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx.Stat()
}

func (e *Engine) Document(name string) (index.DocStats, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx.Document(name)
}

// Close empties the index. release is called once per document name.
func (e *Engine) Close(release func(name string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idx.Close(release)
	e.updateGauges()
}

func (e *Engine) countQuery(resultType string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

// updateGauges must be called with e.mu held.
func (e *Engine) updateGauges() {
	if e.metrics == nil {
		return
	}
	st := e.idx.Stat()
	e.metrics.IndexDocuments.Set(float64(st.Documents))
	e.metrics.IndexTerms.Set(float64(st.Terms))
}

func (e *Engine) readFile(path string) ([]pendingDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if !e.cfg.SplitLines {
		tokens, err := tokenizer.Append(nil, f, e.opts)
		if err != nil {
			return nil, fmt.Errorf("tokenizing %s: %w", path, err)
		}
		return []pendingDoc{{name: path, tokens: tokens}}, nil
	}

	var docs []pendingDoc
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens, err := tokenizer.Append(nil, strings.NewReader(line), e.opts)
		if err != nil {
			return nil, fmt.Errorf("tokenizing %s:%d: %w", path, lineNo, err)
		}
		docs = append(docs, pendingDoc{name: fmt.Sprintf("%s:%d", path, lineNo), tokens: tokens})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return docs, nil
}

// collectFiles expands directories into the regular files beneath them, in
// lexical order, keeping the caller's order across arguments.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return files, nil
}
