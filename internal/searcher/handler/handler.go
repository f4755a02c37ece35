package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/tracing"
)

// Searcher is implemented by *indexer.Engine.
type Searcher interface {
	Search(ctx context.Context, line string) (*executor.SearchResult, error)
	Fingerprint(line string) ([]string, uint64)
	Stats() index.Stats
	Document(name string) (index.DocStats, bool)
}

type Handler struct {
	searcher     Searcher
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New wires the search API. queryCache, collector and m may be nil.
func New(s Searcher, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	if queryCache == nil {
		queryCache = cache.New(nil, 0, m)
	}
	return &Handler{
		searcher:     s,
		cache:        queryCache,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       logger.WithComponent("search-handler"),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/documents/{name...}", h.Document)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "search", logger.RequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(log)
	}()

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if h.maxResults > 0 && parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	span.SetAttr("query", query)
	tokens, fingerprint := h.searcher.Fingerprint(query)
	st := h.searcher.Stats()
	key := cache.Key(fingerprint, st.Corpus, st.Documents)
	result, cacheHit, err := h.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*executor.SearchResult, error) {
		return h.searcher.Search(ctx, query)
	})
	latency := time.Since(start)
	span.SetAttr("cache_hit", cacheHit)
	h.observeLatency(cacheHit, latency)

	event := analytics.SearchEvent{
		Type:        analytics.EventSearch,
		Query:       query,
		Terms:       tokens,
		Fingerprint: fmt.Sprintf("%016x", fingerprint),
		LatencyMs:   latency.Milliseconds(),
		CacheHit:    cacheHit,
		Timestamp:   time.Now().UTC(),
		RequestID:   logger.RequestID(ctx),
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
		}
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("search failed", "query", query, "error", err)
		} else {
			log.Info("query rejected", "query", query, "error", err)
			event.Type = analytics.EventSyntaxError
		}
		event.Error = err.Error()
		h.track(event)
		h.writeError(w, status, err.Error())
		return
	}

	resp := *result
	resp.Query = query
	resp.Results = ranker.Top(result.Results, limit)
	if resp.Results == nil {
		resp.Results = []ranker.ScoredDoc{}
	}

	log.Info("search completed",
		"query", query,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	event.TotalHits = resp.TotalHits
	event.Returned = len(resp.Results)
	if resp.TotalHits == 0 {
		event.Type = analytics.EventZeroResult
	} else {
		event.TopDocument = resp.Results[0].DocID
	}
	h.track(event)

	h.writeJSON(w, http.StatusOK, &resp)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st := h.searcher.Stats()
	body := map[string]any{
		"documents": st.Documents,
		"terms":     st.Terms,
	}
	if h.cache.Enabled() {
		hits, misses := h.cache.Stats()
		body["cache"] = map[string]any{
			"hits":   hits,
			"misses": misses,
			"store":  h.cache.StoreState().String(),
		}
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	doc, ok := h.searcher.Document(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("document %q not found", name))
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if !h.cache.Enabled() {
		err := apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled")
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observeLatency(cacheHit bool, d time.Duration) {
	if h.metrics == nil {
		return
	}
	status := "miss"
	switch {
	case !h.cache.Enabled():
		status = "disabled"
	case cacheHit:
		status = "hit"
	}
	h.metrics.SearchLatency.WithLabelValues(status).Observe(d.Seconds())
}

func (h *Handler) track(event analytics.SearchEvent) {
	if h.collector != nil {
		h.collector.Track(event)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
