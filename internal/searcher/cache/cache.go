// Package cache memoizes search results in Redis. Keys combine the
// fingerprint of the normalized query tokens with the corpus fingerprint
// and size, so a result is only served to an index holding exactly the
// documents it was computed from, even across restarts or when several
// instances share one Redis. Concurrent identical queries are collapsed with
// singleflight.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store          Store
	breaker        *resilience.CircuitBreaker
	ttl            time.Duration
	computeTimeout time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over store. A nil store disables storage; identical
// in-flight queries are still collapsed. m may be nil. After repeated store
// failures the cache bypasses the store until the breaker half-opens.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:          store,
		breaker:        resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{}),
		ttl:            ttl,
		computeTimeout: 30 * time.Second,
		metrics: m,
		logger:  logger.WithComponent("query-cache"),
	}
}

// Enabled reports whether results are stored.
func (c *QueryCache) Enabled() bool {
	return c.store != nil
}

// Key builds the cache key for a query fingerprint against the corpus
// identified by corpus and documents.
func Key(fingerprint, corpus uint64, documents int) string {
	return fmt.Sprintf("%s%d:%016x:%016x", keyPrefix, documents, corpus, fingerprint)
}

func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	if c.store == nil {
		return nil, false
	}
	var data string
	found := false
	err := c.breaker.Execute(func() error {
		v, err := c.store.Get(ctx, key)
		if err != nil {
			if pkgredis.IsNilError(err) {
				return nil
			}
			return err
		}
		data, found = v, true
		return nil
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	if !found {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key, or runs compute once for
// all concurrent callers and stores its result. Errors are not cached. The
// boolean reports a cache hit.
//
// compute runs under a context detached from any single caller, bounded by
// the cache's own timeout, so one caller giving up does not fail the others
// waiting on the same key. Each caller still stops waiting when its own ctx
// ends.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		result, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		c.Set(flightCtx, key, result)
		return result, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*executor.SearchResult), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Invalidate drops every cached search result. A failing or tripped store
// is reported as apperrors.ErrUnavailable.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return apperrors.Newf(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "invalidating cache: %v", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// StoreState reports the circuit state guarding the store.
func (c *QueryCache) StoreState() resilience.State {
	return c.breaker.State()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
