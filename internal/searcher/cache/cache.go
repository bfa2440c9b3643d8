// Package cache memoises ranked hit lists in Redis so re-running an
// experiment over an unchanged feed skips query execution. Concurrent
// misses for the same key are collapsed with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/redis"
)

const keyPrefix = "irh:results:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one query run. Corpus is the feed fingerprint, so results
// cached for another feed never match.
type Key struct {
	Corpus        string
	Configuration string
	Task          int
	Query         string
}

func (k Key) String() string {
	raw := fmt.Sprintf("%s|%s|task=%d|%s", k.Corpus, k.Configuration, k.Task, k.Query)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

type ResultCache struct {
	store   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

// Get returns the cached result for key. Store and decode failures are
// logged and reported as misses.
func (c *ResultCache) Get(ctx context.Context, key Key) (*executor.SearchResult, bool) {
	k := key.String()
	data, err := c.store.Get(ctx, k)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", key.Query, "configuration", key.Configuration)
	return &result, true
}

func (c *ResultCache) Set(ctx context.Context, key Key, result *executor.SearchResult) {
	k := key.String()
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.store.Set(ctx, k, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once per key,
// however many callers miss concurrently. cached reports a cache hit.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	key Key,
	compute func() (*executor.SearchResult, error),
) (result *executor.SearchResult, cached bool, err error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate removes every cached result.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ResultCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
