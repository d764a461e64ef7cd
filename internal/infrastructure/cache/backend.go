package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const defaultTTL = 5 * time.Minute

// HitObserver counts cache lookups per backend.
type HitObserver interface {
	ObserveCacheLookup(backend string, hit bool)
}

// CachedBackend serves repeated queries from Store. Cache failures fall
// through to the wrapped backend; backend errors are never cached.
type CachedBackend struct {
	inner    ports.SearchBackend
	store    Store
	ttl      time.Duration
	observer HitObserver
	logger   *slog.Logger
}

type Option func(*CachedBackend)

func WithTTL(ttl time.Duration) Option {
	return func(c *CachedBackend) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithHitObserver(observer HitObserver) Option {
	return func(c *CachedBackend) { c.observer = observer }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedBackend) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCachedBackend(inner ports.SearchBackend, store Store, opts ...Option) *CachedBackend {
	c := &CachedBackend{
		inner:  inner,
		store:  store,
		ttl:    defaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedBackend) Name() string                { return c.inner.Name() }
func (c *CachedBackend) Engine() domain.SourceEngine { return c.inner.Engine() }

func (c *CachedBackend) Search(ctx context.Context, q domain.BackendQuery) ([]domain.SearchResult, error) {
	key := cacheKey(c.inner.Name(), q)

	raw, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("cache_get_failed", "backend", c.inner.Name(), "error", err)
	case ok:
		var cached []domain.SearchResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			c.observe(true)
			return cached, nil
		}
		c.logger.Warn("cache_entry_corrupt", "backend", c.inner.Name(), "key", key)
	}
	c.observe(false)

	results, err := c.inner.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("cache_encode_failed", "backend", c.inner.Name(), "error", err)
		return results, nil
	}
	if err := c.store.Set(ctx, key, encoded, c.ttl); err != nil {
		c.logger.Warn("cache_set_failed", "backend", c.inner.Name(), "error", err)
	}
	return results, nil
}

func (c *CachedBackend) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCacheLookup(c.inner.Name(), hit)
	}
}

func cacheKey(backend string, q domain.BackendQuery) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%s\x00%d\x00%t", q.CorpusID, q.Query, q.TopK, q.PublicOnly))
	return backend + ":" + hex.EncodeToString(sum[:])
}
