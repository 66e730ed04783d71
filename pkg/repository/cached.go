package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/softdelete"
)

// DefaultKeyPrefix namespaces cache keys written by Cached.
const DefaultKeyPrefix = "tombstone:"

// Cached is a read-through cache in front of a Repository. Rows are cached
// by identity as JSON, so T must round-trip through encoding/json.
//
// Reads that opt out of filtering for T's entity skip the cache in both
// directions. Every SoftDelete and Restore run through the repository's
// Session evicts the row's entry, including calls made on the Session
// directly or inside its transactions. Tombstones written by other means,
// such as a raw UPDATE through Session.Exec, stay cached until the entry
// expires.
type Cached[T any] struct {
	repo   *Repository[T]
	cache  Cache
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// CachedOption configures a Cached repository.
type CachedOption func(*cachedConfig)

type cachedConfig struct {
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// WithTTL sets the expiry of cached rows. Zero (the default) means entries
// live until evicted.
func WithTTL(ttl time.Duration) CachedOption {
	return func(c *cachedConfig) { c.ttl = ttl }
}

// WithKeyPrefix replaces DefaultKeyPrefix.
func WithKeyPrefix(prefix string) CachedOption {
	return func(c *cachedConfig) { c.prefix = prefix }
}

// WithLogger sets the logger for cache failures, which are logged and
// otherwise ignored.
func WithLogger(logger *zap.Logger) CachedOption {
	return func(c *cachedConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCached wraps repo with cache.
func NewCached[T any](repo *Repository[T], cache Cache, opts ...CachedOption) *Cached[T] {
	cfg := cachedConfig{prefix: DefaultKeyPrefix, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Cached[T]{
		repo:   repo,
		cache:  cache,
		ttl:    cfg.ttl,
		prefix: cfg.prefix,
		logger: cfg.logger,
	}
	repo.session.OnTombstone(c.onTombstone)
	return c
}

// Key returns the cache key for the row with the given identity.
func (c *Cached[T]) Key(id any) string {
	return fmt.Sprintf("%s%s:%v", c.prefix, c.repo.entity.Name, id)
}

func (c *Cached[T]) bypass(ctx context.Context, opts []softdelete.ExecOption) bool {
	return c.repo.session.Options(ctx, opts...).IsExcluded(c.repo.entity)
}

// GetByID returns the row with the given identity, from the cache when
// present.
func (c *Cached[T]) GetByID(ctx context.Context, id any, opts ...softdelete.ExecOption) (T, error) {
	if c.bypass(ctx, opts) {
		return c.repo.GetByID(ctx, id, opts...)
	}

	key := c.Key(id)
	if v, ok := c.load(ctx, key); ok {
		return v, nil
	}

	v, err := c.repo.GetByID(ctx, id, opts...)
	if err != nil {
		return v, err
	}
	c.store(ctx, key, v)
	return v, nil
}

func (c *Cached[T]) load(ctx context.Context, key string) (T, bool) {
	var v T
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return v, false
	}
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return v, false
	}
	return v, true
}

func (c *Cached[T]) store(ctx context.Context, key string, v T) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache entry unencodable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// List reads through to the repository; lists are not cached.
func (c *Cached[T]) List(ctx context.Context, limit, offset int, opts ...softdelete.ExecOption) ([]T, error) {
	return c.repo.List(ctx, limit, offset, opts...)
}

// SoftDelete tombstones the row and evicts its entry.
func (c *Cached[T]) SoftDelete(ctx context.Context, id any) (bool, error) {
	return c.repo.SoftDelete(ctx, id)
}

// Restore clears the row's tombstone and evicts its entry.
func (c *Cached[T]) Restore(ctx context.Context, id any) (bool, error) {
	return c.repo.Restore(ctx, id)
}

func (c *Cached[T]) onTombstone(ctx context.Context, e entity.Entity, id any) error {
	if e.Name != c.repo.entity.Name {
		return nil
	}
	return c.evict(ctx, id)
}

// evict fails loudly: a stale entry would serve a tombstoned row.
func (c *Cached[T]) evict(ctx context.Context, id any) error {
	if err := c.cache.Delete(ctx, c.Key(id)); err != nil {
		return fmt.Errorf("evict %s: %w", c.Key(id), err)
	}
	return nil
}
