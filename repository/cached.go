package repository

import (
	"context"
	"time"

	"github.com/Nkambwe/Mfi-Mananger-sub000/cache"
)

// Cache lifetimes per read shape. Identity lookups are the most stable and
// get the longest lifetime; list results churn with every write and get the
// shortest.
const (
	getCacheTTL    = 15 * time.Minute
	findCacheTTL   = 10 * time.Minute
	allCacheTTL    = 5 * time.Minute
	existsCacheTTL = 5 * time.Minute
)

// GetCached is Get backed by the cache service. Without a cache it falls
// through to the database. Misses populate under stampede protection, so
// concurrent callers of the same id share one query.
func (r *Repository[T]) GetCached(ctx context.Context, id int64) (*T, error) {
	if r.cache == nil {
		return r.Get(ctx, id)
	}
	return cache.GetOrPopulate(ctx, r.cache, cache.IDKey(r.table, id), getCacheTTL,
		func(ctx context.Context) (*T, error) {
			return r.Get(ctx, id)
		})
}

// FindCached is Find backed by the cache service, keyed by the predicate's
// canonical text.
func (r *Repository[T]) FindCached(ctx context.Context, pred *Predicate) (*T, error) {
	if r.cache == nil {
		return r.Find(ctx, pred)
	}
	key := cache.Key(r.table, "find", cache.HashSuffix(pred.Key()))
	return cache.GetOrPopulate(ctx, r.cache, key, findCacheTTL,
		func(ctx context.Context) (*T, error) {
			return r.Find(ctx, pred)
		})
}

// AllCached is All backed by the cache service, keyed by the predicate's
// canonical text.
func (r *Repository[T]) AllCached(ctx context.Context, pred *Predicate) ([]T, error) {
	if r.cache == nil {
		return r.All(ctx, pred)
	}
	key := cache.Key(r.table, "all", cache.HashSuffix(pred.Key()))
	return cache.GetOrPopulate(ctx, r.cache, key, allCacheTTL,
		func(ctx context.Context) ([]T, error) {
			return r.All(ctx, pred)
		})
}

// ExistsCached is Exists backed by the cache service.
func (r *Repository[T]) ExistsCached(ctx context.Context, pred *Predicate) (bool, error) {
	if r.cache == nil {
		return r.Exists(ctx, pred)
	}
	key := cache.Key(r.table, "exists", cache.HashSuffix(pred.Key()))
	return cache.GetOrPopulate(ctx, r.cache, key, existsCacheTTL,
		func(ctx context.Context) (bool, error) {
			return r.Exists(ctx, pred)
		})
}
