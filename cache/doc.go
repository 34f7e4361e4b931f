// Package cache provides the process-wide caching surface used by the
// repository layer and the database capability detector.
//
// # Overview
//
// The package exports the Service interface together with its configuration
// and the deterministic key scheme shared by every consumer:
//
//   - Service: read-through caching with stampede protection, prefix
//     invalidation and a global enable switch
//   - Key / IDKey / EntityPrefix / HashSuffix: stable key construction from
//     table name, operation and suffix
//
// The default implementation (internal/cacheinfra) is backed by sturdyc.
// A miss for a key invokes the populate function exactly once regardless of
// how many callers race on it; everyone else waits for the in-flight result.
//
// # Basic Usage
//
//	svc, err := cache.NewService(cache.DefaultConfig())
//	if err != nil { ... }
//
//	member, err := cache.GetOrPopulate(ctx, svc, cache.IDKey("members", 42), 15*time.Minute,
//		func(ctx context.Context) (*models.Member, error) {
//			return repo.Get(ctx, 42)
//		})
//
// # Invalidation
//
// Writers evict with a blanket prefix sweep plus a targeted id key:
//
//	_ = svc.RemoveByPrefix(ctx, cache.EntityPrefix("members"))
//	_ = svc.Remove(ctx, cache.IDKey("members", 42))
//
// # Disabled Mode
//
// With Config.Enabled=false every GetOrPopulate call goes straight to the
// populate function and nothing is stored; Set, Remove and the other
// mutation calls become no-ops. This keeps call sites oblivious to whether
// caching is on.
package cache
