package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc cache adapter.
type Config struct {
	// Enabled toggles caching globally. When false the adapter becomes a
	// passthrough: populate functions always run and nothing is stored.
	Enabled bool

	// Capacity defines the maximum number of entries per underlying client.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	// Must be greater than 0.
	NumShards int

	// DefaultTTL is the time-to-live applied to entries stored with a TTL
	// above ShortTTL. Must be greater than 0.
	DefaultTTL time.Duration

	// ShortTTL is the time-to-live applied to entries stored with a TTL at
	// or below it (volatile values such as counts and capability probes).
	// Must be greater than 0 and not greater than DefaultTTL.
	ShortTTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict when
	// a client reaches capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are collected.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration

	// EarlyRefresh configures early refresh behavior for cached entries.
	// If nil, early refresh is disabled.
	EarlyRefresh *EarlyRefreshConfig
}

// EarlyRefreshConfig configures early refresh behavior. Early refresh
// prevents hot entries from expiring under load by refreshing them in the
// background before their TTL elapses.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		Capacity:           10000,
		NumShards:          256,
		DefaultTTL:         20 * time.Minute,
		ShortTTL:           5 * time.Minute,
		EvictionPercentage: 10,
		EvictionInterval:   0,
	}
}

// ToSturdycOptions converts the Config to a sturdyc.Option slice. Capacity,
// NumShards, TTL and EvictionPercentage are passed directly to sturdyc.New
// and are not included here.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.DefaultTTL <= 0 {
		return &ConfigError{Field: "DefaultTTL", Message: "must be greater than 0"}
	}

	if c.ShortTTL <= 0 {
		return &ConfigError{Field: "ShortTTL", Message: "must be greater than 0"}
	}

	if c.ShortTTL > c.DefaultTTL {
		return &ConfigError{Field: "ShortTTL", Message: "must not exceed DefaultTTL"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EarlyRefresh != nil {
		if c.EarlyRefresh.MinAsyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.MinAsyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.MaxAsyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.MaxAsyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.SyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.SyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.RetryBaseDelay < 0 {
			return &ConfigError{Field: "EarlyRefresh.RetryBaseDelay", Message: "must be non-negative"}
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// sturdycService backs the cache.Service contract with two sturdyc clients,
// one per TTL bucket. sturdyc deduplicates in-flight fetches per key, which
// supplies the stampede protection the repository layer relies on, and its
// sharded eviction keeps per-key bookkeeping from growing unbounded.
type sturdycService struct {
	cfg   Config
	short *sturdyc.Client[any]
	std   *sturdyc.Client[any]
}

// NewSturdycService creates the sturdyc-backed cache service. It validates
// the configuration and initializes one client per TTL bucket. When caching
// is disabled no clients are created and every operation degrades to a
// passthrough.
func NewSturdycService(cfg Config) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &sturdycService{cfg: cfg}
	if !cfg.Enabled {
		return s, nil
	}

	opts := cfg.ToSturdycOptions()
	s.short = sturdyc.New[any](cfg.Capacity, cfg.NumShards, cfg.ShortTTL, cfg.EvictionPercentage, opts...)
	s.std = sturdyc.New[any](cfg.Capacity, cfg.NumShards, cfg.DefaultTTL, cfg.EvictionPercentage, opts...)

	return s, nil
}

// clientFor picks the TTL bucket a key belongs to. Keys are always used with
// a consistent TTL by their owning operation, so a key never straddles both
// clients.
func (s *sturdycService) clientFor(ttl time.Duration) *sturdyc.Client[any] {
	if ttl > 0 && ttl <= s.cfg.ShortTTL {
		return s.short
	}
	return s.std
}

// GetOrPopulate implements cache.Service. On a miss the populate function is
// executed once; concurrent callers for the same key block on the in-flight
// call. Populate failures propagate and leave no entry behind.
func (s *sturdycService) GetOrPopulate(ctx context.Context, key string, ttl time.Duration, populate func(context.Context) (any, error)) (any, error) {
	if !s.cfg.Enabled {
		bypass.Inc()
		return populate(ctx)
	}

	populated := false
	value, err := s.clientFor(ttl).GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		populated = true
		return populate(ctx)
	})
	if err != nil {
		errorsTotal.WithLabelValues("get_or_populate").Inc()
		return nil, err
	}

	if populated {
		misses.Inc()
	} else {
		hits.Inc()
	}

	return value, nil
}

// Set implements cache.Service.
func (s *sturdycService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.cfg.Enabled {
		return nil
	}
	s.clientFor(ttl).Set(key, value)
	return nil
}

// IsSet implements cache.Service.
func (s *sturdycService) IsSet(ctx context.Context, key string) bool {
	if !s.cfg.Enabled {
		return false
	}
	if _, ok := s.short.Get(key); ok {
		return true
	}
	_, ok := s.std.Get(key)
	return ok
}

// Remove implements cache.Service. The key is dropped from both TTL buckets
// so callers need not remember which bucket an operation wrote to.
func (s *sturdycService) Remove(ctx context.Context, key string) error {
	if !s.cfg.Enabled {
		return nil
	}
	s.short.Delete(key)
	s.std.Delete(key)
	return nil
}

// RemoveByPrefix implements cache.Service. It scans the tracked key set and
// evicts every entry whose key starts with prefix.
func (s *sturdycService) RemoveByPrefix(ctx context.Context, prefix string) error {
	if !s.cfg.Enabled {
		return nil
	}
	for _, client := range []*sturdyc.Client[any]{s.short, s.std} {
		for _, key := range client.ScanKeys() {
			if strings.HasPrefix(key, prefix) {
				client.Delete(key)
			}
		}
	}
	return nil
}

// Clear implements cache.Service.
func (s *sturdycService) Clear(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	for _, client := range []*sturdyc.Client[any]{s.short, s.std} {
		for _, key := range client.ScanKeys() {
			client.Delete(key)
		}
	}
	return nil
}
