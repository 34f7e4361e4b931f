package cache

import (
	"time"

	"github.com/Nkambwe/Mfi-Mananger-sub000/internal/cacheinfra"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	// Enabled toggles the whole cache. When false, GetOrPopulate always
	// invokes the populate function and nothing is ever stored.
	Enabled bool

	Capacity           int
	NumShards          int
	DefaultTTL         time.Duration
	ShortTTL           time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration

	// EarlyRefresh mirrors the underlying sturdyc early refresh options.
	EarlyRefresh *EarlyRefreshConfig
}

// EarlyRefreshConfig configures background refresh of hot entries before
// they expire.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewService constructs the default cache service implementation using the
// provided configuration.
func NewService(cfg Config) (Service, error) {
	return cacheinfra.NewSturdycService(cfg.toInternal())
}

func (c Config) toInternal() cacheinfra.Config {
	var early *cacheinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}

	return cacheinfra.Config{
		Enabled:            c.Enabled,
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		DefaultTTL:         c.DefaultTTL,
		ShortTTL:           c.ShortTTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
		EarlyRefresh:       early,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	var early *EarlyRefreshConfig
	if cfg.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
		}
	}

	return Config{
		Enabled:            cfg.Enabled,
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		DefaultTTL:         cfg.DefaultTTL,
		ShortTTL:           cfg.ShortTTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
		EarlyRefresh:       early,
	}
}
