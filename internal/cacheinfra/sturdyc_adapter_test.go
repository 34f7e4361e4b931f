package cacheinfra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, "Capacity"},
		{"zero shards", func(c *Config) { c.NumShards = 0 }, "NumShards"},
		{"zero default ttl", func(c *Config) { c.DefaultTTL = 0 }, "DefaultTTL"},
		{"zero short ttl", func(c *Config) { c.ShortTTL = 0 }, "ShortTTL"},
		{"short ttl above default", func(c *Config) { c.ShortTTL = c.DefaultTTL + time.Minute }, "ShortTTL"},
		{"eviction percentage too high", func(c *Config) { c.EvictionPercentage = 101 }, "EvictionPercentage"},
		{"negative refresh time", func(c *Config) {
			c.EarlyRefresh = &EarlyRefreshConfig{MinAsyncRefreshTime: -time.Second}
		}, "EarlyRefresh.MinAsyncRefreshTime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantErr, cfgErr.Field)
		})
	}
}

func TestNewSturdycServiceRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = -1

	_, err := NewSturdycService(cfg)
	assert.Error(t, err)
}

func TestTTLBucketSelection(t *testing.T) {
	svc, err := NewSturdycService(DefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	// A short-TTL write and a default-TTL write under different keys both
	// round-trip, and Remove clears a key regardless of its bucket.
	require.NoError(t, svc.Set(ctx, "short-key", 1, time.Minute))
	require.NoError(t, svc.Set(ctx, "std-key", 2, time.Hour))
	assert.True(t, svc.IsSet(ctx, "short-key"))
	assert.True(t, svc.IsSet(ctx, "std-key"))

	require.NoError(t, svc.Remove(ctx, "short-key"))
	require.NoError(t, svc.Remove(ctx, "std-key"))
	assert.False(t, svc.IsSet(ctx, "short-key"))
	assert.False(t, svc.IsSet(ctx, "std-key"))
}
