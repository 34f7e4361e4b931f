package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nkambwe/Mfi-Mananger-sub000/cache"
)

func newService(t *testing.T) cache.Service {
	t.Helper()
	svc, err := cache.NewService(cache.DefaultConfig())
	require.NoError(t, err)
	return svc
}

func TestGetOrPopulate_PopulatesOncePerKey(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	var calls atomic.Int32
	populate := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		got, err := svc.GetOrPopulate(ctx, "mfi::members::get::1", time.Minute, populate)
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrPopulate_ConcurrentCallersShareOneFetch(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	populate := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return int64(99), nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]any, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetOrPopulate(ctx, "mfi::members::get::2", time.Minute, populate)
		}(i)
	}

	// Let the goroutines pile onto the in-flight fetch before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, int64(99), results[i])
	}
}

func TestGetOrPopulate_ErrorLeavesNoEntry(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	boom := errors.New("database gone")

	_, err := svc.GetOrPopulate(ctx, "mfi::members::get::3", time.Minute, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	assert.False(t, svc.IsSet(ctx, "mfi::members::get::3"))

	// The next call runs populate again and succeeds.
	got, err := svc.GetOrPopulate(ctx, "mfi::members::get::3", time.Minute, func(ctx context.Context) (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
}

func TestSetRemoveIsSet(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "mfi::branches::get::1", "HQ", time.Minute))
	assert.True(t, svc.IsSet(ctx, "mfi::branches::get::1"))

	require.NoError(t, svc.Remove(ctx, "mfi::branches::get::1"))
	assert.False(t, svc.IsSet(ctx, "mfi::branches::get::1"))
}

func TestRemoveByPrefixSweepsOneEntityOnly(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, cache.IDKey("members", 1), "a", time.Minute))
	require.NoError(t, svc.Set(ctx, cache.Key("members", "all", ""), "b", time.Hour))
	require.NoError(t, svc.Set(ctx, cache.IDKey("branches", 1), "c", time.Minute))

	require.NoError(t, svc.RemoveByPrefix(ctx, cache.EntityPrefix("members")))

	assert.False(t, svc.IsSet(ctx, cache.IDKey("members", 1)))
	assert.False(t, svc.IsSet(ctx, cache.Key("members", "all", "")))
	assert.True(t, svc.IsSet(ctx, cache.IDKey("branches", 1)))
}

func TestClear(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, cache.IDKey("members", 1), "a", time.Minute))
	require.NoError(t, svc.Set(ctx, cache.IDKey("branches", 1), "b", time.Hour))

	require.NoError(t, svc.Clear(ctx))

	assert.False(t, svc.IsSet(ctx, cache.IDKey("members", 1)))
	assert.False(t, svc.IsSet(ctx, cache.IDKey("branches", 1)))
}

func TestDisabledServiceIsAPassthrough(t *testing.T) {
	cfg := cache.DefaultConfig()
	cfg.Enabled = false
	svc, err := cache.NewService(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		got, err := svc.GetOrPopulate(ctx, "mfi::members::get::9", time.Minute, func(ctx context.Context) (any, error) {
			calls.Add(1)
			return "fresh", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh", got)
	}
	assert.Equal(t, int32(3), calls.Load())

	require.NoError(t, svc.Set(ctx, "mfi::members::get::9", "x", time.Minute))
	assert.False(t, svc.IsSet(ctx, "mfi::members::get::9"))
}

func TestTypedGetOrPopulate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	type member struct{ Name string }

	got, err := cache.GetOrPopulate(ctx, svc, "mfi::members::get::10", time.Minute,
		func(ctx context.Context) (*member, error) {
			return &member{Name: "Akello"}, nil
		})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Akello", got.Name)

	// The stored value now comes back through the typed wrapper.
	got, err = cache.GetOrPopulate(ctx, svc, "mfi::members::get::10", time.Minute,
		func(ctx context.Context) (*member, error) {
			t.Fatal("populate should not run on a hit")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "Akello", got.Name)

	// Asking for a different type under the same key fails loudly.
	_, err = cache.GetOrPopulate(ctx, svc, "mfi::members::get::10", time.Minute,
		func(ctx context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, cache.ErrInvalidResultType)
}
