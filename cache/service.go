package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidResultType is returned when a cached value cannot be converted
// back to the type the caller asked for.
var ErrInvalidResultType = errors.New("cache: result does not match requested type")

// PopulateFn is the function signature Service expects when fetching a value
// from the source of truth on a cache miss.
type PopulateFn[T any] func(ctx context.Context) (T, error)

// Service exposes the read-through caching operations the repository layer
// and the capability detector depend on. It is exported so other packages can
// provide alternate backends.
//
// Implementations must be safe for concurrent use: the service is a
// process-wide singleton shared across every unit of work.
type Service interface {
	// GetOrPopulate returns the value stored under key, invoking populate
	// exactly once per miss: concurrent callers for the same missing key
	// wait for the in-flight computation instead of recomputing. When the
	// service is disabled, populate is always invoked and nothing is stored.
	// Populate errors propagate to the caller and leave no entry behind.
	GetOrPopulate(ctx context.Context, key string, ttl time.Duration, populate func(context.Context) (any, error)) (any, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// IsSet reports whether a live entry exists for key.
	IsSet(ctx context.Context, key string) bool

	// Remove evicts a single entry.
	Remove(ctx context.Context, key string) error

	// RemoveByPrefix evicts every entry whose key starts with prefix.
	RemoveByPrefix(ctx context.Context, prefix string) error

	// Clear evicts every entry.
	Clear(ctx context.Context) error
}

// GetOrPopulate is a type-safe wrapper over Service.GetOrPopulate.
func GetOrPopulate[T any](ctx context.Context, service Service, key string, ttl time.Duration, populate PopulateFn[T]) (T, error) {
	result, err := service.GetOrPopulate(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return populate(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if result == nil {
		var zero T
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: got %T", ErrInvalidResultType, result)
	}
	return typed, nil
}
