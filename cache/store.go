package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Lookup TTLs used by the resolvers.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// ErrInvalidResultType is returned when a stored value cannot be decoded into
// the requested type.
var ErrInvalidResultType = errors.New("cache: stored value has unexpected type")

// Store is the host key/value store. A ttl of zero stores without expiry.
// Implementations must report an absent or expired key as a miss, not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Entry is the cached form of a lookup result. Negative marks a cached
// failure whose Value is the lookup's sentinel.
type Entry[T any] struct {
	Value    T    `msgpack:"v"`
	Negative bool `msgpack:"n"`
}

// Load reads and decodes the value stored under key.
func Load[T any](ctx context.Context, store Store, key string) (T, bool, error) {
	var zero T
	data, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var value T
	if err := msgpack.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("%w: %s: %v", ErrInvalidResultType, key, err)
	}
	return value, true, nil
}

// Save encodes value and stores it under key for ttl.
func Save[T any](ctx context.Context, store Store, key string, value T, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return store.Set(ctx, key, data, ttl)
}
