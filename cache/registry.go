package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// RegistryKey is where the key allow-list is persisted. It never expires.
const RegistryKey = "dfrapi_transient_whitelist"

// Registry is the append-only allow-list of every cache key created through a
// Memoizer. It lets ClearAll enumerate and purge lookup results.
type Registry struct {
	// mu serializes the read-modify-write of the persisted key list.
	mu     sync.Mutex
	store  Store
	known  *xsync.MapOf[string, struct{}]
	logger *slog.Logger
}

// NewRegistry creates a registry persisted in store.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  store,
		known:  xsync.NewMapOf[string, struct{}](),
		logger: logger.With("component", "cache-registry"),
	}
}

// Register records key. Registering the same key again is a no-op.
func (r *Registry) Register(ctx context.Context, key string) error {
	if _, ok := r.known.Load(key); ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keys, err := r.Keys(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(keys, key) {
		keys = append(keys, key)
		if err := Save(ctx, r.store, RegistryKey, keys, 0); err != nil {
			return fmt.Errorf("saving key registry: %w", err)
		}
	}
	r.known.Store(key, struct{}{})
	return nil
}

// Keys returns every registered key in registration order.
func (r *Registry) Keys(ctx context.Context) ([]string, error) {
	keys, _, err := Load[[]string](ctx, r.store, RegistryKey)
	if err != nil {
		return nil, fmt.Errorf("loading key registry: %w", err)
	}
	return keys, nil
}

// ClearAll deletes the cached value of every registered key and returns how
// many keys were purged. The registry itself is kept.
func (r *Registry) ClearAll(ctx context.Context) (int, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, key := range keys {
		if err := r.store.Delete(ctx, key); err != nil {
			r.logger.Error("cache delete failed", "key", key, "error", err)
			continue
		}
		purged++
	}
	r.logger.Info("cache cleared", "keys_deleted", purged)
	return purged, nil
}
