// Package cache provides the cache-aside resolution layer shared by every
// remote lookup.
//
// # Overview
//
// The package exports:
//
//   - Store: the host key/value store (get, set with TTL, delete) over raw bytes
//   - Memoize: a type-safe get-or-fetch with negative result caching
//   - Registry: the append-only allow-list of keys, used for bulk clearing
//   - KeySerializer: deterministic key derivation from lookup arguments
//
// # Basic Usage
//
//	store, _ := cache.NewMemoryStore(cache.DefaultConfig(), nil)
//	registry := cache.NewRegistry(store, nil)
//	memo := cache.NewMemoizer(store, registry)
//
//	sentinel := "dfrapi_unapproved_ph_merchant"
//	camref, err := cache.Memoize(ctx, memo, "camref_42", cache.Policy[string]{
//		Name:     "partnerize_camref",
//		TTL:      cache.Week,
//		Negative: &sentinel,
//	}, func(ctx context.Context) (string, error) {
//		return client.GetPerformanceHorizonCamrefs(ctx, 42, appKey, userKey, publisherID)
//	})
//
// # Negative Caching
//
// A policy with a Negative value never surfaces fetch errors: the sentinel is
// cached with the same TTL as a successful result, so a merchant that the
// remote rejects is not queried again until the entry expires. A policy
// without one returns the error and caches nothing, so the next call retries.
//
// # Encoding
//
// Values are encoded with msgpack before they reach the Store, so the same
// entries can live in the in-process sturdyc store or in Redis.
//
// # Concurrency
//
// The layer takes no locks around population. Concurrent requests may race
// to fill the same key and the last writer wins, which is acceptable because
// every value is an idempotent recomputation of the same remote query.
// Within one process, concurrent misses for a key share a single fetch.
package cache
