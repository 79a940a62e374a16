package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Lookup outcomes reported to an Observer.
const (
	OutcomeHit      = "hit"
	OutcomeNegative = "negative_hit"
	OutcomeMiss     = "miss"
	OutcomeFailure  = "failure"
)

// FetchFn is the function signature Memoize expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Observer receives one outcome per memoized lookup.
type Observer interface {
	ObserveLookup(lookup, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveLookup(string, string) {}

// Policy describes how one kind of lookup is cached.
type Policy[T any] struct {
	// Name labels the lookup in logs and metrics.
	Name string

	// TTL applies to positive and negative entries alike.
	TTL time.Duration

	// Negative, when set, is cached and returned in place of a fetch error.
	// A nil Negative propagates the error and caches nothing.
	Negative *T

	// Empty reports values that must be treated as a miss when read back,
	// e.g. an empty merchant list. Nil treats every stored value as a hit.
	Empty func(T) bool
}

func (p Policy[T]) isEmpty(v T) bool {
	return p.Empty != nil && p.Empty(v)
}

// Memoizer implements the cache-aside read path shared by every resolver.
type Memoizer struct {
	store    Store
	registry *Registry
	group    singleflight.Group
	observer Observer
	logger   *slog.Logger
	timeout  time.Duration
}

// MemoizerOption customizes a Memoizer.
type MemoizerOption func(*Memoizer)

// WithObserver reports lookup outcomes to o.
func WithObserver(o Observer) MemoizerOption {
	return func(m *Memoizer) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithLogger sets the logger used for cache read and write failures.
func WithLogger(l *slog.Logger) MemoizerOption {
	return func(m *Memoizer) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithFetchTimeout bounds every fetch run on a miss. Zero leaves the
// caller's deadline.
func WithFetchTimeout(d time.Duration) MemoizerOption {
	return func(m *Memoizer) { m.timeout = d }
}

// NewMemoizer creates a Memoizer over store. Keys are recorded in registry.
func NewMemoizer(store Store, registry *Registry, opts ...MemoizerOption) *Memoizer {
	m := &Memoizer{
		store:    store,
		registry: registry,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "memoizer")
	return m
}

// Store returns the underlying store.
func (m *Memoizer) Store() Store {
	return m.store
}

// Registry returns the key registry.
func (m *Memoizer) Registry() *Registry {
	return m.registry
}

// Memoize returns the value cached under key, or runs fetch and caches its
// result for p.TTL. Fetch failures are cached as p.Negative when the policy
// defines one. Concurrent misses for the same key in this process share a
// single fetch.
func Memoize[T any](ctx context.Context, m *Memoizer, key string, p Policy[T], fetch FetchFn[T]) (T, error) {
	if entry, ok := readEntry[T](ctx, m, key); ok && (entry.Negative || !p.isEmpty(entry.Value)) {
		if entry.Negative {
			m.observer.ObserveLookup(p.Name, OutcomeNegative)
		} else {
			m.observer.ObserveLookup(p.Name, OutcomeHit)
		}
		m.register(ctx, key)
		return entry.Value, nil
	}

	result, err, _ := m.group.Do(key, func() (any, error) {
		fctx := ctx
		if m.timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}
		value, err := fetch(fctx)
		if err != nil {
			if p.Negative == nil {
				return nil, err
			}
			m.logger.Warn("lookup failed, caching negative result", "lookup", p.Name, "key", key, "error", err)
			entry := Entry[T]{Value: *p.Negative, Negative: true}
			m.writeEntry(ctx, key, entry, p.TTL)
			return entry, nil
		}
		entry := Entry[T]{Value: value}
		m.writeEntry(ctx, key, entry, p.TTL)
		return entry, nil
	})
	if err != nil {
		m.observer.ObserveLookup(p.Name, OutcomeFailure)
		var zero T
		return zero, err
	}

	entry, ok := result.(Entry[T])
	if !ok {
		var zero T
		return zero, ErrInvalidResultType
	}
	if entry.Negative {
		m.observer.ObserveLookup(p.Name, OutcomeFailure)
	} else {
		m.observer.ObserveLookup(p.Name, OutcomeMiss)
	}
	m.register(ctx, key)
	return entry.Value, nil
}

func readEntry[T any](ctx context.Context, m *Memoizer, key string) (Entry[T], bool) {
	entry, ok, err := Load[Entry[T]](ctx, m.store, key)
	if err != nil {
		m.logger.Error("cache get failed", "key", key, "error", err)
		return Entry[T]{}, false
	}
	return entry, ok
}

func (m *Memoizer) writeEntry(ctx context.Context, key string, entry any, ttl time.Duration) {
	if err := Save(ctx, m.store, key, entry, ttl); err != nil {
		m.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (m *Memoizer) register(ctx context.Context, key string) {
	if m.registry == nil {
		return
	}
	if err := m.registry.Register(ctx, key); err != nil {
		m.logger.Error("cache key registration failed", "key", key, "error", err)
	}
}
