// Package resolver caches the lookups that sit next to product search:
// network and merchant listings and the network specific affiliate
// identifiers needed to build tracking links.
//
// Every lookup goes through cache.Memoize. Listings propagate remote errors
// as *api.ErrorEnvelope and are never cached when they fail. Affiliate
// identifiers never fail: an unresolvable merchant yields a sentinel string,
// which is cached for as long as a real identifier would be.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/goliatone/go-feedcache/account"
	"github.com/goliatone/go-feedcache/api"
	"github.com/goliatone/go-feedcache/cache"
	"github.com/goliatone/go-feedcache/options"
)

// Credentials are the affiliate network keys used by identifier lookups.
type Credentials struct {
	ZanoxConnectionKey       string
	PartnerizeApplicationKey string
	PartnerizeUserAPIKey     string
	PartnerizePublisherID    string
	EffiliationKey           string
}

var (
	// ErrNoClient is the fetch error of listings when no product API client is configured.
	ErrNoClient = errors.New("product api client not configured")
	// ErrNoAffiliateClient is the fetch error when no affiliate client is configured.
	ErrNoAffiliateClient = errors.New("affiliate client not configured")
	// ErrNoEffiliationFeed is the fetch error when no Effiliation feed is configured.
	ErrNoEffiliationFeed = errors.New("effiliation feed not configured")
)

// ClearObserver is notified after a bulk clear.
type ClearObserver interface {
	ObserveClear(keys int)
}

// Resolver serves memoized lookups.
type Resolver struct {
	memo        *cache.Memoizer
	keys        cache.KeySerializer
	client      api.Client
	affiliates  api.AffiliateClient
	feed        EffiliationFeed
	tracker     *account.Tracker
	options     options.Store
	credentials Credentials
	clears      ClearObserver
	logger      *slog.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithAffiliateClient sets the client used for Zanox and Partnerize lookups.
func WithAffiliateClient(c api.AffiliateClient) Option {
	return func(r *Resolver) { r.affiliates = c }
}

// WithEffiliationFeed sets the source of Effiliation affiliate IDs.
func WithEffiliationFeed(f EffiliationFeed) Option {
	return func(r *Resolver) { r.feed = f }
}

// WithCredentials sets the affiliate network keys.
func WithCredentials(c Credentials) Option {
	return func(r *Resolver) { r.credentials = c }
}

// WithClearObserver reports bulk clears to o.
func WithClearObserver(o ClearObserver) Option {
	return func(r *Resolver) { r.clears = o }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a resolver. Network partitions are written to store. A nil
// client makes every listing fail with an envelope carrying the
// ErrNoClient message.
func New(memo *cache.Memoizer, client api.Client, tracker *account.Tracker, store options.Store, opts ...Option) *Resolver {
	r := &Resolver{
		memo:    memo,
		keys:    cache.NewDefaultKeySerializer(),
		client:  client,
		tracker: tracker,
		options: store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "resolver")
	return r
}

// ClearCache deletes every cached lookup and returns the number of keys
// deleted.
func (r *Resolver) ClearCache(ctx context.Context) (int, error) {
	n, err := r.memo.Registry().ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	if r.clears != nil {
		r.clears.ObserveClear(n)
	}
	return n, nil
}

// envelope converts a listing failure to the error object returned to callers.
func (r *Resolver) envelope(ctx context.Context, err error) error {
	var env *api.ErrorEnvelope
	if errors.As(err, &env) {
		return env
	}
	return r.tracker.Envelope(ctx, err, nil)
}

func isEmptySlice[T any](v []T) bool { return len(v) == 0 }

func isEmptyString(v string) bool { return v == "" }
