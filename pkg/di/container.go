// Package di wires the stores, trackers, executors and resolvers described
// by a config.Config into one container.
package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-feedcache/account"
	"github.com/goliatone/go-feedcache/api"
	"github.com/goliatone/go-feedcache/cache"
	"github.com/goliatone/go-feedcache/config"
	"github.com/goliatone/go-feedcache/internal/cacheinfra"
	"github.com/goliatone/go-feedcache/metrics"
	"github.com/goliatone/go-feedcache/options"
	"github.com/goliatone/go-feedcache/pkg/logger"
	"github.com/goliatone/go-feedcache/query"
	"github.com/goliatone/go-feedcache/resolver"
	"github.com/goliatone/go-feedcache/search"
)

// Container provides dependency injection for the feed cache components.
// It owns the connections it opens and releases them in Close.
type Container struct {
	config   *config.Config
	logger   *slog.Logger
	store    cache.Store
	options  options.Store
	memo     *cache.Memoizer
	tracker  *account.Tracker
	compiler *query.Compiler
	executor *search.Executor
	resolver *resolver.Resolver
	metrics  *metrics.Metrics

	closers []func() error
}

type settings struct {
	affiliates api.AffiliateClient
	feed       resolver.EffiliationFeed
	registerer prometheus.Registerer
	logger     *slog.Logger
	now        func() time.Time
	store      cache.Store
	options    options.Store
}

// Option customizes NewContainer.
type Option func(*settings)

// WithAffiliateClient sets the Zanox and Partnerize client.
func WithAffiliateClient(c api.AffiliateClient) Option {
	return func(s *settings) { s.affiliates = c }
}

// WithEffiliationFeed replaces the HTTP Effiliation feed.
func WithEffiliationFeed(f resolver.EffiliationFeed) Option {
	return func(s *settings) { s.feed = f }
}

// WithRegisterer registers metrics with reg instead of the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}

// WithLogger sets the base logger of every component. Without it the
// container builds one from the logging section of the config.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithClock sets the clock deciding memory store expiry.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithStore uses store instead of the configured cache backend.
func WithStore(store cache.Store) Option {
	return func(s *settings) { s.store = store }
}

// WithOptionsStore uses store instead of the configured options backend.
func WithOptionsStore(store options.Store) Option {
	return func(s *settings) { s.options = store }
}

// NewContainer validates cfg and builds every component. client is the
// remote product API client and may be nil, in which case searches return
// empty responses and listings fail with an error envelope.
func NewContainer(ctx context.Context, cfg *config.Config, client api.Client, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := settings{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	}

	c := &Container{config: cfg, logger: s.logger}

	if err := c.openStore(ctx, s); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.openOptions(ctx, s); err != nil {
		c.Close()
		return nil, err
	}

	memoOpts := []cache.MemoizerOption{
		cache.WithLogger(s.logger),
		cache.WithFetchTimeout(cfg.API.Timeout),
	}
	searchOpts := []search.Option{
		search.WithLogger(s.logger),
		search.WithTimeout(cfg.API.Timeout),
		search.WithAdminURL(cfg.API.AdminURL),
		search.WithAssetsURL(cfg.API.AssetsURL),
	}
	resolverOpts := []resolver.Option{
		resolver.WithLogger(s.logger),
		resolver.WithAffiliateClient(s.affiliates),
		resolver.WithCredentials(resolver.Credentials{
			ZanoxConnectionKey:       cfg.Affiliates.ZanoxConnectionKey,
			PartnerizeApplicationKey: cfg.Affiliates.PartnerizeApplicationKey,
			PartnerizeUserAPIKey:     cfg.Affiliates.PartnerizeUserAPIKey,
			PartnerizePublisherID:    cfg.Affiliates.PartnerizePublisherID,
			EffiliationKey:           cfg.Affiliates.EffiliationKey,
		}),
	}

	if cfg.Metrics.Enabled {
		c.metrics = metrics.New(s.registerer)
		memoOpts = append(memoOpts, cache.WithObserver(c.metrics))
		searchOpts = append(searchOpts, search.WithObserver(c.metrics))
		resolverOpts = append(resolverOpts, resolver.WithClearObserver(c.metrics))
	}

	feed := s.feed
	if feed == nil {
		feed = resolver.NewHTTPEffiliationFeed(nil)
	}
	resolverOpts = append(resolverOpts, resolver.WithEffiliationFeed(feed))

	c.memo = cache.NewMemoizer(c.store, cache.NewRegistry(c.store, s.logger), memoOpts...)
	c.tracker = account.NewTracker(c.options, s.logger)
	c.compiler = query.NewCompiler(query.StaticSelection{
		NetworkIDs:  cfg.Selection.NetworkIDs,
		MerchantIDs: cfg.Selection.MerchantIDs,
		Required:    cfg.Selection.Required,
	})
	c.executor = search.NewExecutor(client, c.compiler, c.tracker, searchOpts...)
	c.resolver = resolver.New(c.memo, client, c.tracker, c.options, resolverOpts...)

	return c, nil
}

func (c *Container) openStore(ctx context.Context, s settings) error {
	if s.store != nil {
		c.store = s.store
		return nil
	}

	switch c.config.Cache.Backend {
	case config.BackendRedis:
		r := c.config.Redis
		rdb, err := cacheinfra.DialRedis(ctx, r.Addr, r.Password, r.DB, r.PoolSize)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, rdb.Close)
		c.store = cacheinfra.NewRedisStore(rdb, r.KeyPrefix)
	default:
		store, err := cache.NewMemoryStore(c.config.Cache.Store(), s.now)
		if err != nil {
			return fmt.Errorf("creating memory store: %w", err)
		}
		c.store = store
	}
	return nil
}

func (c *Container) openOptions(ctx context.Context, s settings) error {
	if s.options != nil {
		c.options = s.options
		return nil
	}

	switch c.config.Options.Backend {
	case config.BackendSQLite, config.BackendPostgres:
		store, err := options.OpenSQL(ctx, c.config.Options.Backend, c.config.Options.DSN)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, store.Close)
		c.options = store
	default:
		c.options = options.NewMemory()
	}
	return nil
}

// Close releases every connection opened by the container.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Config returns the configuration the container was built from.
func (c *Container) Config() *config.Config { return c.config }

// Store returns the cache store.
func (c *Container) Store() cache.Store { return c.store }

// Options returns the host option store.
func (c *Container) Options() options.Store { return c.options }

// Memoizer returns the shared memoizer.
func (c *Container) Memoizer() *cache.Memoizer { return c.memo }

// Tracker returns the account quota tracker.
func (c *Container) Tracker() *account.Tracker { return c.tracker }

// Compiler returns the query compiler with the configured selection.
func (c *Container) Compiler() *query.Compiler { return c.compiler }

// Executor returns the search executor.
func (c *Container) Executor() *search.Executor { return c.executor }

// Resolver returns the lookup resolver.
func (c *Container) Resolver() *resolver.Resolver { return c.resolver }

// Metrics returns the collectors, or nil when metrics are disabled.
func (c *Container) Metrics() *metrics.Metrics { return c.metrics }
