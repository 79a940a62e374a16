// Package search executes remote product searches in ID lookup and query
// mode, reconciles the results and keeps the account snapshot current.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/goliatone/go-feedcache/account"
	"github.com/goliatone/go-feedcache/api"
	"github.com/goliatone/go-feedcache/pagination"
	"github.com/goliatone/go-feedcache/pkg/logger"
	"github.com/goliatone/go-feedcache/query"
)

// Modes and outcomes reported to an Observer.
const (
	ModeIDs   = "ids"
	ModeQuery = "query"

	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Observer receives one event per search and one per returned error.
type Observer interface {
	ObserveSearch(mode, outcome string, results int, elapsed time.Duration)
	ObserveError(code int)
}

type nopObserver struct{}

func (nopObserver) ObserveSearch(string, string, int, time.Duration) {}
func (nopObserver) ObserveError(int) {}

// Executor runs searches against the remote client.
type Executor struct {
	client    api.Client
	compiler  *query.Compiler
	tracker   *account.Tracker
	observer  Observer
	logger    *slog.Logger
	adminURL  string
	assetsURL string
	timeout   time.Duration
	now       func() time.Time
}

// Option customizes an Executor.
type Option func(*Executor)

// WithObserver reports searches to o.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithAdminURL sets the host admin base URL used by placeholder links.
func WithAdminURL(u string) Option {
	return func(e *Executor) { e.adminURL = u }
}

// WithAssetsURL sets the base URL of the placeholder image.
func WithAssetsURL(u string) Option {
	return func(e *Executor) { e.assetsURL = u }
}

// WithTimeout bounds each remote search. Zero leaves the caller's deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor creates an executor. A nil client makes every search return
// an empty response.
func NewExecutor(client api.Client, compiler *query.Compiler, tracker *account.Tracker, opts ...Option) *Executor {
	e := &Executor{
		client:   client,
		compiler: compiler,
		tracker:  tracker,
		observer: nopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	if e.compiler == nil {
		e.compiler = query.NewCompiler(nil)
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "search")
	return e
}

// ProductsByID returns one page of the given product IDs. The page is cut
// from ids locally and fetched with a single "id IN" search; IDs the remote
// does not return are replaced by placeholders after the returned products.
func (e *Executor) ProductsByID(ctx context.Context, ids []string, ppp, page int) (*Response, error) {
	if len(ids) == 0 || e.client == nil {
		return &Response{}, nil
	}
	ctx, log := e.begin(ctx)
	start := e.now()

	snap, err := e.tracker.Snapshot(ctx)
	if err != nil {
		return nil, e.fail(ctx, ModeIDs, start, err, nil)
	}
	plan := pagination.ForIDs(page, ppp, pagination.LimitsFrom(snap))
	if plan.Empty() {
		log.Debug("page outside account limits", "page", page, "ppp", ppp)
		e.observer.ObserveSearch(ModeIDs, OutcomeEmpty, 0, e.now().Sub(start))
		return &Response{}, nil
	}

	window := slice(ids, plan.Offset, plan.PageSize)
	if len(window) == 0 {
		e.observer.ObserveSearch(ModeIDs, OutcomeEmpty, 0, e.now().Sub(start))
		return &Response{
			IDs:        []string{},
			Products:   []api.Product{},
			LastStatus: e.client.LastStatus(),
		}, nil
	}

	compiled, err := e.compiler.Compile(ctx, nil, true)
	if err != nil {
		return nil, e.fail(ctx, ModeIDs, start, err, nil)
	}

	req := e.client.SearchRequest()
	filters := append(append([]query.Filter(nil), compiled.Filters...), query.In("id", window...))
	applyFilters(req, filters)
	req.SetLimit(plan.PageSize)

	log.Debug("searching by id", "ids", len(window), "offset", plan.Offset, "fingerprint", fingerprint(filters))
	products, err := e.execute(ctx, req)
	if err != nil {
		return nil, e.fail(ctx, ModeIDs, start, err, nil)
	}
	e.tracker.Observe(ctx, e.client)

	result := append([]api.Product(nil), products...)
	if len(products) > 0 {
		for _, id := range missing(window, products) {
			result = append(result, e.placeholder(id))
		}
	}

	e.observer.ObserveSearch(ModeIDs, OutcomeOK, len(result), e.now().Sub(start))
	return &Response{
		IDs:        ids,
		Products:   result,
		LastStatus: e.client.LastStatus(),
		FoundCount: len(ids),
		Params:     req.Params(),
		Score:      req.QueryScore(),
	}, nil
}

// ProductsByQuery runs a paginated query. excluded product IDs are filtered
// out remotely.
func (e *Executor) ProductsByQuery(ctx context.Context, clauses query.Clauses, ppp, page int, excluded []string) (*Response, error) {
	if len(clauses) == 0 || e.client == nil {
		return &Response{}, nil
	}
	ctx, log := e.begin(ctx)
	start := e.now()

	snap, err := e.tracker.Snapshot(ctx)
	if err != nil {
		return nil, e.fail(ctx, ModeQuery, start, err, nil)
	}
	directives := query.ExtractDirectives(clauses)
	plan := pagination.ForQuery(page, ppp, directives.DeclaredLimit, pagination.LimitsFrom(snap))
	if plan.Empty() {
		log.Debug("page outside query or account limits", "page", page, "ppp", ppp)
		e.observer.ObserveSearch(ModeQuery, OutcomeEmpty, 0, e.now().Sub(start))
		return &Response{}, nil
	}

	req := e.client.SearchRequest()

	compiled, err := e.compiler.Compile(ctx, clauses, true)
	if err != nil {
		var compileErr *query.CompileError
		if errors.As(err, &compileErr) {
			applyFilters(req, compileErr.Partial.Filters)
		}
		return nil, e.fail(ctx, ModeQuery, start, err, req.Params())
	}

	filters := append([]query.Filter(nil), compiled.Filters...)
	if len(excluded) > 0 {
		filters = append(filters, query.NotIn("id", excluded...))
	}
	applyFilters(req, filters)
	if compiled.ExcludeDuplicatesBy != "" {
		req.ExcludeDuplicates(compiled.ExcludeDuplicatesBy)
	}
	if compiled.SortExpression != "" {
		req.AddSort(compiled.SortExpression)
	}
	req.SetMerchantLimit(compiled.MerchantLimit)
	req.SetLimit(plan.PageSize)
	req.SetOffset(plan.Offset)

	log.Debug("searching by query", "filters", len(filters), "offset", plan.Offset, "limit", plan.PageSize, "fingerprint", fingerprint(filters))
	products, err := e.execute(ctx, req)
	if err != nil {
		return nil, e.fail(ctx, ModeQuery, start, err, req.Params())
	}
	e.tracker.Observe(ctx, e.client)

	e.observer.ObserveSearch(ModeQuery, OutcomeOK, len(products), e.now().Sub(start))
	return &Response{
		Query:      clauses,
		Excluded:   excluded,
		Products:   products,
		LastStatus: e.client.LastStatus(),
		FoundCount: req.ResultCount(),
		Params:     req.Params(),
		Score:      req.QueryScore(),
	}, nil
}

func (e *Executor) begin(ctx context.Context) (context.Context, *slog.Logger) {
	if _, ok := logger.RequestID(ctx); !ok {
		ctx = logger.WithRequestID(ctx, uuid.NewString())
	}
	return ctx, logger.FromContext(ctx, e.logger)
}

func (e *Executor) fail(ctx context.Context, mode string, start time.Time, err error, params map[string]any) error {
	env := e.tracker.Envelope(ctx, err, params)
	logger.FromContext(ctx, e.logger).Warn("search failed",
		"mode", mode,
		"class", env.Class,
		"code", env.Code,
		"error", env.Message,
	)
	e.observer.ObserveError(env.Code)
	e.observer.ObserveSearch(mode, OutcomeError, 0, e.now().Sub(start))
	return env
}

func applyFilters(req api.SearchRequest, filters []query.Filter) {
	for _, f := range filters {
		req.AddFilter(f.String())
	}
}

// fingerprint identifies a filter set in logs so repeated queries can be
// correlated without logging every filter.
func fingerprint(filters []query.Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.String()
	}
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(parts, "\n")), 16)
}

func (e *Executor) execute(ctx context.Context, req api.SearchRequest) ([]api.Product, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return req.Execute(ctx)
}

func slice(ids []string, offset, size int) []string {
	if offset < 0 || size < 1 || offset >= len(ids) {
		return nil
	}
	end := offset + size
	if end > len(ids) || end < offset {
		end = len(ids)
	}
	return ids[offset:end]
}
