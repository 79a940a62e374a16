// Package account tracks the last known remote account snapshot: request
// quota and the server side paging ceilings the planner works within.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/goliatone/go-feedcache/api"
	"github.com/goliatone/go-feedcache/options"
)

// Snapshot is the persisted copy of the most recent remote status.
type Snapshot struct {
	UserID        int `msgpack:"user_id"`
	PlanID        int `msgpack:"plan_id"`
	BillDay       int `msgpack:"bill_day"`
	MaxTotal      int `msgpack:"max_total"`
	MaxLength     int `msgpack:"max_length"`
	MaxRequests   int `msgpack:"max_requests"`
	RequestCount  int `msgpack:"request_count"`
	NetworkCount  int `msgpack:"network_count"`
	ProductCount  int `msgpack:"product_count"`
	MerchantCount int `msgpack:"merchant_count"`
}

// FromStatus copies every status field into a snapshot.
func FromStatus(s api.Status) Snapshot {
	return Snapshot{
		UserID:        s.UserID,
		PlanID:        s.PlanID,
		BillDay:       s.BillDay,
		MaxTotal:      s.MaxTotal,
		MaxLength:     s.MaxLength,
		MaxRequests:   s.MaxRequests,
		RequestCount:  s.RequestCount,
		NetworkCount:  s.NetworkCount,
		ProductCount:  s.ProductCount,
		MerchantCount: s.MerchantCount,
	}
}

// StatusReader is the part of the remote client needed to refresh status.
type StatusReader interface {
	GetStatus(ctx context.Context) (*api.Status, error)
	LastStatus() *api.Status
}

// Tracker reads and overwrites the snapshot in the option store. Writes are
// unsynchronized; the last status written wins.
type Tracker struct {
	options options.Store
	logger  *slog.Logger
}

// NewTracker creates a tracker persisting to store.
func NewTracker(store options.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		options: store,
		logger:  logger.With("component", "account-tracker"),
	}
}

// Snapshot returns the stored snapshot. A snapshot that was never written is
// the zero value, which makes every page plan empty.
func (t *Tracker) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if _, err := t.options.Load(ctx, options.AccountOption, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("loading account snapshot: %w", err)
	}
	return snap, nil
}

// Update overwrites the snapshot with status. A nil status is ignored.
func (t *Tracker) Update(ctx context.Context, status *api.Status) error {
	if status == nil {
		return nil
	}
	if err := t.options.Save(ctx, options.AccountOption, FromStatus(*status)); err != nil {
		return fmt.Errorf("saving account snapshot: %w", err)
	}
	return nil
}

// Observe updates the snapshot from the client's last status, logging
// instead of failing so a completed remote call is never discarded.
func (t *Tracker) Observe(ctx context.Context, client StatusReader) {
	if client == nil {
		return
	}
	if err := t.Update(ctx, client.LastStatus()); err != nil {
		t.logger.Error("account snapshot update failed", "error", err)
	}
}

// MarkExhausted forces RequestCount to MaxRequests. The remote signals quota
// exhaustion before a fresh status can be read, so usage would otherwise
// keep showing the stale count.
func (t *Tracker) MarkExhausted(ctx context.Context) error {
	snap, err := t.Snapshot(ctx)
	if err != nil {
		return err
	}
	snap.RequestCount = snap.MaxRequests
	if err := t.options.Save(ctx, options.AccountOption, snap); err != nil {
		return fmt.Errorf("saving account snapshot: %w", err)
	}
	return nil
}

// Envelope converts err into the uniform error object, applying the quota
// exhaustion correction first.
func (t *Tracker) Envelope(ctx context.Context, err error, params map[string]any) *api.ErrorEnvelope {
	env := api.NewErrorEnvelope(err, params)
	if env.Code == api.CodeQuotaExhausted {
		if markErr := t.MarkExhausted(ctx); markErr != nil {
			t.logger.Error("marking quota exhausted failed", "error", markErr)
		}
	}
	return env
}

// FetchStatus asks the remote service for a fresh status and stores it.
func (t *Tracker) FetchStatus(ctx context.Context, client StatusReader) (*api.Status, error) {
	status, err := client.GetStatus(ctx)
	if err != nil {
		return nil, t.Envelope(ctx, err, nil)
	}
	t.Observe(ctx, client)
	return status, nil
}

// NetworkCount returns the number of networks known to the remote service.
func (t *Tracker) NetworkCount(ctx context.Context) int {
	return abs(t.snapshotOrZero(ctx).NetworkCount)
}

// MerchantCount returns the number of merchants known to the remote service.
func (t *Tracker) MerchantCount(ctx context.Context) int {
	return abs(t.snapshotOrZero(ctx).MerchantCount)
}

// ProductCount returns the number of products known to the remote service.
func (t *Tracker) ProductCount(ctx context.Context) int {
	return abs(t.snapshotOrZero(ctx).ProductCount)
}

// MaxRequests is the request allowance for the current billing period.
func (t *Tracker) MaxRequests(ctx context.Context) int {
	return abs(t.snapshotOrZero(ctx).MaxRequests)
}

// RequestCount is the number of requests made in the current billing period.
func (t *Tracker) RequestCount(ctx context.Context) int {
	return abs(t.snapshotOrZero(ctx).RequestCount)
}

// UsagePercentage returns request usage rounded to precision decimals, or 0
// when the allowance is unknown.
func (t *Tracker) UsagePercentage(ctx context.Context, precision int) float64 {
	snap := t.snapshotOrZero(ctx)
	maxRequests := abs(snap.MaxRequests)
	if maxRequests == 0 {
		return 0
	}
	pct := float64(abs(snap.RequestCount)) / float64(maxRequests) * 100
	scale := math.Pow(10, float64(precision))
	return math.Round(pct*scale) / scale
}

func (t *Tracker) snapshotOrZero(ctx context.Context) Snapshot {
	snap, err := t.Snapshot(ctx)
	if err != nil {
		t.logger.Error("reading account snapshot failed", "error", err)
		return Snapshot{}
	}
	return snap
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
