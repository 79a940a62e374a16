package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-feedcache/api"
	"github.com/goliatone/go-feedcache/cache"
	"github.com/goliatone/go-feedcache/options"
)

// Cache key prefixes of listing lookups.
const (
	networksKey       = "dfrapi_all_networks"
	merchantsKey      = "dfrapi_all_merchants_for_nid"
	merchantsByIDKey  = "dfrapi_merchants_byid"
	networksLookup    = "networks"
	merchantsLookup   = "merchants"
	merchantsByLookup = "merchants_by_id"
)

// Networks returns every network, or only ids when given. A full listing
// also rewrites the product and coupon network tables.
func (r *Resolver) Networks(ctx context.Context, ids ...int) ([]api.Network, error) {
	key := networksKey
	if len(ids) > 0 {
		key = r.keys.SerializeKey(networksKey, ids)
	}

	policy := cache.Policy[[]api.Network]{Name: networksLookup, TTL: cache.Day, Empty: isEmptySlice[api.Network]}
	networks, err := cache.Memoize(ctx, r.memo, key, policy, func(ctx context.Context) ([]api.Network, error) {
		if r.client == nil {
			return nil, ErrNoClient
		}
		networks, err := r.client.GetNetworks(ctx, ids, true)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			r.partition(ctx, networks)
		}
		r.tracker.Observe(ctx, r.client)
		return networks, nil
	})
	if err != nil {
		return nil, r.envelope(ctx, err)
	}
	return networks, nil
}

// partition splits networks by type into the product and coupon tables.
func (r *Resolver) partition(ctx context.Context, networks []api.Network) {
	products := map[int]api.Network{}
	coupons := map[int]api.Network{}
	for _, n := range networks {
		switch n.Type {
		case api.NetworkTypeProducts:
			products[n.ID] = n
		case api.NetworkTypeCoupons:
			coupons[n.ID] = n
		}
	}
	if err := r.options.Save(ctx, options.ProductNetworksOption, products); err != nil {
		r.logger.Error("saving product networks failed", "error", err)
	}
	if err := r.options.Save(ctx, options.CouponNetworksOption, coupons); err != nil {
		r.logger.Error("saving coupon networks failed", "error", err)
	}
}

// ProductNetworks returns the product networks of the last full listing,
// keyed by network ID.
func (r *Resolver) ProductNetworks(ctx context.Context) (map[int]api.Network, error) {
	return r.networkTable(ctx, options.ProductNetworksOption)
}

// CouponNetworks returns the coupon networks of the last full listing,
// keyed by network ID.
func (r *Resolver) CouponNetworks(ctx context.Context) (map[int]api.Network, error) {
	return r.networkTable(ctx, options.CouponNetworksOption)
}

func (r *Resolver) networkTable(ctx context.Context, name string) (map[int]api.Network, error) {
	table := map[int]api.Network{}
	if _, err := r.options.Load(ctx, name, &table); err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return table, nil
}

// Merchants returns every merchant of a network, including merchants
// without products.
func (r *Resolver) Merchants(ctx context.Context, networkID int) ([]api.Merchant, error) {
	key := r.keys.SerializeKey(merchantsKey, networkID)
	return r.merchants(ctx, key, merchantsLookup, func(ctx context.Context) ([]api.Merchant, error) {
		return r.client.GetMerchants(ctx, []int{networkID}, true)
	})
}

// MerchantsByID returns the merchants with the given IDs. The cache key does
// not depend on the order of ids.
func (r *Resolver) MerchantsByID(ctx context.Context, ids []int, includeEmpty bool) ([]api.Merchant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	key := r.keys.SerializeKey(merchantsByIDKey, ids)
	return r.merchants(ctx, key, merchantsByLookup, func(ctx context.Context) ([]api.Merchant, error) {
		return r.client.GetMerchantsByID(ctx, ids, includeEmpty)
	})
}

// MerchantByID returns the merchant with a single literal ID. Its cache key
// uses the trimmed literal, not a digest.
func (r *Resolver) MerchantByID(ctx context.Context, id string, includeEmpty bool) ([]api.Merchant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, r.envelope(ctx, fmt.Errorf("invalid merchant id %q: %w", id, err))
	}
	key := merchantsByIDKey + cache.KeySeparator + cache.LiteralKeySegment(id)
	return r.merchants(ctx, key, merchantsByLookup, func(ctx context.Context) ([]api.Merchant, error) {
		return r.client.GetMerchantsByID(ctx, []int{n}, includeEmpty)
	})
}

func (r *Resolver) merchants(ctx context.Context, key, lookup string, fetch cache.FetchFn[[]api.Merchant]) ([]api.Merchant, error) {
	policy := cache.Policy[[]api.Merchant]{Name: lookup, TTL: cache.Day, Empty: isEmptySlice[api.Merchant]}
	merchants, err := cache.Memoize(ctx, r.memo, key, policy, func(ctx context.Context) ([]api.Merchant, error) {
		if r.client == nil {
			return nil, ErrNoClient
		}
		merchants, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		r.tracker.Observe(ctx, r.client)
		return merchants, nil
	})
	if err != nil {
		return nil, r.envelope(ctx, err)
	}
	return merchants, nil
}
