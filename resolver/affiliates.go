package resolver

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/goliatone/go-feedcache/cache"
)

// Sentinels cached in place of an identifier that could not be resolved.
const (
	UnapprovedZanoxMerchant       = "dfrapi_unapproved_zanox_merchant"
	UnapprovedPartnerizeMerchant  = "dfrapi_unapproved_ph_merchant"
	UnapprovedEffiliationMerchant = "dfrapi_unapproved_effiliation_merchant"
)

const (
	effiliationIDsKey = "effiliation_affiliate_ids"
	effiliationIDsTTL = 20 * time.Minute
)

var (
	partnerizeNetworkIDs  = []int{801, 811, 812, 813, 814, 815, 816, 817, 818, 819, 820}
	effiliationNetworkIDs = []int{805, 806, 807}
)

// ErrUnknownSuid is the fetch error when the Effiliation listing has no
// affiliate ID for the merchant's suid.
var ErrUnknownSuid = errors.New("suid does not exist for affiliate id")

// PartnerizeNetworkIDs returns the network IDs served by Partnerize.
func PartnerizeNetworkIDs() []int { return slices.Clone(partnerizeNetworkIDs) }

// EffiliationNetworkIDs returns the network IDs served by Effiliation.
func EffiliationNetworkIDs() []int { return slices.Clone(effiliationNetworkIDs) }

func IsPartnerizeNetwork(networkID int) bool {
	return slices.Contains(partnerizeNetworkIDs, networkID)
}

func IsEffiliationNetwork(networkID int) bool {
	return slices.Contains(effiliationNetworkIDs, networkID)
}

// ZanoxMerchantID returns the zmid of a merchant for an ad space, or
// UnapprovedZanoxMerchant.
func (r *Resolver) ZanoxMerchantID(ctx context.Context, merchantID int, adspaceID string) string {
	key := r.keys.SerializeKey("zmid", merchantID, adspaceID)
	return r.identifier(ctx, key, "zanox_merchant_id", UnapprovedZanoxMerchant, func(ctx context.Context) (string, error) {
		if r.affiliates == nil {
			return "", ErrNoAffiliateClient
		}
		return r.affiliates.GetZanoxMerchantIDs(ctx, merchantID, adspaceID, r.credentials.ZanoxConnectionKey)
	})
}

// PartnerizeCamref returns the camref of a merchant, or
// UnapprovedPartnerizeMerchant.
func (r *Resolver) PartnerizeCamref(ctx context.Context, merchantID int) string {
	key := r.keys.SerializeKey("camref", merchantID)
	return r.identifier(ctx, key, "partnerize_camref", UnapprovedPartnerizeMerchant, func(ctx context.Context) (string, error) {
		if r.affiliates == nil {
			return "", ErrNoAffiliateClient
		}
		c := r.credentials
		return r.affiliates.GetPerformanceHorizonCamrefs(ctx, merchantID, c.PartnerizeApplicationKey, c.PartnerizeUserAPIKey, c.PartnerizePublisherID)
	})
}

// EffiliationAffiliateID returns the affiliate ID matching the merchant's
// suid in the Effiliation listing, or UnapprovedEffiliationMerchant.
func (r *Resolver) EffiliationAffiliateID(ctx context.Context, merchantID int) string {
	key := r.keys.SerializeKey("effiliation", merchantID)
	return r.identifier(ctx, key, "effiliation_affiliate_id", UnapprovedEffiliationMerchant, func(ctx context.Context) (string, error) {
		merchants, err := r.MerchantByID(ctx, strconv.Itoa(merchantID), false)
		if err != nil {
			return "", err
		}
		suid := ""
		if len(merchants) > 0 {
			suid = merchants[0].Suids
		}

		ids, err := r.EffiliationAffiliateIDs(ctx)
		if err != nil {
			return "", err
		}
		id, ok := ids[suid]
		if !ok {
			return "", ErrUnknownSuid
		}
		return id, nil
	})
}

// EffiliationAffiliateIDs returns the publisher's Effiliation affiliate IDs
// keyed by suid.
func (r *Resolver) EffiliationAffiliateIDs(ctx context.Context) (map[string]string, error) {
	policy := cache.Policy[map[string]string]{
		Name:  "effiliation_affiliate_ids",
		TTL:   effiliationIDsTTL,
		Empty: func(m map[string]string) bool { return len(m) == 0 },
	}
	return cache.Memoize(ctx, r.memo, effiliationIDsKey, policy, func(ctx context.Context) (map[string]string, error) {
		if r.feed == nil {
			return nil, ErrNoEffiliationFeed
		}
		return r.feed.AffiliateIDs(ctx, r.credentials.EffiliationKey)
	})
}

func (r *Resolver) identifier(ctx context.Context, key, lookup, sentinel string, fetch cache.FetchFn[string]) string {
	policy := cache.Policy[string]{
		Name:     lookup,
		TTL:      cache.Week,
		Negative: &sentinel,
		Empty:    isEmptyString,
	}
	id, err := cache.Memoize(ctx, r.memo, key, policy, func(ctx context.Context) (string, error) {
		id, err := fetch(ctx)
		if err == nil && id == "" {
			return "", errors.New("empty identifier")
		}
		return id, err
	})
	if err != nil {
		r.logger.Error("identifier lookup failed", "lookup", lookup, "key", key, "error", err)
		return sentinel
	}
	return id
}
