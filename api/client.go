// Package api describes the boundary between this module and the remote
// product-search service. Transport, retries and authentication live behind
// these interfaces; nothing in this module speaks HTTP to the product API.
package api

import "context"

// Status is the account snapshot reported by the remote service after a call.
type Status struct {
	UserID        int `json:"user_id" msgpack:"user_id"`
	PlanID        int `json:"plan_id" msgpack:"plan_id"`
	BillDay       int `json:"bill_day" msgpack:"bill_day"`
	MaxTotal      int `json:"max_total" msgpack:"max_total"`
	MaxLength     int `json:"max_length" msgpack:"max_length"`
	MaxRequests   int `json:"max_requests" msgpack:"max_requests"`
	RequestCount  int `json:"request_count" msgpack:"request_count"`
	NetworkCount  int `json:"network_count" msgpack:"network_count"`
	ProductCount  int `json:"product_count" msgpack:"product_count"`
	MerchantCount int `json:"merchant_count" msgpack:"merchant_count"`
}

// Network types reported in Network.Type.
const (
	NetworkTypeProducts = "products"
	NetworkTypeCoupons  = "coupons"
)

// Network is an affiliate network (a product or coupon source).
type Network struct {
	ID            int    `json:"_id" msgpack:"_id"`
	Name          string `json:"name" msgpack:"name"`
	Group         string `json:"group" msgpack:"group"`
	Type          string `json:"type" msgpack:"type"`
	MerchantCount int    `json:"merchant_count" msgpack:"merchant_count"`
	ProductCount  int    `json:"product_count" msgpack:"product_count"`
}

// Merchant is a merchant listed on an affiliate network.
type Merchant struct {
	ID           int    `json:"_id" msgpack:"_id"`
	Name         string `json:"name" msgpack:"name"`
	SourceID     int    `json:"source_id" msgpack:"source_id"`
	Source       string `json:"source" msgpack:"source"`
	Suids        string `json:"suids" msgpack:"suids"`
	ProductCount int    `json:"product_count" msgpack:"product_count"`
}

// Product is a single search record. Unavailable placeholders carry WCURL and
// never URL, so importers do not treat them as live products.
type Product struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	FinalPrice  int64  `json:"finalprice"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Merchant    string `json:"merchant"`
	Source      string `json:"source"`
	URL         string `json:"url,omitempty"`
	WCURL       string `json:"_wc_url,omitempty"`
}

// Client is the subset of the remote API client this module depends on.
type Client interface {
	GetStatus(ctx context.Context) (*Status, error)
	GetNetworks(ctx context.Context, ids []int, includeEmpty bool) ([]Network, error)
	GetMerchants(ctx context.Context, networkIDs []int, includeEmpty bool) ([]Merchant, error)
	GetMerchantsByID(ctx context.Context, ids []int, includeEmpty bool) ([]Merchant, error)
	SearchRequest() SearchRequest
	// LastStatus returns the status observed on the most recent call, or nil.
	LastStatus() *Status
}

// SearchRequest builds and executes one remote search. Filter and sort
// expressions use the remote's string grammar.
type SearchRequest interface {
	AddFilter(expr string)
	ExcludeDuplicates(mode string)
	AddSort(expr string)
	SetMerchantLimit(n int)
	SetLimit(n int)
	SetOffset(n int)
	Execute(ctx context.Context) ([]Product, error)
	Params() map[string]any
	QueryScore() int
	ResultCount() int
}

// AffiliateClient resolves network specific affiliate identifiers.
type AffiliateClient interface {
	GetZanoxMerchantIDs(ctx context.Context, merchantID int, adspaceID, connectionKey string) (string, error)
	GetPerformanceHorizonCamrefs(ctx context.Context, merchantID int, applicationKey, userAPIKey, publisherID string) (string, error)
}
