package testsupport

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-feedcache/api"
)

// FakeClient is an in-memory api.Client that records calls.
type FakeClient struct {
	mu sync.Mutex

	Status        *api.Status
	StatusErr     error
	Networks      []api.Network
	NetworksErr   error
	Merchants     map[int][]api.Merchant
	MerchantsErr  error
	MerchantsByID []api.Merchant
	ByIDErr       error

	// Products is the catalog searched by id filters. Missing IDs simulate
	// products the remote can no longer return.
	Products  []api.Product
	SearchErr error

	// ResultCount is reported by every search; zero reports the number of
	// returned products.
	ResultCount int

	calls    map[string]int
	searches []*FakeSearch
}

// NewFakeClient returns a client that reports DefaultStatus after each call.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Status:    DefaultStatus(),
		Merchants: map[int][]api.Merchant{},
		calls:     map[string]int{},
	}
}

func (c *FakeClient) record(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[method]++
}

// Calls returns how many times method was invoked.
func (c *FakeClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Searches returns every search request built so far.
func (c *FakeClient) Searches() []*FakeSearch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FakeSearch(nil), c.searches...)
}

// LastSearch returns the most recent search request, or nil.
func (c *FakeClient) LastSearch() *FakeSearch {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.searches) == 0 {
		return nil
	}
	return c.searches[len(c.searches)-1]
}

func (c *FakeClient) GetStatus(ctx context.Context) (*api.Status, error) {
	c.record("GetStatus")
	if c.StatusErr != nil {
		return nil, c.StatusErr
	}
	return c.Status, nil
}

func (c *FakeClient) GetNetworks(ctx context.Context, ids []int, includeEmpty bool) ([]api.Network, error) {
	c.record("GetNetworks")
	if c.NetworksErr != nil {
		return nil, c.NetworksErr
	}
	if len(ids) == 0 {
		return c.Networks, nil
	}
	want := map[int]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []api.Network
	for _, n := range c.Networks {
		if want[n.ID] {
			out = append(out, n)
		}
	}
	return out, nil
}

func (c *FakeClient) GetMerchants(ctx context.Context, networkIDs []int, includeEmpty bool) ([]api.Merchant, error) {
	c.record("GetMerchants")
	if c.MerchantsErr != nil {
		return nil, c.MerchantsErr
	}
	var out []api.Merchant
	for _, id := range networkIDs {
		out = append(out, c.Merchants[id]...)
	}
	return out, nil
}

func (c *FakeClient) GetMerchantsByID(ctx context.Context, ids []int, includeEmpty bool) ([]api.Merchant, error) {
	c.record("GetMerchantsByID")
	if c.ByIDErr != nil {
		return nil, c.ByIDErr
	}
	return c.MerchantsByID, nil
}

func (c *FakeClient) SearchRequest() api.SearchRequest {
	c.record("SearchRequest")
	s := &FakeSearch{client: c}
	c.mu.Lock()
	c.searches = append(c.searches, s)
	c.mu.Unlock()
	return s
}

func (c *FakeClient) LastStatus() *api.Status {
	return c.Status
}

// FakeSearch records everything applied to a search request.
type FakeSearch struct {
	client *FakeClient

	Filters       []string
	Duplicates    string
	Sorts         []string
	MerchantLimit int
	Limit         int
	Offset        int
	Executed      bool
	// Deadline is the deadline of the context passed to Execute, if any.
	Deadline      time.Time

	returned int
}

func (s *FakeSearch) AddFilter(expr string) { s.Filters = append(s.Filters, expr) }

func (s *FakeSearch) ExcludeDuplicates(mode string) { s.Duplicates = mode }

func (s *FakeSearch) AddSort(expr string) { s.Sorts = append(s.Sorts, expr) }

func (s *FakeSearch) SetMerchantLimit(n int) { s.MerchantLimit = n }

func (s *FakeSearch) SetLimit(n int) { s.Limit = n }

func (s *FakeSearch) SetOffset(n int) { s.Offset = n }

// Execute returns catalog products matching an "id IN" filter, or the whole
// catalog windowed by limit and offset when there is none.
func (s *FakeSearch) Execute(ctx context.Context) ([]api.Product, error) {
	s.client.record("Execute")
	s.Executed = true
	s.Deadline, _ = ctx.Deadline()
	if s.client.SearchErr != nil {
		return nil, s.client.SearchErr
	}

	var out []api.Product
	if ids, ok := s.idFilter(); ok {
		for _, p := range s.client.Products {
			if ids[p.ID] {
				out = append(out, p)
			}
		}
	} else {
		out = append(out, s.client.Products...)
		if s.Offset < len(out) {
			out = out[s.Offset:]
		} else {
			out = nil
		}
	}
	if s.Limit > 0 && len(out) > s.Limit {
		out = out[:s.Limit]
	}
	s.returned = len(out)
	return out, nil
}

func (s *FakeSearch) idFilter() (map[string]bool, bool) {
	for _, f := range s.Filters {
		if rest, ok := strings.CutPrefix(f, "id IN "); ok {
			ids := map[string]bool{}
			for _, id := range strings.Split(rest, ",") {
				ids[id] = true
			}
			return ids, true
		}
	}
	return nil, false
}

func (s *FakeSearch) Params() map[string]any {
	return map[string]any{
		"query":          append([]string(nil), s.Filters...),
		"sort":           append([]string(nil), s.Sorts...),
		"limit":          s.Limit,
		"offset":         s.Offset,
		"merchant_limit": s.MerchantLimit,
	}
}

func (s *FakeSearch) QueryScore() int { return len(s.Filters) }

func (s *FakeSearch) ResultCount() int {
	if s.client.ResultCount > 0 {
		return s.client.ResultCount
	}
	return s.returned
}

// FakeAffiliates is an in-memory api.AffiliateClient.
type FakeAffiliates struct {
	mu sync.Mutex

	Zmids      map[int]string
	Camrefs    map[int]string
	calls      map[string]int
	ZanoxErr   error
	CamrefsErr error
}

// NewFakeAffiliates returns an affiliate client with no approved merchants.
func NewFakeAffiliates() *FakeAffiliates {
	return &FakeAffiliates{
		Zmids:   map[int]string{},
		Camrefs: map[int]string{},
		calls:   map[string]int{},
	}
}

// Calls returns how many times method was invoked.
func (a *FakeAffiliates) Calls(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[method]
}

func (a *FakeAffiliates) record(method string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[method]++
}

func (a *FakeAffiliates) GetZanoxMerchantIDs(ctx context.Context, merchantID int, adspaceID, connectionKey string) (string, error) {
	a.record("GetZanoxMerchantIDs")
	if a.ZanoxErr != nil {
		return "", a.ZanoxErr
	}
	if zmid, ok := a.Zmids[merchantID]; ok {
		return zmid, nil
	}
	return "", &api.RemoteError{Class: "DatafeedrError", Code: 404, Message: "merchant not approved"}
}

func (a *FakeAffiliates) GetPerformanceHorizonCamrefs(ctx context.Context, merchantID int, applicationKey, userAPIKey, publisherID string) (string, error) {
	a.record("GetPerformanceHorizonCamrefs")
	if a.CamrefsErr != nil {
		return "", a.CamrefsErr
	}
	if camref, ok := a.Camrefs[merchantID]; ok {
		return camref, nil
	}
	return "", &api.RemoteError{Class: "DatafeedrError", Code: 404, Message: "merchant not approved"}
}
