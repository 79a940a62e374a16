package search

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-feedcache/account"
	"github.com/goliatone/go-feedcache/api"
	"github.com/goliatone/go-feedcache/options"
	"github.com/goliatone/go-feedcache/pkg/testsupport"
	"github.com/goliatone/go-feedcache/query"
)

type recordingObserver struct {
	searches []string
	codes    []int
}

func (o *recordingObserver) ObserveSearch(mode, outcome string, results int, elapsed time.Duration) {
	o.searches = append(o.searches, mode+":"+outcome)
}

func (o *recordingObserver) ObserveError(code int) {
	o.codes = append(o.codes, code)
}

type fixture struct {
	client   *testsupport.FakeClient
	tracker  *account.Tracker
	observer *recordingObserver
	executor *Executor
}

func newFixture(t *testing.T, selection query.SelectionSource) *fixture {
	t.Helper()

	client := testsupport.NewFakeClient()
	client.Products = testsupport.LoadProducts(t, testsupport.FixturePath("products.json"))

	tracker := account.NewTracker(options.NewMemory(), nil)
	if err := tracker.Update(context.Background(), testsupport.DefaultStatus()); err != nil {
		t.Fatalf("seeding account snapshot: %v", err)
	}

	observer := &recordingObserver{}
	executor := NewExecutor(client, query.NewCompiler(selection), tracker,
		WithObserver(observer),
		WithAdminURL("https://shop.example.com/wp-admin/"),
		WithAssetsURL("https://shop.example.com/wp-content/plugins/datafeedr-api/"),
	)
	return &fixture{client: client, tracker: tracker, observer: observer, executor: executor}
}

func TestProductsByID_SynthesizesPlaceholders(t *testing.T) {
	f := newFixture(t, nil)
	ids := []string{"7830309422", "1111111111", "7830309424"}

	resp, err := f.executor.ProductsByID(context.Background(), ids, 20, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.Products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(resp.Products))
	}
	if resp.Products[0].ID != "7830309422" || resp.Products[1].ID != "7830309424" {
		t.Errorf("returned products must come first: %+v", resp.Products[:2])
	}

	placeholder := resp.Products[2]
	if placeholder.ID != "1111111111" || placeholder.Merchant != "n/a" || placeholder.Source != "n/a" {
		t.Errorf("unexpected placeholder: %+v", placeholder)
	}
	if placeholder.Name != "1111111111 - Unavailable" || placeholder.Price != 0 || placeholder.FinalPrice != 0 {
		t.Errorf("unexpected placeholder fields: %+v", placeholder)
	}
	if placeholder.URL != "" {
		t.Errorf("placeholder must not carry a product url, got %q", placeholder.URL)
	}
	wantLink := "https://shop.example.com/wp-admin/edit.php?post_status=trash&post_type=product&s=1111111111"
	if placeholder.WCURL != wantLink {
		t.Errorf("expected trash link %q, got %q", wantLink, placeholder.WCURL)
	}
	if placeholder.Image != "https://shop.example.com/wp-content/plugins/datafeedr-api/images/icons/noimage.png" {
		t.Errorf("unexpected placeholder image %q", placeholder.Image)
	}

	if resp.FoundCount != 3 || !reflect.DeepEqual(resp.IDs, ids) {
		t.Errorf("unexpected echo: found=%d ids=%v", resp.FoundCount, resp.IDs)
	}
	if resp.LastStatus == nil || resp.LastStatus.UserID != 70123 {
		t.Errorf("expected last status in response, got %+v", resp.LastStatus)
	}

	search := f.client.LastSearch()
	if !reflect.DeepEqual(search.Filters, []string{"id IN 7830309422,1111111111,7830309424"}) {
		t.Errorf("unexpected filters: %v", search.Filters)
	}
	if search.Limit != 20 {
		t.Errorf("expected limit 20, got %d", search.Limit)
	}
	if search.Offset != 0 {
		t.Errorf("id mode must not set an offset, got %d", search.Offset)
	}
}

func TestProductsByID_WindowsIDs(t *testing.T) {
	f := newFixture(t, nil)
	ids := []string{"7830309422", "7830309423", "7830309424", "7830309425"}

	resp, err := f.executor.ProductsByID(context.Background(), ids, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Products) != 2 || resp.Products[0].ID != "7830309424" {
		t.Errorf("expected second window, got %+v", resp.Products)
	}
	if f.client.LastSearch().Limit != 2 {
		t.Errorf("expected limit 2, got %d", f.client.LastSearch().Limit)
	}
}

func TestProductsByID_NothingReturnedMeansNoPlaceholders(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.executor.ProductsByID(context.Background(), []string{"1", "2"}, 20, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Products) != 0 {
		t.Errorf("expected no placeholders when nothing was returned, got %+v", resp.Products)
	}
}

func TestProductsByID_EmptyWindow(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.executor.ProductsByID(context.Background(), []string{"7830309422"}, 20, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.IDs) != 0 || len(resp.Products) != 0 || resp.FoundCount != 0 {
		t.Errorf("expected empty response, got %+v", resp)
	}
	if resp.LastStatus == nil {
		t.Error("expected last status on empty window")
	}
	if f.client.Calls("Execute") != 0 {
		t.Error("empty window must not search")
	}
}

func TestProductsByID_PageOutsideLimits(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.executor.ProductsByID(context.Background(), []string{"7830309422"}, 20, 501)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Products != nil || f.client.Calls("SearchRequest") != 0 {
		t.Errorf("expected empty response without remote call, got %+v", resp)
	}
}

func TestProductsByID_SelectedFilters(t *testing.T) {
	f := newFixture(t, query.StaticSelection{NetworkIDs: []int{126}})

	if _, err := f.executor.ProductsByID(context.Background(), []string{"7830309422"}, 20, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"source_id IN 126", "id IN 7830309422"}
	if got := f.client.LastSearch().Filters; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestProductsByID_UpdatesTracker(t *testing.T) {
	f := newFixture(t, nil)
	f.client.Status = &api.Status{MaxTotal: 10000, MaxLength: 100, MaxRequests: 100000, RequestCount: 11062}

	if _, err := f.executor.ProductsByID(context.Background(), []string{"7830309422"}, 20, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.tracker.RequestCount(context.Background()); got != 11062 {
		t.Errorf("expected tracker to store last status, got request count %d", got)
	}
}

func TestProductsByID_QuotaExhausted(t *testing.T) {
	f := newFixture(t, nil)
	f.client.SearchErr = &api.RemoteError{Class: "DatafeedrLimitExceededError", Code: api.CodeQuotaExhausted, Message: "request limit reached"}

	_, err := f.executor.ProductsByID(context.Background(), []string{"7830309422"}, 20, 1)
	var env *api.ErrorEnvelope
	if !errors.As(err, &env) {
		t.Fatalf("expected error envelope, got %v", err)
	}
	if env.Code != 301 || env.Class != "DatafeedrLimitExceededError" || env.Params != nil {
		t.Errorf("unexpected envelope: %+v", env)
	}

	snap, _ := f.tracker.Snapshot(context.Background())
	if snap.RequestCount != snap.MaxRequests {
		t.Errorf("expected request count forced to %d, got %d", snap.MaxRequests, snap.RequestCount)
	}
	if !reflect.DeepEqual(f.observer.codes, []int{301}) {
		t.Errorf("expected error observed, got %v", f.observer.codes)
	}
}

func TestProductsByQuery_AppliesDirectives(t *testing.T) {
	f := newFixture(t, nil)
	clauses := query.Clauses{
		{Field: "name", Operator: "LIKE", Value: "running"},
		{Field: query.FieldSort, Operator: "+finalprice"},
		{Field: query.FieldDuplicates, Operator: "is", Value: "image"},
		{Field: query.FieldMerchantLimit, Value: 2},
		{Field: query.FieldLimit, Value: 15},
	}

	resp, err := f.executor.ProductsByQuery(context.Background(), clauses, 20, 1, []string{"7830309425"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	search := f.client.LastSearch()
	wantFilters := []string{"name LIKE running", "id !IN 7830309425"}
	if !reflect.DeepEqual(search.Filters, wantFilters) {
		t.Errorf("expected filters %v, got %v", wantFilters, search.Filters)
	}
	if !reflect.DeepEqual(search.Sorts, []string{"+finalprice"}) {
		t.Errorf("unexpected sorts %v", search.Sorts)
	}
	if search.Duplicates != "image" || search.MerchantLimit != 2 {
		t.Errorf("unexpected directives: duplicates=%q merchant_limit=%d", search.Duplicates, search.MerchantLimit)
	}
	if search.Limit != 15 || search.Offset != 0 {
		t.Errorf("expected limit 15 offset 0, got %d/%d", search.Limit, search.Offset)
	}

	if !reflect.DeepEqual(resp.Query, clauses) || !reflect.DeepEqual(resp.Excluded, []string{"7830309425"}) {
		t.Error("expected query and exclusions echoed")
	}
	if resp.FoundCount != len(resp.Products) {
		t.Errorf("expected found count from result count, got %d", resp.FoundCount)
	}
	if resp.Score != 2 {
		t.Errorf("expected query score 2, got %d", resp.Score)
	}
}

func TestProductsByQuery_ServerSidePaging(t *testing.T) {
	f := newFixture(t, nil)
	f.client.ResultCount = 1234
	clauses := query.Clauses{{Field: "source_id", Operator: "IN", Value: "126"}}

	resp, err := f.executor.ProductsByQuery(context.Background(), clauses, 2, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	search := f.client.LastSearch()
	if search.Offset != 2 || search.Limit != 2 {
		t.Errorf("expected offset 2 limit 2, got %d/%d", search.Offset, search.Limit)
	}
	if resp.FoundCount != 1234 {
		t.Errorf("expected found count 1234, got %d", resp.FoundCount)
	}
	for _, p := range resp.Products {
		if p.Merchant == "n/a" {
			t.Errorf("query mode must not synthesize placeholders: %+v", p)
		}
	}
}

func TestProductsByQuery_CompileError(t *testing.T) {
	f := newFixture(t, nil)
	clauses := query.Clauses{
		{Field: "name", Operator: "LIKE", Value: "shoe"},
		{Operator: "=", Value: "broken"},
	}

	_, err := f.executor.ProductsByQuery(context.Background(), clauses, 20, 1, nil)
	var env *api.ErrorEnvelope
	if !errors.As(err, &env) {
		t.Fatalf("expected error envelope, got %v", err)
	}
	if env.Code != 0 || env.Class != "CompileError" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if env.Params == nil {
		t.Fatal("expected params in query mode")
	}
	if got := env.Params["query"]; !reflect.DeepEqual(got, []string{"name LIKE shoe"}) {
		t.Errorf("expected partial filters in params, got %v", got)
	}
	if f.client.Calls("Execute") != 0 {
		t.Error("malformed query must not execute")
	}
}

func TestProductsByID_ExtremePagesStayEmpty(t *testing.T) {
	f := newFixture(t, nil)
	ids := []string{"7830309422", "7830309423", "7830309424"}

	for _, page := range []int{math.MinInt, math.MaxInt, 3<<61 + 1} {
		resp, err := f.executor.ProductsByID(context.Background(), ids, 20, page)
		if err != nil {
			t.Fatalf("page=%d: unexpected error: %v", page, err)
		}
		if len(resp.Products) != 0 {
			t.Errorf("page=%d: expected no products, got %d", page, len(resp.Products))
		}
	}
	if f.client.Calls("Execute") != 0 {
		t.Error("out of range pages must not search")
	}
}

func TestProductsByQuery_ExtremePagesStayEmpty(t *testing.T) {
	f := newFixture(t, nil)
	clauses := query.Clauses{{Field: "name", Operator: "LIKE", Value: "shoe"}}

	for _, page := range []int{math.MinInt, math.MaxInt, 3<<61 + 1} {
		if _, err := f.executor.ProductsByQuery(context.Background(), clauses, 20, page, nil); err != nil {
			t.Fatalf("page=%d: unexpected error: %v", page, err)
		}
	}
	if f.client.Calls("SearchRequest") != 0 {
		t.Error("out of range pages must not reach the remote")
	}
}

func TestExecutor_Timeout(t *testing.T) {
	f := newFixture(t, nil)
	f.executor = NewExecutor(f.client, nil, f.tracker, WithTimeout(time.Minute))
	clauses := query.Clauses{{Field: "name", Operator: "LIKE", Value: "shoe"}}

	if _, err := f.executor.ProductsByQuery(context.Background(), clauses, 20, 1, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deadline := f.client.LastSearch().Deadline
	if deadline.IsZero() || time.Until(deadline) > time.Minute {
		t.Errorf("expected search bounded by one minute, got %v", deadline)
	}
}

func TestSlice_Bounds(t *testing.T) {
	ids := []string{"a", "b", "c"}
	tests := []struct {
		offset, size int
		want         []string
	}{
		{0, 2, []string{"a", "b"}},
		{1, 20, []string{"b", "c"}},
		{3, 1, nil},
		{-20, 20, nil},
		{0, 0, nil},
		{1, math.MaxInt, []string{"b", "c"}},
	}
	for _, tt := range tests {
		if got := slice(ids, tt.offset, tt.size); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("slice(%d, %d) = %v, want %v", tt.offset, tt.size, got, tt.want)
		}
	}
}

func TestProductsByQuery_RemoteErrorCarriesParams(t *testing.T) {
	f := newFixture(t, nil)
	f.client.SearchErr = &api.RemoteError{Class: "DatafeedrBadRequestError", Code: 400, Message: "bad filter"}
	clauses := query.Clauses{{Field: "name", Operator: "LIKE", Value: "shoe"}}

	_, err := f.executor.ProductsByQuery(context.Background(), clauses, 20, 1, nil)
	var env *api.ErrorEnvelope
	if !errors.As(err, &env) {
		t.Fatalf("expected error envelope, got %v", err)
	}
	if env.Code != 400 || env.Params["limit"] != 20 {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if got := f.tracker.RequestCount(context.Background()); got != 11061 {
		t.Errorf("non quota errors must not touch the snapshot, got %d", got)
	}
}

func TestProductsByQuery_DeclaredLimitExhausted(t *testing.T) {
	f := newFixture(t, nil)
	clauses := query.Clauses{
		{Field: "name", Operator: "LIKE", Value: "shoe"},
		{Field: query.FieldLimit, Value: 15},
	}

	resp, err := f.executor.ProductsByQuery(context.Background(), clauses, 20, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Products != nil || f.client.Calls("SearchRequest") != 0 {
		t.Errorf("expected empty response without a search, got %+v", resp)
	}
	if !reflect.DeepEqual(f.observer.searches, []string{"query:empty"}) {
		t.Errorf("unexpected observations %v", f.observer.searches)
	}
}

func TestNilClientReturnsEmpty(t *testing.T) {
	tracker := account.NewTracker(options.NewMemory(), nil)
	executor := NewExecutor(nil, nil, tracker)

	resp, err := executor.ProductsByID(context.Background(), []string{"1"}, 20, 1)
	if err != nil || resp == nil || resp.Products != nil {
		t.Errorf("expected empty response, got %+v, %v", resp, err)
	}
	resp, err = executor.ProductsByQuery(context.Background(), query.Clauses{{Field: "name", Operator: "LIKE", Value: "a"}}, 20, 1, nil)
	if err != nil || resp == nil || resp.Products != nil {
		t.Errorf("expected empty response, got %+v, %v", resp, err)
	}
}

func TestFingerprintIsStable(t *testing.T) {
	a := fingerprint([]query.Filter{query.In("id", "1", "2")})
	b := fingerprint([]query.Filter{query.In("id", "1", "2")})
	c := fingerprint([]query.Filter{query.In("id", "2", "1")})
	if a != b {
		t.Errorf("expected identical fingerprints, got %s and %s", a, b)
	}
	if a == c {
		t.Error("expected different fingerprints for different filters")
	}
	if strings.TrimSpace(a) == "" {
		t.Error("empty fingerprint")
	}
}
