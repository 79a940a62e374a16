package query

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestCompile_EmptyClauses(t *testing.T) {
	compiled, err := NewCompiler(nil).Compile(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(compiled.Filters) != 0 {
		t.Errorf("expected no filters, got %v", compiled.Filters)
	}
	if compiled.SortExpression != "" || compiled.ExcludeDuplicatesBy != "" {
		t.Errorf("unexpected directives: %+v", compiled.Directives)
	}
	if compiled.MerchantLimit != 0 || compiled.DeclaredLimit != nil {
		t.Errorf("unexpected limits: %+v", compiled.Directives)
	}
}

func TestCompile_SortIsNotAFilter(t *testing.T) {
	clauses := Clauses{
		{Field: "name", Operator: "LIKE", Value: "shoes"},
		{Field: FieldSort, Operator: "+price"},
	}

	compiled, err := NewCompiler(nil).Compile(context.Background(), clauses, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if compiled.SortExpression != "+price" {
		t.Errorf("expected sort +price, got %q", compiled.SortExpression)
	}
	want := []Filter{{Field: "name", Operator: "LIKE", Values: []string{"shoes"}}}
	if !reflect.DeepEqual(compiled.Filters, want) {
		t.Errorf("expected %v, got %v", want, compiled.Filters)
	}
}

func TestExtractDirectives(t *testing.T) {
	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name    string
		clauses Clauses
		want    Directives
	}{
		{
			name:    "numeric limit",
			clauses: Clauses{{Field: FieldLimit, Value: 15}},
			want:    Directives{DeclaredLimit: intPtr(15)},
		},
		{
			name:    "string limit",
			clauses: Clauses{{Field: FieldLimit, Value: "40"}},
			want:    Directives{DeclaredLimit: intPtr(40)},
		},
		{
			name:    "zero limit is not declared",
			clauses: Clauses{{Field: FieldLimit, Value: 0}},
			want:    Directives{},
		},
		{
			name:    "empty limit is not declared",
			clauses: Clauses{{Field: FieldLimit, Value: ""}},
			want:    Directives{},
		},
		{
			name:    "negative merchant limit",
			clauses: Clauses{{Field: FieldMerchantLimit, Value: -3}},
			want:    Directives{},
		},
		{
			name:    "non numeric merchant limit",
			clauses: Clauses{{Field: FieldMerchantLimit, Value: "many"}},
			want:    Directives{},
		},
		{
			name:    "merchant limit from float",
			clauses: Clauses{{Field: FieldMerchantLimit, Value: 2.0}},
			want:    Directives{MerchantLimit: 2},
		},
		{
			name:    "duplicates",
			clauses: Clauses{{Field: FieldDuplicates, Operator: "is", Value: "image name"}},
			want:    Directives{ExcludeDuplicatesBy: "image name"},
		},
		{
			name:    "sort with empty operator",
			clauses: Clauses{{Field: FieldSort}},
			want:    Directives{},
		},
		{
			name: "first clause wins",
			clauses: Clauses{
				{Field: FieldSort, Operator: "-price"},
				{Field: FieldSort, Operator: "+price"},
			},
			want: Directives{SortExpression: "-price"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractDirectives(tt.clauses)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestCompile_KeepsClauseOrder(t *testing.T) {
	clauses := Clauses{
		{Field: "source_id", Operator: "IN", Value: []int{126, 3}},
		{Field: FieldLimit, Value: 10},
		{Field: "price", Operator: ">", Value: 1000},
		{Field: "currency", Operator: "=", Value: []any{"USD", "EUR"}},
	}

	compiled, err := NewCompiler(nil).Compile(context.Background(), clauses, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	for _, f := range compiled.Filters {
		got = append(got, f.String())
	}
	want := []string{"source_id IN 126,3", "price > 1000", "currency = USD,EUR"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCompile_MalformedClause(t *testing.T) {
	clauses := Clauses{
		{Field: "name", Operator: "LIKE", Value: "a"},
		{Operator: "=", Value: "b"},
	}

	_, err := NewCompiler(nil).Compile(context.Background(), clauses, false)
	var compileErr *CompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	if len(compileErr.Partial.Filters) != 1 {
		t.Errorf("expected partial filters to be kept, got %v", compileErr.Partial.Filters)
	}
	if compileErr.ErrorCode() != 0 {
		t.Errorf("expected code 0, got %d", compileErr.ErrorCode())
	}
}

type failingSelection struct{}

func (failingSelection) SelectedFilters(context.Context) ([]Filter, error) {
	return nil, errors.New("option store offline")
}

func TestCompile_SelectedFilters(t *testing.T) {
	ctx := context.Background()
	selection := StaticSelection{NetworkIDs: []int{126, 3}, MerchantIDs: []int{9}}
	clauses := Clauses{{Field: "name", Operator: "LIKE", Value: "a"}}

	compiled, err := NewCompiler(selection).Compile(ctx, clauses, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, f := range compiled.Filters {
		got = append(got, f.String())
	}
	want := []string{"name LIKE a", "source_id IN 126,3", "merchant_id IN 9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	unselected, _ := NewCompiler(selection).Compile(ctx, clauses, false)
	if len(unselected.Filters) != 1 {
		t.Errorf("selected filters added without being requested: %v", unselected.Filters)
	}
}

func TestCompile_SelectionFailure(t *testing.T) {
	clauses := Clauses{{Field: "name", Operator: "LIKE", Value: "a"}}

	_, err := NewCompiler(failingSelection{}).Compile(context.Background(), clauses, true)
	var compileErr *CompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	if len(compileErr.Partial.Filters) != 1 {
		t.Errorf("expected partial compile result, got %+v", compileErr.Partial)
	}
}

func TestStaticSelection_Required(t *testing.T) {
	_, err := StaticSelection{Required: true}.SelectedFilters(context.Background())
	if !errors.Is(err, ErrNoSelection) {
		t.Errorf("expected ErrNoSelection, got %v", err)
	}

	filters, err := StaticSelection{}.SelectedFilters(context.Background())
	if err != nil || filters != nil {
		t.Errorf("expected no filters, got %v, %v", filters, err)
	}
}

func TestCompiled_Params(t *testing.T) {
	limit := 15
	compiled := Compiled{
		Directives: Directives{SortExpression: "+price", DeclaredLimit: &limit},
		Filters:    []Filter{In("id", "1", "2")},
	}

	params := compiled.Params()
	if params["sort"] != "+price" || params["limit"] != 15 || params["merchant_limit"] != 0 {
		t.Errorf("unexpected params: %v", params)
	}
	if !reflect.DeepEqual(params["query"], []string{"id IN 1,2"}) {
		t.Errorf("unexpected query param: %v", params["query"])
	}
	if _, ok := params["duplicates"]; ok {
		t.Error("duplicates should be absent when not set")
	}
}

func TestFilter_String(t *testing.T) {
	tests := []struct {
		filter Filter
		want   string
	}{
		{In("id", "1", "2", "3"), "id IN 1,2,3"},
		{NotIn("id", "4"), "id !IN 4"},
		{Filter{Field: "image", Operator: "!EMPTY"}, "image !EMPTY"},
	}
	for _, tt := range tests {
		if got := tt.filter.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
