package query

import (
	"context"
	"fmt"
	"strconv"
)

// Directives are the search settings carried by reserved clauses.
type Directives struct {
	SortExpression      string
	ExcludeDuplicatesBy string
	// MerchantLimit caps results per merchant; 0 means unlimited.
	MerchantLimit int
	// DeclaredLimit is nil when the query declares no limit.
	DeclaredLimit *int
}

// Compiled is the outcome of compiling a query.
type Compiled struct {
	Directives
	Filters []Filter
}

// Params renders the compiled query for diagnostics.
func (c Compiled) Params() map[string]any {
	filters := make([]string, len(c.Filters))
	for i, f := range c.Filters {
		filters[i] = f.String()
	}
	params := map[string]any{
		"query":          filters,
		"merchant_limit": c.MerchantLimit,
	}
	if c.SortExpression != "" {
		params["sort"] = c.SortExpression
	}
	if c.ExcludeDuplicatesBy != "" {
		params["duplicates"] = c.ExcludeDuplicatesBy
	}
	if c.DeclaredLimit != nil {
		params["limit"] = *c.DeclaredLimit
	}
	return params
}

// CompileError reports a malformed query. Partial holds what was compiled
// before the failure.
type CompileError struct {
	Reason  string
	Partial Compiled
	Err     error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *CompileError) Unwrap() error { return e.Err }

// ErrorCode implements the coded error contract of api.NewErrorEnvelope.
func (e *CompileError) ErrorCode() int { return 0 }

// SelectionSource supplies the caller's persisted default filters, such as
// the selected networks and merchants.
type SelectionSource interface {
	SelectedFilters(ctx context.Context) ([]Filter, error)
}

// Compiler turns clauses into a Compiled query.
type Compiler struct {
	selection SelectionSource
}

// NewCompiler creates a compiler. selection may be nil.
func NewCompiler(selection SelectionSource) *Compiler {
	return &Compiler{selection: selection}
}

// ExtractDirectives reads the reserved clauses. It never fails.
func ExtractDirectives(clauses Clauses) Directives {
	var d Directives

	if c, ok := clauses.Find(FieldSort); ok && c.Operator != "" {
		d.SortExpression = c.Operator
	}

	if c, ok := clauses.Find(FieldDuplicates); ok {
		d.ExcludeDuplicatesBy = c.ValueString()
	}

	if c, ok := clauses.Find(FieldMerchantLimit); ok {
		if n, ok := c.numeric(); ok && n > 0 {
			d.MerchantLimit = n
		}
	}

	// a zero or empty limit declares nothing
	if c, ok := clauses.Find(FieldLimit); ok {
		if n, ok := c.numeric(); ok && n != 0 {
			limit := n
			d.DeclaredLimit = &limit
		}
	}

	return d
}

// Compile extracts the directives, converts every other clause to a filter
// in order, then appends the selected default filters when
// useSelectedFilters is set.
func (c *Compiler) Compile(ctx context.Context, clauses Clauses, useSelectedFilters bool) (Compiled, error) {
	compiled := Compiled{Directives: ExtractDirectives(clauses)}

	for i, clause := range clauses {
		if IsReserved(clause.Field) {
			continue
		}
		if clause.Field == "" {
			return compiled, &CompileError{
				Reason:  "clause " + strconv.Itoa(i) + " has no field",
				Partial: compiled,
			}
		}
		compiled.Filters = append(compiled.Filters, FromClause(clause))
	}

	if useSelectedFilters && c.selection != nil {
		selected, err := c.selection.SelectedFilters(ctx)
		if err != nil {
			return compiled, &CompileError{
				Reason:  "loading selected filters",
				Partial: compiled,
				Err:     err,
			}
		}
		compiled.Filters = append(compiled.Filters, selected...)
	}

	return compiled, nil
}
