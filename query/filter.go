package query

import "strings"

// Filter is a structured predicate. It is serialized to the remote's string
// grammar only when a search is built.
type Filter struct {
	Field    string
	Operator string
	Values   []string
}

// In builds a "field IN values" filter.
func In(field string, values ...string) Filter {
	return Filter{Field: field, Operator: "IN", Values: values}
}

// NotIn builds a "field !IN values" filter.
func NotIn(field string, values ...string) Filter {
	return Filter{Field: field, Operator: "!IN", Values: values}
}

// FromClause converts a generic clause to a filter unchanged.
func FromClause(c Clause) Filter {
	return Filter{Field: c.Field, Operator: c.Operator, Values: c.Values()}
}

// String renders the filter as "<field> <operator> <v1,v2,...>".
func (f Filter) String() string {
	parts := make([]string, 0, 3)
	parts = append(parts, f.Field)
	if f.Operator != "" {
		parts = append(parts, f.Operator)
	}
	if len(f.Values) > 0 {
		parts = append(parts, strings.Join(f.Values, ","))
	}
	return strings.Join(parts, " ")
}
