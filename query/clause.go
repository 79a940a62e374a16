// Package query compiles declarative query clauses into the filter set,
// sort, duplicate exclusion and limits of one remote search.
package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Reserved clause fields. They configure the search instead of filtering it.
const (
	FieldLimit         = "limit"
	FieldMerchantLimit = "merchant_limit"
	FieldDuplicates    = "duplicates"
	FieldSort          = "sort"
)

// Clause is one user supplied query condition.
type Clause struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// Clauses is an ordered query.
type Clauses []Clause

// Find returns the first clause for field.
func (c Clauses) Find(field string) (Clause, bool) {
	for _, clause := range c {
		if clause.Field == field {
			return clause, true
		}
	}
	return Clause{}, false
}

// IsReserved reports whether field is one of the reserved clause fields.
func IsReserved(field string) bool {
	switch field {
	case FieldLimit, FieldMerchantLimit, FieldDuplicates, FieldSort:
		return true
	}
	return false
}

// ValueString renders the clause value as the remote expects it.
func (c Clause) ValueString() string {
	return strings.Join(c.Values(), ",")
}

// Values renders the clause value as a list. Slices keep their element order.
func (c Clause) Values() []string {
	switch v := c.Value.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []int:
		out := make([]string, len(v))
		for i, n := range v {
			out[i] = strconv.Itoa(n)
		}
		return out
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = scalarString(item)
		}
		return out
	default:
		return []string{scalarString(v)}
	}
}

func scalarString(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// numeric converts the clause value to an integer, truncating fractions.
// The second result is false for values that are not numbers or numeric
// strings.
func (c Clause) numeric() (int, bool) {
	switch v := c.Value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f), true
		}
	}
	return 0, false
}
