// Package pagination turns a page number and page size into the offset and
// size of one remote request, within the account's result caps.
package pagination

import (
	"math"

	"github.com/goliatone/go-feedcache/account"
)

// Limits are the account caps that bound every plan.
type Limits struct {
	// MaxTotal is the deepest result reachable through paging.
	MaxTotal int
	// MaxLength is the largest page the remote returns.
	MaxLength int
}

// LimitsFrom reads the caps from an account snapshot.
func LimitsFrom(s account.Snapshot) Limits {
	return Limits{MaxTotal: s.MaxTotal, MaxLength: s.MaxLength}
}

// Plan is the window of one request. A PageSize below 1 means the result
// is empty and the remote must not be called.
type Plan struct {
	Offset   int
	PageSize int
}

// Empty reports whether the plan yields no results.
func (p Plan) Empty() bool {
	return p.PageSize < 1
}

var empty = Plan{}

// normalize coerces page and ppp to positive values capped by MaxLength. It
// reports false when the page cannot start inside MaxTotal, which also keeps
// the offset multiplication from overflowing.
func normalize(page, ppp int, limits Limits) (int, int, bool) {
	if page == math.MinInt || ppp == math.MinInt {
		return 0, 0, false
	}
	page, ppp = abs(page), abs(ppp)
	if page == 0 {
		page = 1
	}
	if ppp > limits.MaxLength {
		ppp = limits.MaxLength
	}
	if ppp > 0 && page-1 > limits.MaxTotal/ppp {
		return 0, 0, false
	}
	return page, ppp, true
}

// ForIDs plans the window into a fixed ID list. The offset check runs only
// after the window has been shrunk to MaxTotal.
func ForIDs(page, ppp int, limits Limits) Plan {
	page, ppp, ok := normalize(page, ppp, limits)
	if !ok {
		return empty
	}

	offset := (page - 1) * ppp
	if offset+ppp > limits.MaxTotal {
		ppp = limits.MaxTotal - offset
	}
	if ppp < 1 {
		return empty
	}
	if offset >= limits.MaxTotal-ppp {
		return empty
	}
	return Plan{Offset: offset, PageSize: ppp}
}

// ForQuery plans a server side paginated query. The raw offset is checked
// against MaxTotal before the declared limit shrinks the window.
func ForQuery(page, ppp int, declaredLimit *int, limits Limits) Plan {
	page, ppp, ok := normalize(page, ppp, limits)
	if !ok {
		return empty
	}

	limit := 0
	if declaredLimit != nil {
		limit = *declaredLimit
		if limit > limits.MaxTotal {
			limit = limits.MaxTotal
		}
	}

	offset := (page - 1) * ppp
	if offset >= limits.MaxTotal {
		return empty
	}
	if declaredLimit != nil && ppp+offset > limit {
		ppp = limit - offset
	}
	if offset+ppp > limits.MaxTotal {
		ppp = limits.MaxTotal - offset
	}
	if ppp < 1 {
		return empty
	}
	return Plan{Offset: offset, PageSize: ppp}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
