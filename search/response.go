package search

import (
	"net/url"
	"strings"

	"github.com/goliatone/go-feedcache/api"
	"github.com/goliatone/go-feedcache/query"
)

// Response is returned by both search modes. IDs is echoed in ID mode;
// Query and Excluded are echoed in query mode.
type Response struct {
	IDs        []string       `json:"ids,omitempty"`
	Query      query.Clauses  `json:"query,omitempty"`
	Excluded   []string       `json:"excluded,omitempty"`
	Products   []api.Product  `json:"products"`
	LastStatus *api.Status    `json:"last_status"`
	FoundCount int            `json:"found_count"`
	Params     map[string]any `json:"params,omitempty"`
	Score      int            `json:"score"`
}

const (
	unavailableDescription = "This product is either temporarily or permanently unavailable."
	placeholderImage       = "images/icons/noimage.png"
	notAvailable           = "n/a"
)

// placeholder stands in for an ID the remote no longer returns. It links to
// the host's trashed product search and never carries a product URL.
func (e *Executor) placeholder(id string) api.Product {
	return api.Product{
		ID:          id,
		Name:        id + " - Unavailable",
		Price:       0,
		FinalPrice:  0,
		Description: unavailableDescription,
		Image:       joinURL(e.assetsURL, placeholderImage),
		Merchant:    notAvailable,
		Source:      notAvailable,
		WCURL:       trashSearchURL(e.adminURL, id),
	}
}

func trashSearchURL(adminURL, id string) string {
	q := url.Values{}
	q.Set("s", id)
	q.Set("post_status", "trash")
	q.Set("post_type", "product")
	return joinURL(adminURL, "edit.php") + "?" + q.Encode()
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	return strings.TrimSuffix(base, "/") + "/" + path
}

// missing returns the window IDs absent from products, in window order.
func missing(window []string, products []api.Product) []string {
	returned := make(map[string]struct{}, len(products))
	for _, p := range products {
		returned[p.ID] = struct{}{}
	}
	var out []string
	for _, id := range window {
		if _, ok := returned[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
