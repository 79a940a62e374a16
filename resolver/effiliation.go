package resolver

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EffiliationFeedURL lists the publisher's product feeds. %s is the API key.
const EffiliationFeedURL = "http://apiv2.effiliation.com/apiv2/productfeeds.xml?key=%s&filter=mines&type=33&fields=0001010000110001"

const effiliationTimeout = 30 * time.Second

// EffiliationFeed lists the publisher's Effiliation affiliate IDs keyed by
// merchant suid.
type EffiliationFeed interface {
	AffiliateIDs(ctx context.Context, apiKey string) (map[string]string, error)
}

// HTTPEffiliationFeed reads affiliate IDs from the Effiliation product feed
// listing.
type HTTPEffiliationFeed struct {
	client *http.Client
	url    string
}

// NewHTTPEffiliationFeed creates a feed reader. A nil client gets a 30
// second timeout.
func NewHTTPEffiliationFeed(client *http.Client) *HTTPEffiliationFeed {
	if client == nil {
		client = &http.Client{Timeout: effiliationTimeout}
	}
	return &HTTPEffiliationFeed{client: client, url: EffiliationFeedURL}
}

type productFeeds struct {
	Feeds []struct {
		Suid        string `xml:"id_affilieur"`
		AffiliateID string `xml:"id_compteur"`
	} `xml:"feed"`
}

func (f *HTTPEffiliationFeed) AffiliateIDs(ctx context.Context, apiKey string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(f.url, url.QueryEscape(apiKey)), nil)
	if err != nil {
		return nil, fmt.Errorf("building effiliation request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying effiliation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("querying effiliation: unexpected status %s", resp.Status)
	}

	var feeds productFeeds
	if err := xml.NewDecoder(resp.Body).Decode(&feeds); err != nil {
		return nil, fmt.Errorf("decoding effiliation feeds: %w", err)
	}

	ids := make(map[string]string, len(feeds.Feeds))
	for _, feed := range feeds.Feeds {
		ids[strings.TrimSpace(feed.Suid)] = strings.TrimSpace(feed.AffiliateID)
	}
	return ids, nil
}
