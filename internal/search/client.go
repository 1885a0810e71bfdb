// Package search fetches live marketplace search pages. The upstream surface
// is semi-documented and unstable: the same query may be answered by several
// endpoint versions, routed to a shard that must be re-queried, or served
// only as rendered HTML. This package hides all of that behind one client
// that returns canonical model.SearchResult rows.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"seowibe/rank-service/internal/cache"
	"seowibe/rank-service/internal/model"
)

const (
	httpTimeout    = 10 * time.Second
	cardBatchLimit = 30
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// ErrUnavailable means every transport variant failed for this page. It is
// distinct from an empty page, which simply means pagination ran out.
var ErrUnavailable = fmt.Errorf("search: all variants unavailable")

// Endpoints describes the ordered transport chain for one marketplace.
type Endpoints struct {
	SearchVariants []string // structured API endpoints, tried in order
	ShardTemplate  string   // fmt template with one %s for the shard key
	CardDetail     string   // batch card enrichment endpoint
	HTMLSearch     string   // rendered search page, last-resort scrape
	Dests          []int    // region routing values, tried per endpoint
}

// DefaultEndpoints returns the production transport chain.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		SearchVariants: []string{
			"https://search.wb.ru/exactmatch/ru/common/v4/search",
			"https://search.wb.ru/exactmatch/ru/common/v5/search",
			"https://search.wb.ru/exactmatch/ru/common/v9/search",
			"https://search.wb.ru/exactmatch/ru/common/v13/search",
		},
		ShardTemplate: "https://search.wb.ru/exactmatch/ru/%s/v13/search",
		CardDetail:    "https://card.wb.ru/cards/v2/detail",
		HTMLSearch:    "https://www.wildberries.ru/catalog/0/search.aspx",
		Dests:         []int{-1257786, -1029256, -2133464},
	}
}

// TestEndpoints routes the whole chain to a single base URL, used by tests
// and staging mirrors.
func TestEndpoints(base string) Endpoints {
	base = strings.TrimRight(base, "/")
	return Endpoints{
		SearchVariants: []string{base + "/search"},
		ShardTemplate:  base + "/shard/%s/search",
		CardDetail:     base + "/cards",
		HTMLSearch:     base + "/catalog",
		Dests:          []int{-1257786},
	}
}

// Client fetches search pages with a short-lived result cache.
type Client struct {
	http      *http.Client
	cache     *cache.Cache
	endpoints Endpoints
}

// NewClient constructs a Client. cache may not be nil.
func NewClient(c *cache.Cache, endpoints Endpoints) *Client {
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		cache:     c,
		endpoints: endpoints,
	}
}

// NormalizeQuery collapses whitespace and case so equivalent queries share
// one cache entry.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// PageResults returns one page of live search results for query. An empty
// slice means the page exists but has no more rows; ErrUnavailable means no
// transport variant could answer.
func (c *Client) PageResults(ctx context.Context, query string, page, pageSize int) ([]model.SearchResult, error) {
	normalized := NormalizeQuery(query)
	if normalized == "" {
		return nil, nil
	}

	key := cache.SearchKey(normalized, page, pageSize)
	var cached []model.SearchResult
	if hit, err := c.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	rateLimited := false
	for _, endpoint := range c.endpoints.SearchVariants {
		for _, dest := range c.endpoints.Dests {
			payload, status, err := c.fetchJSON(ctx, endpoint, searchParams(normalized, page, pageSize, dest))
			if err != nil {
				continue
			}
			if status == http.StatusTooManyRequests {
				// Do not retry this variant within the call.
				rateLimited = true
				break
			}
			if status >= 400 || payload == nil {
				continue
			}
			if rows, ok := payload.rows(); ok {
				c.cache.Set(ctx, key, rows, cache.SearchTTL)
				return rows, nil
			}
			// Some queries are answered by a preset route instead of
			// products; re-query the shard the response points at.
			if rows, ok := c.fetchShard(ctx, payload, page, pageSize, dest); ok {
				c.cache.Set(ctx, key, rows, cache.SearchTTL)
				return rows, nil
			}
		}
	}

	if rows := c.scrapeHTML(ctx, normalized, page, pageSize); rows != nil {
		c.cache.Set(ctx, key, rows, cache.SearchTTL)
		return rows, nil
	}
	if rateLimited {
		slog.Warn("search page unresolved after rate limit", "query", normalized, "page", page)
	}
	return nil, ErrUnavailable
}

func (c *Client) fetchShard(ctx context.Context, base *searchPayload, page, pageSize, dest int) ([]model.SearchResult, bool) {
	shard := strings.Trim(strings.TrimSpace(base.ShardKey), "/")
	routed := strings.TrimSpace(base.Query)
	if shard == "" || routed == "" {
		return nil, false
	}
	endpoint := fmt.Sprintf(c.endpoints.ShardTemplate, shard)
	payload, status, err := c.fetchJSON(ctx, endpoint, searchParams(routed, page, pageSize, dest))
	if err != nil || status >= 400 || payload == nil {
		return nil, false
	}
	return payload.rows()
}

// CardDetails enriches up to cardBatchLimit listing IDs with the vendor
// code and name the search payload may omit.
func (c *Client) CardDetails(ctx context.Context, ids []string) (map[string]model.SearchResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > cardBatchLimit {
		ids = ids[:cardBatchLimit]
	}
	params := url.Values{}
	params.Set("appType", "1")
	params.Set("curr", "rub")
	params.Set("dest", strconv.Itoa(c.endpoints.Dests[0]))
	params.Set("nm", strings.Join(ids, ";"))

	payload, status, err := c.fetchJSON(ctx, c.endpoints.CardDetail, params)
	if err != nil {
		return nil, fmt.Errorf("card details: %w", err)
	}
	if status >= 400 || payload == nil {
		return nil, fmt.Errorf("card details: status %d", status)
	}
	rows, _ := payload.rows()
	out := make(map[string]model.SearchResult, len(rows))
	for _, row := range rows {
		if row.ExternalID != "" {
			out[row.ExternalID] = row
		}
	}
	return out, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params url.Values) (*searchPayload, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		// Challenge pages come back as HTML with a 200.
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	var payload searchPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode payload: %w", err)
	}
	return &payload, resp.StatusCode, nil
}

func searchParams(query string, page, pageSize, dest int) url.Values {
	params := url.Values{}
	params.Set("query", query)
	params.Set("resultset", "catalog")
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("appType", "1")
	params.Set("curr", "rub")
	params.Set("spp", "30")
	params.Set("locale", "ru")
	params.Set("lang", "ru")
	params.Set("dest", strconv.Itoa(dest))
	return params
}
