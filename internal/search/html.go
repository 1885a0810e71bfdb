package search

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"seowibe/rank-service/internal/model"
	"seowibe/rank-service/internal/normalize"
)

// Listing IDs hide in several places on a rendered search page: anchor
// hrefs, data attributes, and JSON embedded in script tags.
var htmlIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/catalog/(\d+)/detail\.aspx`),
	regexp.MustCompile(`\\/catalog\\/(\d+)\\/detail\.aspx`),
	regexp.MustCompile(`data-nm-id="(\d+)"`),
	regexp.MustCompile(`"nmId"\s*:\s*(\d+)`),
	regexp.MustCompile(`"nmID"\s*:\s*(\d+)`),
}

// scrapeHTML is the last transport resort: fetch the rendered search page
// and recover listing IDs from its markup, then enrich them with card
// details so the matcher has vendor codes to work with. Returns nil when
// the page yields nothing.
func (c *Client) scrapeHTML(ctx context.Context, query string, page, pageSize int) []model.SearchResult {
	params := url.Values{}
	params.Set("search", query)
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.HTMLSearch+"?"+params.Encode(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	ids := ExtractListingIDs(string(body))
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > pageSize {
		ids = ids[:pageSize]
	}

	results := make([]model.SearchResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, model.SearchResult{ExternalID: id})
	}
	if details, err := c.CardDetails(ctx, ids); err == nil {
		for i, row := range results {
			if detail, ok := details[row.ExternalID]; ok {
				results[i] = detail
			}
		}
	}
	return results
}

// ExtractListingIDs pulls unique listing IDs out of a rendered search page,
// preserving display order: anchors first, then data attributes and embedded
// JSON. IDs shorter than 5 digits are noise (category IDs, pagination
// counters) and are dropped.
func ExtractListingIDs(html string) []string {
	var ordered []string
	seen := make(map[string]struct{})
	add := func(id string) {
		id = strings.TrimSpace(id)
		if len(id) < 5 || !normalize.IsDigits(id) {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find(`a[href*="/catalog/"]`).Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if m := htmlIDPatterns[0].FindStringSubmatch(href); m != nil {
				add(m[1])
			}
		})
		doc.Find("[data-nm-id]").Each(func(_ int, s *goquery.Selection) {
			if id, ok := s.Attr("data-nm-id"); ok {
				add(id)
			}
		})
	}

	for _, pattern := range htmlIDPatterns {
		for _, m := range pattern.FindAllStringSubmatch(html, -1) {
			add(m[1])
		}
	}
	return ordered
}
