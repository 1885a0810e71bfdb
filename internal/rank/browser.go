package rank

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"

	"seowibe/rank-service/internal/model"
	"seowibe/rank-service/internal/normalize"
	"seowibe/rank-service/internal/search"
)

const (
	browserMaxPages = 6
	browserBudget   = 2 * time.Minute
	renderWait      = 2500 * time.Millisecond
	detailBatchMax  = 140
)

// Browser is the tertiary fallback: drive a headless browser through the
// rendered search pages and match listing IDs out of the final DOM. It only
// runs when both the structured scan and the analytics report came back
// empty, so its cost is acceptable.
type Browser struct {
	search    *search.Client
	searchURL string
}

// NewBrowser wires the crawl against the rendered-search endpoint; card
// details ride through the same client the page scan uses.
func NewBrowser(sc *search.Client, endpoints search.Endpoints) *Browser {
	return &Browser{search: sc, searchURL: endpoints.HTMLSearch}
}

// Position crawls up to browserMaxPages rendered pages and returns the
// display position of the product, or nil. Matching is by listing ID first,
// then by vendor code via card details when the identity has one.
func (b *Browser) Position(ctx context.Context, id Identity, keyword string) *int {
	if id.externalID == "" && id.article == "" {
		return nil
	}
	query := search.NormalizeQuery(keyword)
	if query == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, browserBudget)
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	scanned := 0
	for page := 1; page <= browserMaxPages; page++ {
		if scanned >= model.PositionLimit {
			break
		}
		html, err := b.renderPage(browserCtx, query, page)
		if err != nil {
			slog.Warn("browser crawl failed", "query", query, "page", page, "err", err)
			return nil
		}
		ids := search.ExtractListingIDs(html)
		if len(ids) == 0 {
			continue
		}
		if limit := model.PositionLimit - scanned; len(ids) > limit {
			ids = ids[:limit]
		}

		for idx, listingID := range ids {
			if id.externalID != "" && normalize.Code(listingID) == id.externalID {
				return NormalizePosition(scanned + idx + 1)
			}
		}
		if id.article != "" {
			if pos := b.matchByVendorCode(ctx, id, ids, scanned); pos != nil {
				return pos
			}
		}
		scanned += len(ids)
	}
	return nil
}

func (b *Browser) renderPage(ctx context.Context, query string, page int) (string, error) {
	target := fmt.Sprintf("%s?search=%s&page=%d", b.searchURL, url.QueryEscape(query), page)
	var html string
	err := chromedp.Run(ctx,
		chromedp.Navigate(target),
		// Product links render client-side after the initial load.
		chromedp.Sleep(renderWait),
		chromedp.OuterHTML("html", &html),
	)
	return html, err
}

func (b *Browser) matchByVendorCode(ctx context.Context, id Identity, ids []string, scanned int) *int {
	if len(ids) > detailBatchMax {
		ids = ids[:detailBatchMax]
	}
	details, err := b.search.CardDetails(ctx, ids)
	if err != nil || len(details) == 0 {
		return nil
	}
	for idx, listingID := range ids {
		detail, ok := details[listingID]
		if !ok {
			continue
		}
		vendor := normalize.Code(detail.VendorCode)
		if vendor != "" && normalize.CodesEqual(vendor, id.article) {
			return NormalizePosition(scanned + idx + 1)
		}
	}
	return nil
}
