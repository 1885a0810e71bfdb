package rank

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"seowibe/rank-service/internal/model"
	"seowibe/rank-service/internal/normalize"
	"seowibe/rank-service/internal/search"
)

const (
	defaultMaxPages = 40
	defaultPageSize = 100
	primarySample   = 5
)

// Request identifies the product being ranked and carries the seller API
// key that unlocks the analytics fallback. APIKey may be empty.
type Request struct {
	Identity Identity
	APIKey   string
}

// Resolver turns (product, keyword) into a live search position. It chains
// three strategies: the structured page scan, the seller analytics report,
// and a browser-rendered crawl. Each strategy only runs when the previous
// one came back empty.
type Resolver struct {
	search    *search.Client
	analytics *Analytics
	browser   *Browser // nil disables the crawl fallback

	budget   time.Duration
	maxPages int
	pageSize int
}

// NewResolver wires the strategy chain. budget bounds the wall-clock time
// of the page scan only; the fallbacks carry their own budgets.
func NewResolver(sc *search.Client, analytics *Analytics, browser *Browser, budget time.Duration) *Resolver {
	return &Resolver{
		search:    sc,
		analytics: analytics,
		browser:   browser,
		budget:    budget,
		maxPages:  defaultMaxPages,
		pageSize:  defaultPageSize,
	}
}

// KeywordPosition resolves the live position of the requested product for a
// single keyword. nil means unresolved; callers decide what sentinel that
// maps to. The position ceiling is model.PositionLimit; anything deeper
// comes back as model.PositionOverflow.
func (r *Resolver) KeywordPosition(ctx context.Context, req Request, keyword string) (*int, error) {
	query := search.NormalizeQuery(keyword)
	if query == "" || req.Identity.Empty() {
		return nil, nil
	}

	pos, err := r.scanPages(ctx, req.Identity, query)
	if err != nil {
		return nil, err
	}
	if pos != nil {
		return pos, nil
	}

	if r.analytics != nil {
		if pos := r.analytics.KeywordPosition(ctx, req.APIKey, req.Identity.externalID, query); pos != nil {
			return NormalizePosition(*pos), nil
		}
	}
	if r.browser != nil {
		if pos := r.browser.Position(ctx, req.Identity, query); pos != nil {
			return NormalizePosition(*pos), nil
		}
	}
	return nil, nil
}

// scanPages walks the structured search pages in display order. Pages past
// the position ceiling are never fetched. When the matcher misses on raw
// rows and the product has a vendor code, the page is retried once with
// card-detail enrichment; search payloads often omit vendor fields.
func (r *Resolver) scanPages(ctx context.Context, id Identity, query string) (*int, error) {
	started := time.Now()
	for page := 1; page <= r.maxPages; page++ {
		if time.Since(started) > r.budget {
			slog.Warn("page scan budget exhausted", "query", query, "page", page)
			break
		}
		rows, err := r.search.PageResults(ctx, query, page, r.pageSize)
		if err != nil {
			if errors.Is(err, search.ErrUnavailable) {
				break
			}
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		pageOffset := (page - 1) * r.pageSize
		if pageOffset >= model.PositionLimit {
			break
		}
		if limit := model.PositionLimit - pageOffset; len(rows) > limit {
			rows = rows[:limit]
		}

		for idx, row := range rows {
			if id.Matches(row) {
				return NormalizePosition(pageOffset + idx + 1), nil
			}
		}
		if id.article == "" {
			continue
		}
		details := r.pageDetails(ctx, rows)
		if details == nil {
			continue
		}
		for idx, row := range rows {
			detail, ok := details[normalizeID(row.ExternalID)]
			if !ok {
				continue
			}
			if id.Matches(mergeResult(row, detail)) {
				return NormalizePosition(pageOffset + idx + 1), nil
			}
		}
	}
	return nil, nil
}

func (r *Resolver) pageDetails(ctx context.Context, rows []model.SearchResult) map[string]model.SearchResult {
	ids := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		id := normalizeID(row.ExternalID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	details, err := r.search.CardDetails(ctx, ids)
	if err != nil {
		slog.Warn("card detail enrichment failed", "err", err)
		return nil
	}
	return details
}

// Position resolves one position for the product from its keyword list. Up
// to five keywords are tried; when several resolve, the first keyword wins
// because it carries the strongest signal for the product, otherwise the
// best (lowest) value is taken.
func (r *Resolver) Position(ctx context.Context, req Request, keywords []string) (*int, error) {
	sample := sampleKeywords(keywords, primarySample)
	if len(sample) == 0 {
		return nil, nil
	}

	found := make(map[string]int, len(sample))
	for _, kw := range sample {
		pos, err := r.KeywordPosition(ctx, req, kw)
		if err != nil {
			return nil, err
		}
		if pos != nil {
			found[kw] = *pos
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	if pos, ok := found[sample[0]]; ok {
		return &pos, nil
	}
	best := 0
	for _, pos := range found {
		if best == 0 || pos < best {
			best = pos
		}
	}
	return &best, nil
}

// PositionsForKeywords resolves every keyword independently, keyed by the
// keyword as the caller passed it (trimmed). Unresolved keywords map to
// nil; the caller chooses the sentinel.
func (r *Resolver) PositionsForKeywords(ctx context.Context, req Request, keywords []string) (map[string]*int, error) {
	out := make(map[string]*int, len(keywords))
	for _, raw := range keywords {
		kw := strings.TrimSpace(raw)
		if kw == "" {
			continue
		}
		if _, dup := out[kw]; dup {
			continue
		}
		pos, err := r.KeywordPosition(ctx, req, kw)
		if err != nil {
			return nil, err
		}
		out[kw] = pos
	}
	return out, nil
}

// NormalizePosition clamps a raw position: non-positive values are
// unresolved, values past the ceiling collapse to the overflow sentinel.
func NormalizePosition(value int) *int {
	if value <= 0 {
		return nil
	}
	if value > model.PositionLimit {
		value = model.PositionOverflow
	}
	return &value
}

func sampleKeywords(keywords []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, kw := range keywords {
		kw = search.NormalizeQuery(kw)
		if kw == "" {
			continue
		}
		out = append(out, kw)
		if len(out) == limit {
			break
		}
	}
	return out
}

func mergeResult(row, detail model.SearchResult) model.SearchResult {
	merged := row
	if detail.Name != "" {
		merged.Name = detail.Name
	}
	if detail.Brand != "" {
		merged.Brand = detail.Brand
	}
	if detail.Supplier != "" {
		merged.Supplier = detail.Supplier
	}
	if detail.VendorCode != "" {
		merged.VendorCode = detail.VendorCode
	}
	if detail.Subject != "" {
		merged.Subject = detail.Subject
	}
	return merged
}

func normalizeID(id string) string {
	return normalize.Code(id)
}
