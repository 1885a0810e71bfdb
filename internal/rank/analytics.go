package rank

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"seowibe/rank-service/internal/cache"
	"seowibe/rank-service/internal/normalize"
)

// DefaultAnalyticsURL is the production seller analytics API.
const DefaultAnalyticsURL = "https://seller-analytics-api.wildberries.ru"

const (
	analyticsReportPath = "/api/v2/search-report/product/orders"
	analyticsWindow     = 14 * 24 * time.Hour
	analyticsMaxPos     = 5000
)

// Analytics asks the seller analytics API what position buyers actually saw
// the product at for a search text. It is a fallback: the report lags live
// ranking, so the page scan always runs first.
type Analytics struct {
	http    *http.Client
	cache   *cache.Cache
	baseURL string
}

// NewAnalytics builds the fallback against the given API base URL.
func NewAnalytics(c *cache.Cache, baseURL string) *Analytics {
	return &Analytics{
		http:    &http.Client{Timeout: 15 * time.Second},
		cache:   c,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// cachedPosition distinguishes "looked up, nothing there" from a cache
// miss; a negative upstream answer is worth caching for the TTL window.
type cachedPosition struct {
	Position *int `json:"position"`
}

// KeywordPosition returns the best (lowest) position the report carries for
// externalID and keyword, or nil. All failures degrade to nil; this path
// must never abort a resolution that still has the browser fallback left.
func (a *Analytics) KeywordPosition(ctx context.Context, apiKey, externalID, keyword string) *int {
	token := strings.TrimSpace(apiKey)
	nmID := normalize.Code(externalID)
	query := strings.Join(strings.Fields(keyword), " ")
	if token == "" || !normalize.IsDigits(nmID) || nmID == "" || query == "" {
		return nil
	}

	key := cache.AnalyticsKey(nmID, strings.ToLower(query))
	var cached cachedPosition
	if hit, err := a.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached.Position
	}

	result := a.fetch(ctx, token, nmID, query)
	a.cache.Set(ctx, key, cachedPosition{Position: result}, cache.AnalyticsTTL)
	return result
}

func (a *Analytics) fetch(ctx context.Context, token, nmID, query string) *int {
	end := time.Now()
	begin := end.Add(-analyticsWindow)
	body, err := json.Marshal(map[string]any{
		"period": map[string]string{
			"begin": begin.Format("2006-01-02"),
			"end":   end.Format("2006-01-02"),
		},
		"nmId":        json.RawMessage(nmID),
		"searchTexts": []string{query},
	})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+analyticsReportPath, bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		slog.Warn("analytics report request failed", "err", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		slog.Warn("analytics report rejected", "status", resp.StatusCode)
		return nil
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil
	}
	positions := collectPositions(payload, nil)
	if len(positions) == 0 {
		return nil
	}
	best := positions[0]
	for _, pos := range positions[1:] {
		if pos < best {
			best = pos
		}
	}
	return &best
}

// collectPositions walks an arbitrary report payload and gathers every
// numeric value stored under a key containing "position". The report schema
// drifts between versions; key matching is the only stable contract.
func collectPositions(node any, out []int) []int {
	switch v := node.(type) {
	case map[string]any:
		for key, value := range v {
			if strings.Contains(strings.ToLower(key), "position") {
				if num, ok := value.(float64); ok {
					pos := int(num + 0.5)
					if pos >= 1 && pos <= analyticsMaxPos {
						out = append(out, pos)
					}
				}
			}
			out = collectPositions(value, out)
		}
	case []any:
		for _, item := range v {
			out = collectPositions(item, out)
		}
	}
	return out
}
