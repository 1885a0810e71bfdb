// Package marketplace talks to the seller content API: catalog import,
// description updates, listing-ID resolution and live competitor lookup.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"seowibe/rank-service/internal/model"
	"seowibe/rank-service/internal/normalize"
	"seowibe/rank-service/internal/search"
)

// DefaultContentURL is the production seller content API.
const DefaultContentURL = "https://content-api.wildberries.ru"

const (
	cardsListPath  = "/content/v2/get/cards/list"
	cardsUpdatePath = "/content/v2/cards/update"

	cardsPageSize = 100
	// Catalog scans stop after this many pages / cards; a seller with a
	// bigger catalog gets a partial import rather than a stuck request.
	maxCatalogPages = 8
	maxCatalogCards = 800

	competitorPageSize = 60
	competitorLimit    = 5
)

// ErrCredentialsInvalid reports a rejected API key.
var ErrCredentialsInvalid = errors.New("marketplace: credentials rejected")

// Off-topic listing markers. The public search endpoint occasionally slips
// clothing into hardware queries.
var offTopicMarkers = []string{"кроссовк", "платье", "ботинк", "костюм", "рубашк", "купальник"}

// Client is the seller-API client. Competitor lookup goes through the
// public search client; everything else hits the authorized content API.
type Client struct {
	http       *http.Client
	search     *search.Client
	contentURL string
}

// NewClient returns a Client against the given content API base URL.
func NewClient(sc *search.Client, contentURL string) *Client {
	return &Client{
		http:       &http.Client{Timeout: 20 * time.Second},
		search:     sc,
		contentURL: strings.TrimRight(contentURL, "/"),
	}
}

// ─── Catalog import ──────────────────────────────────────────────────────────

type sellerCard struct {
	NmID        json.Number `json:"nmID"`
	VendorCode  string      `json:"vendorCode"`
	Title       string      `json:"title"`
	Object      string      `json:"object"`
	Description string      `json:"description"`
	Sizes       []struct {
		Skus []string `json:"skus"`
	} `json:"sizes"`
}

type cardsCursor struct {
	Limit     int         `json:"limit"`
	UpdatedAt string      `json:"updatedAt,omitempty"`
	NmID      json.Number `json:"nmID,omitempty"`
}

type cardsPage struct {
	Cards  []sellerCard `json:"cards"`
	Cursor cardsCursor  `json:"cursor"`
	Data   *struct {
		Cards  []sellerCard `json:"cards"`
		Cursor cardsCursor  `json:"cursor"`
	} `json:"data"`
}

func (p *cardsPage) cards() []sellerCard {
	if len(p.Cards) > 0 {
		return p.Cards
	}
	if p.Data != nil {
		return p.Data.Cards
	}
	return nil
}

func (p *cardsPage) nextCursor() cardsCursor {
	if p.Data != nil && (p.Data.Cursor.UpdatedAt != "" || p.Data.Cursor.NmID != "") {
		return p.Data.Cursor
	}
	return p.Cursor
}

// Products imports the seller's catalog. With importAll it follows the
// cursor until the scan limits; otherwise only the first page. A non-empty
// articles list filters the result to those vendor codes.
func (c *Client) Products(ctx context.Context, apiKey string, articles []string, importAll bool) ([]model.MarketplaceProduct, error) {
	out := make([]model.MarketplaceProduct, 0)
	seen := map[string]struct{}{}
	err := c.scanCards(ctx, apiKey, importAll, func(card sellerCard) bool {
		article := card.VendorCode
		if article == "" {
			article = card.NmID.String()
		}
		if article == "" {
			return true
		}
		externalID := card.NmID.String()
		key := article + "|" + externalID
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}

		name := card.Title
		if name == "" {
			name = card.Object
		}
		out = append(out, model.MarketplaceProduct{
			Article:     article,
			ExternalID:  externalID,
			Barcode:     cardBarcode(card),
			Name:        name,
			Description: card.Description,
		})
		return true
	})
	if err != nil {
		return nil, err
	}

	if len(articles) > 0 {
		wanted := map[string]struct{}{}
		for _, a := range articles {
			if a = strings.TrimSpace(a); a != "" {
				wanted[a] = struct{}{}
			}
		}
		filtered := out[:0]
		for _, p := range out {
			if _, ok := wanted[p.Article]; ok {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}
	return out, nil
}

// ResolveExternalID finds the numeric listing ID behind a vendor code by
// scanning the seller's own catalog: exact or long-substring vendor-code
// match first, then a name-token overlap.
func (c *Client) ResolveExternalID(ctx context.Context, apiKey, article, name string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", nil
	}
	normArticle := normalize.Code(article)
	normName := normalize.Code(name)
	nameTokens := normalize.TopicTokens(name)
	if len(nameTokens) > 4 {
		nameTokens = nameTokens[:4]
	}

	var resolved string
	err := c.scanCards(ctx, apiKey, true, func(card sellerCard) bool {
		nmID := card.NmID.String()
		if nmID == "" {
			return true
		}
		vendor := normalize.Code(card.VendorCode)
		title := card.Title
		if title == "" {
			title = card.Object
		}
		normTitle := normalize.Code(title)

		if normArticle != "" && vendor != "" {
			if normalize.CodesEqual(normArticle, vendor) {
				resolved = nmID
				return false
			}
			if len(normArticle) >= 6 && (strings.Contains(vendor, normArticle) || strings.Contains(normArticle, vendor)) {
				resolved = nmID
				return false
			}
		}
		if normName != "" && normTitle != "" && len(nameTokens) > 0 {
			shared := 0
			for _, tok := range nameTokens {
				if strings.Contains(normTitle, tok) {
					shared++
				}
			}
			if shared >= 2 {
				resolved = nmID
				return false
			}
		}
		return true
	})
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// scanCards walks the cursor-paged catalog, calling visit per card until it
// returns false or the scan limits are hit.
func (c *Client) scanCards(ctx context.Context, apiKey string, follow bool, visit func(sellerCard) bool) error {
	cursor := cardsCursor{Limit: cardsPageSize}
	scanned := 0
	for page := 0; page < maxCatalogPages; page++ {
		body, _ := json.Marshal(map[string]any{
			"settings": map[string]any{
				"cursor": cursor,
				"filter": map[string]any{"withPhoto": -1},
			},
		})
		data, err := c.post(ctx, apiKey, cardsListPath, body)
		if err != nil {
			return err
		}
		var parsed cardsPage
		if err := json.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("decode cards page: %w", err)
		}
		cards := parsed.cards()
		if len(cards) == 0 {
			return nil
		}
		for _, card := range cards {
			if !visit(card) {
				return nil
			}
		}
		scanned += len(cards)
		if !follow || scanned >= maxCatalogCards {
			return nil
		}
		next := parsed.nextCursor()
		if next.UpdatedAt == "" && next.NmID == "" {
			return nil
		}
		next.Limit = cardsPageSize
		if next == cursor {
			return nil
		}
		cursor = next
	}
	return nil
}

// ─── Description updates ─────────────────────────────────────────────────────

// UpdateDescription pushes a new description for one card.
func (c *Client) UpdateDescription(ctx context.Context, apiKey, article, description string) error {
	body, _ := json.Marshal(map[string]any{
		"cards": []map[string]string{{
			"vendorCode":  article,
			"description": description,
		}},
	})
	_, err := c.post(ctx, apiKey, cardsUpdatePath, body)
	if err != nil {
		return fmt.Errorf("update description for %s: %w", article, err)
	}
	return nil
}

// ProbeCredentials checks an API key by requesting a single catalog page.
func (c *Client) ProbeCredentials(ctx context.Context, apiKey string) (bool, string) {
	_, err := c.Products(ctx, apiKey, nil, false)
	if errors.Is(err, ErrCredentialsInvalid) {
		return false, "Ключ не прошел проверку"
	}
	if err != nil {
		return false, fmt.Sprintf("Ошибка проверки ключа: %v", err)
	}
	return true, "Ключ валиден"
}

func (c *Client) post(ctx context.Context, apiKey, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrCredentialsInvalid
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("content api %s: status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ─── Competitors ─────────────────────────────────────────────────────────────

// Competitors returns up to five live listings ranked near the product's
// category query. Off-topic and own listings are filtered out.
func (c *Client) Competitors(ctx context.Context, name, description, excludeExternalID string) ([]model.CompetitorCard, error) {
	topics := normalize.TopicTokens(name)
	queryTokens := topics
	if len(queryTokens) == 0 {
		queryTokens = normalize.TopicTokens(description)
	}
	if len(queryTokens) > 3 {
		queryTokens = queryTokens[:3]
	}
	query := strings.TrimSpace(strings.Join(queryTokens, " "))
	if query == "" {
		return nil, nil
	}

	results, err := c.search.PageResults(ctx, query, 1, competitorPageSize)
	if err != nil {
		return nil, fmt.Errorf("competitor search: %w", err)
	}

	excluded := normalize.Code(excludeExternalID)
	relevant := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		if excluded != "" && normalize.Code(r.ExternalID) == excluded {
			continue
		}
		if isRelevantCompetitor(competitorName(r), r.Supplier, topics) {
			relevant = append(relevant, r)
		}
	}
	// A fully filtered page still yields competitors: relevance is a
	// preference, not a hard requirement.
	if len(relevant) == 0 {
		for _, r := range results {
			if excluded != "" && normalize.Code(r.ExternalID) == excluded {
				continue
			}
			relevant = append(relevant, r)
		}
	}

	out := make([]model.CompetitorCard, 0, competitorLimit)
	for idx, r := range relevant {
		if idx == competitorLimit {
			break
		}
		cname := competitorName(r)
		keywords := normalize.TopicTokens(cname + " " + r.Supplier + " " + strings.Join(topics, " "))
		if len(keywords) > 10 {
			keywords = keywords[:10]
		}
		var url string
		if r.ExternalID != "" {
			url = fmt.Sprintf("https://www.wildberries.ru/catalog/%s/detail.aspx", r.ExternalID)
		}
		out = append(out, model.CompetitorCard{
			Name:        cname,
			Description: r.Supplier,
			Keywords:    keywords,
			Position:    idx + 1,
			URL:         url,
		})
	}
	return out, nil
}

func competitorName(r model.SearchResult) string {
	if r.Name != "" {
		return r.Name
	}
	return r.Brand
}

// isRelevantCompetitor requires at least one shared topic root and no
// off-topic marker in the listing text.
func isRelevantCompetitor(name, description string, topics []string) bool {
	if len(topics) == 0 {
		return true
	}
	hay := strings.ToLower(name + " " + description)
	for _, marker := range offTopicMarkers {
		if strings.Contains(hay, marker) {
			return false
		}
	}
	if len(topics) > 5 {
		topics = topics[:5]
	}
	for _, tok := range topics {
		root := tok
		if runes := []rune(root); len(runes) > 5 {
			root = string(runes[:5])
		}
		if root != "" && strings.Contains(hay, root) {
			return true
		}
	}
	return false
}

func cardBarcode(card sellerCard) string {
	for _, size := range card.Sizes {
		for _, sku := range size.Skus {
			if sku != "" {
				return sku
			}
		}
	}
	return ""
}
