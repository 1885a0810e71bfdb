// Package model defines shared data structures for the rank service.
package model

import "time"

// Position sentinels. A resolved position is 1..PositionLimit; a product the
// resolver checked for but could not locate within the ceiling is reported
// as PositionOverflow. Unresolved positions are nil.
const (
	PositionLimit    = 500
	PositionOverflow = 501
)

// Product mirrors a products table row. ExternalID is the
// marketplace-assigned numeric listing ID and may stay empty until resolved;
// the seller-assigned article never changes after import.
type Product struct {
	ID                 int64
	AccountID          int64
	Marketplace        string
	Article            string
	ExternalID         string
	Barcode            string
	Name               string
	CurrentDescription string
	TargetKeywords     []string
	LastKnownPosition  *int // 1..500, or 501 = outside top-500
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SeoJob is one optimization attempt for one product: the generated text,
// the keyword snapshot it was built from, the target rank, and the recheck
// schedule.
type SeoJob struct {
	ID                   int64
	AccountID            int64
	ProductID            int64
	Status               string
	GeneratedDescription string
	KeywordsSnapshot     []string // ordered, deduplicated
	CompetitorSnapshot   []CompetitorRef
	TargetPosition       int
	CurrentPosition      *int
	NextCheckAt          *time.Time
	AttemptCount         int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CompetitorRef is the bounded per-job snapshot of a competitor card.
// Stored as JSONB on the job row.
type CompetitorRef struct {
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Keywords []string `json:"keywords"`
	URL      string   `json:"url,omitempty"`
}

// PositionSnapshot is an append-only fact used for trend reporting.
// Source is "manual_check", "generate" or "recheck".
type PositionSnapshot struct {
	ID        int64
	AccountID int64
	ProductID int64
	Source    string
	Position  int
	Keywords  []string
	CreatedAt time.Time
}

// SearchResult is the canonical record every upstream search payload shape
// is normalized into before the matcher or resolver sees it. Upstream format
// churn stays inside the search package adapters.
type SearchResult struct {
	ExternalID string `json:"id"`
	Name       string `json:"name"`
	Brand      string `json:"brand,omitempty"`
	Supplier   string `json:"supplier,omitempty"`
	VendorCode string `json:"vendorCode,omitempty"`
	Subject    string `json:"subject,omitempty"`
}

// CompetitorCard is a transient competitor listing produced per resolution
// call and used only to seed keyword scoring.
type CompetitorCard struct {
	Name        string
	Description string
	Keywords    []string
	Position    int
	URL         string
}

// MarketplaceProduct is a normalized seller-catalog card fetched during
// import or external-ID resolution.
type MarketplaceProduct struct {
	Article     string
	ExternalID  string
	Barcode     string
	Name        string
	Description string
}
