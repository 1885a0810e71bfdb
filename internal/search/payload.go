package search

import (
	"encoding/json"

	"seowibe/rank-service/internal/model"
)

// searchPayload accepts every known response shape the search endpoints
// produce. Each shape is normalized into model.SearchResult here; nothing
// downstream ever sees a raw upstream record.
type searchPayload struct {
	Data struct {
		Products []rawResult `json:"products"`
	} `json:"data"`
	Products     []rawResult `json:"products"`
	SearchResult struct {
		Products []rawResult `json:"products"`
	} `json:"search_result"`
	Result struct {
		Products []rawResult `json:"products"`
	} `json:"result"`

	// Preset-route responses carry no products, only where to re-query.
	ShardKey string `json:"shardKey"`
	Query    string `json:"query"`
}

// rows returns the normalized result list and whether any shape carried one.
// An empty-but-present list is a valid answer (end of pagination).
func (p *searchPayload) rows() ([]model.SearchResult, bool) {
	for _, raw := range [][]rawResult{
		p.Data.Products,
		p.Products,
		p.SearchResult.Products,
		p.Result.Products,
	} {
		if raw != nil {
			out := make([]model.SearchResult, 0, len(raw))
			for _, r := range raw {
				out = append(out, r.normalize())
			}
			return out, true
		}
	}
	return nil, false
}

// rawResult tolerates the field drift between endpoint versions: the listing
// ID alone appears under four names.
type rawResult struct {
	ID   json.Number `json:"id"`
	NM   json.Number `json:"nm"`
	NMID json.Number `json:"nmId"` // also matches nmID, nm_id variants case-insensitively

	Name     string `json:"name"`
	Title    string `json:"title"`
	Brand    string `json:"brand"`
	Supplier string `json:"supplier"`

	VendorCode         string `json:"vendorCode"`
	SupplierVendorCode string `json:"supplierVendorCode"`

	SubjectName string `json:"subjectName"`
	Subject     string `json:"subject"`

	Extended struct {
		VendorCode         string `json:"vendorCode"`
		SupplierVendorCode string `json:"supplierVendorCode"`
	} `json:"extended"`
}

func (r rawResult) normalize() model.SearchResult {
	return model.SearchResult{
		ExternalID: firstNonEmpty(r.ID.String(), r.NM.String(), r.NMID.String()),
		Name:       firstNonEmpty(r.Name, r.Title),
		Brand:      r.Brand,
		Supplier:   r.Supplier,
		VendorCode: firstNonEmpty(r.SupplierVendorCode, r.VendorCode, r.Extended.SupplierVendorCode, r.Extended.VendorCode),
		Subject:    firstNonEmpty(r.SubjectName, r.Subject),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
