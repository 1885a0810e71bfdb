// Package rank resolves the live search position of a product for a
// keyword. Matching is deliberately strict: a position is only reported
// when a stable identifier (listing ID, vendor code) or a strong name
// overlap ties a search row to the product. A weak guess is worse than
// "not found".
package rank

import (
	"strings"

	"seowibe/rank-service/internal/model"
	"seowibe/rank-service/internal/normalize"
)

// minCodeLen guards substring matching: codes shorter than this collide
// too easily to trust partial containment.
const minCodeLen = 6

// Identity carries the normalized identifiers of the product being ranked.
// Build it once per resolution; matching against candidates is allocation
// free.
type Identity struct {
	article    string
	externalID string
	name       string
	nameTokens []string
}

// NewIdentity normalizes the product's vendor code, listing ID and name for
// matching. Any of the inputs may be empty; the matcher skips the rules that
// depend on them.
func NewIdentity(vendorCode, externalID, name string) Identity {
	return Identity{
		article:    normalize.Code(vendorCode),
		externalID: normalize.Code(externalID),
		name:       normalize.Code(name),
		nameTokens: normalize.TopicTokens(name),
	}
}

// Empty reports whether the identity carries nothing to match on.
func (id Identity) Empty() bool {
	return id.article == "" && id.externalID == "" && id.name == ""
}

// Matches reports whether candidate is the identified product. Rules are
// ordered from strongest to weakest identifier; the name-token rule requires
// at least two of the first four topic tokens and never fires alone on a
// single shared word.
func (id Identity) Matches(candidate model.SearchResult) bool {
	listingID := normalize.Code(candidate.ExternalID)
	vendor := normalize.Code(candidate.VendorCode)
	name := normalize.Code(candidate.Name)
	if name == "" {
		name = normalize.Code(candidate.Brand)
	}
	subject := normalize.Code(candidate.Subject)

	if id.externalID != "" && listingID != "" {
		if normalize.CodesEqual(id.externalID, listingID) {
			return true
		}
		if len(id.externalID) >= minCodeLen && (contains(listingID, id.externalID) || contains(id.externalID, listingID)) {
			return true
		}
	}

	if id.article != "" {
		if vendor != "" {
			if normalize.CodesEqual(id.article, vendor) {
				return true
			}
			if len(id.article) >= minCodeLen && (contains(vendor, id.article) || contains(id.article, vendor)) {
				return true
			}
		}
		if listingID != "" && normalize.IsDigits(id.article) && normalize.CodesEqual(id.article, listingID) {
			return true
		}
		if len(id.article) >= minCodeLen {
			if name != "" && contains(name, id.article) {
				return true
			}
			if subject != "" && contains(subject, id.article) {
				return true
			}
		}
	}

	if id.name != "" && name != "" {
		shared := 0
		tokens := id.nameTokens
		if len(tokens) > 4 {
			tokens = tokens[:4]
		}
		for _, token := range tokens {
			if token != "" && contains(name, token) {
				shared++
			}
		}
		if shared >= 2 {
			return true
		}
	}
	return false
}

func contains(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}
