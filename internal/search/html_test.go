package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractListingIDs(t *testing.T) {
	page := `
	<html><body>
		<a href="/catalog/170963849/detail.aspx">first</a>
		<div data-nm-id="99887766"></div>
		<a href="/catalog/170963849/detail.aspx">duplicate</a>
		<a href="/catalog/123/detail.aspx">too short</a>
		<script>var state = {"nmId": 55512345};</script>
	</body></html>`

	assert.Equal(t, []string{"170963849", "99887766", "55512345"}, ExtractListingIDs(page))
}

func TestExtractListingIDsEscapedJSON(t *testing.T) {
	// Server-rendered state embeds catalog URLs with escaped slashes.
	page := `{"url":"\/catalog\/244556677\/detail.aspx"}`
	assert.Equal(t, []string{"244556677"}, ExtractListingIDs(page))
}

func TestExtractListingIDsEmptyPage(t *testing.T) {
	assert.Empty(t, ExtractListingIDs("<html><body>ничего не найдено</body></html>"))
}
