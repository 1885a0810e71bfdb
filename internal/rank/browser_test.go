package rank

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seowibe/rank-service/internal/search"
)

func TestBrowserMatchByVendorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cards", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"products":[{"id":111222333,"supplierVendorCode":"OTHER"},{"id":444555666,"supplierVendorCode":"FER-115-050"}]}}`)
	}))
	t.Cleanup(srv.Close)

	endpoints := search.TestEndpoints(srv.URL)
	browser := NewBrowser(search.NewClient(newTestCache(), endpoints), endpoints)
	id := NewIdentity("FER-115-050", "", "")

	pos := browser.matchByVendorCode(context.Background(), id, []string{"111222333", "444555666"}, 100)
	require.NotNil(t, pos)
	assert.Equal(t, 102, *pos, "position counts ids already scanned on earlier pages")

	miss := browser.matchByVendorCode(context.Background(), NewIdentity("NOPE-999", "", ""), []string{"111222333"}, 0)
	assert.Nil(t, miss)
}
