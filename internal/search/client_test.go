package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seowibe/rank-service/internal/cache"
)

// newTestCache returns a cache whose backend is unreachable; every Get
// degrades to a miss and every Set is a no-op, so tests always hit the
// handler.
func newTestCache() *cache.Cache {
	return cache.New(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	}))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(newTestCache(), TestEndpoints(srv.URL))
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write([]byte(body))
}

func TestPageResultsNestedShape(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "труба дымохода", r.URL.Query().Get("query"))
		writeJSON(w, `{"data":{"products":[{"id":170963849,"name":"Труба","brand":"Ferrum","supplierVendorCode":"FER-115"}]}}`)
	}))

	rows, err := client.PageResults(context.Background(), "  Труба   Дымохода ", 1, 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "170963849", rows[0].ExternalID)
	assert.Equal(t, "Труба", rows[0].Name)
	assert.Equal(t, "FER-115", rows[0].VendorCode)
}

func TestPageResultsFlatShape(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"products":[{"nmId":99887766,"title":"Кран шаровый","vendorCode":"KR-12"}]}`)
	}))

	rows, err := client.PageResults(context.Background(), "кран", 1, 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "99887766", rows[0].ExternalID)
	assert.Equal(t, "Кран шаровый", rows[0].Name)
}

func TestPageResultsEmptyPageIsNotAnError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"data":{"products":[]}}`)
	}))

	rows, err := client.PageResults(context.Background(), "кран", 7, 100)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestPageResultsShardRoute(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			writeJSON(w, `{"shardKey":"presets/bucket_71","query":"preset=4407"}`)
		case "/shard/presets/bucket_71/search":
			assert.Equal(t, "preset=4407", r.URL.Query().Get("query"))
			writeJSON(w, `{"data":{"products":[{"id":555123456,"name":"Штора"}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	rows, err := client.PageResults(context.Background(), "штора", 1, 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "555123456", rows[0].ExternalID)
}

func TestPageResultsChallengePageFallsThrough(t *testing.T) {
	// A 200 with an HTML body is a bot challenge, not a result set. The
	// client must not try to decode it and must fall to the HTML scrape.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>are you a robot?</html>"))
		case "/catalog":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<a href="/catalog/170963849/detail.aspx">x</a>`))
		case "/cards":
			writeJSON(w, `{"data":{"products":[{"id":170963849,"name":"Труба","supplierVendorCode":"FER-115"}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	rows, err := client.PageResults(context.Background(), "труба", 1, 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "170963849", rows[0].ExternalID)
	assert.Equal(t, "FER-115", rows[0].VendorCode, "scraped IDs are enriched with card details")
}

func TestPageResultsRateLimitedVariantAbandoned(t *testing.T) {
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits[r.URL.Path]++
		switch r.URL.Path {
		case "/v4/search":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/v13/search":
			writeJSON(w, `{"data":{"products":[{"id":170963849,"name":"Труба"}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(newTestCache(), Endpoints{
		SearchVariants: []string{srv.URL + "/v4/search", srv.URL + "/v13/search"},
		ShardTemplate:  srv.URL + "/shard/%s/search",
		CardDetail:     srv.URL + "/cards",
		HTMLSearch:     srv.URL + "/catalog",
		Dests:          []int{-1257786, -1029256},
	})

	rows, err := client.PageResults(context.Background(), "труба", 1, 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "170963849", rows[0].ExternalID)
	assert.Equal(t, 1, hits["/v4/search"], "a rate limited variant is not retried on other dests")
	assert.Equal(t, 1, hits["/v13/search"])
}

func TestPageResultsAllVariantsDown(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.PageResults(context.Background(), "труба", 1, 100)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCardDetails(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cards", r.URL.Path)
		assert.Equal(t, "111;222", r.URL.Query().Get("nm"))
		writeJSON(w, `{"data":{"products":[{"id":111,"name":"A","vendorCode":"art-1"},{"id":222,"name":"B"}]}}`)
	}))

	details, err := client.CardDetails(context.Background(), []string{"111", "222"})
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "art-1", details["111"].VendorCode)
	assert.Equal(t, "B", details["222"].Name)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "труба для дымохода", NormalizeQuery("  Труба   ДЛЯ дымохода\t"))
	assert.Equal(t, "", NormalizeQuery("   "))
}
