package rank

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seowibe/rank-service/internal/cache"
	"seowibe/rank-service/internal/search"
)

func newTestCache() *cache.Cache {
	return cache.New(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	}))
}

func newTestResolver(t *testing.T, handler http.Handler) *Resolver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := search.NewClient(newTestCache(), search.TestEndpoints(srv.URL))
	return NewResolver(client, nil, nil, 45*time.Second)
}

// searchPage renders a JSON page of filler rows, optionally placing the
// given product at zero-based index at.
func searchPage(size, startID, at int, product string) string {
	rows := make([]string, 0, size)
	for i := 0; i < size; i++ {
		if i == at && product != "" {
			rows = append(rows, product)
			continue
		}
		rows = append(rows, fmt.Sprintf(`{"id":%d,"name":"товар %d"}`, startID+i, i))
	}
	return `{"data":{"products":[` + strings.Join(rows, ",") + `]}}`
}

func TestKeywordPositionSecondPage(t *testing.T) {
	resolver := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, searchPage(100, 900000, -1, ""))
		case "2":
			fmt.Fprint(w, searchPage(100, 910000, 13, `{"id":170963849,"name":"Труба дымохода"}`))
		default:
			fmt.Fprint(w, `{"data":{"products":[]}}`)
		}
	}))

	pos, err := resolver.KeywordPosition(context.Background(), Request{Identity: NewIdentity("", "170963849", "")}, "труба")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 114, *pos, "page 2, index 13 is position 114")
}

func TestKeywordPositionUnresolvedWhenPagesRunOut(t *testing.T) {
	resolver := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, searchPage(50, 900000, -1, ""))
			return
		}
		fmt.Fprint(w, `{"data":{"products":[]}}`)
	}))

	pos, err := resolver.KeywordPosition(context.Background(), Request{Identity: NewIdentity("", "170963849", "")}, "труба")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestKeywordPositionCardDetailEnrichment(t *testing.T) {
	// The search payload omits vendor codes; the match only lands after the
	// page is enriched with card details.
	resolver := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search":
			if r.URL.Query().Get("page") == "1" {
				fmt.Fprint(w, `{"data":{"products":[{"id":111222333},{"id":444555666}]}}`)
				return
			}
			fmt.Fprint(w, `{"data":{"products":[]}}`)
		case "/cards":
			fmt.Fprint(w, `{"data":{"products":[{"id":111222333,"supplierVendorCode":"OTHER-1"},{"id":444555666,"supplierVendorCode":"FER-115-050"}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	pos, err := resolver.KeywordPosition(context.Background(), Request{Identity: NewIdentity("FER-115-050", "", "")}, "труба")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 2, *pos)
}

func TestKeywordPositionRespectsBudget(t *testing.T) {
	calls := 0
	resolver := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchPage(100, 900000, -1, ""))
	}))
	resolver.budget = 0

	pos, err := resolver.KeywordPosition(context.Background(), Request{Identity: NewIdentity("", "170963849", "")}, "труба")
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Zero(t, calls, "an exhausted budget fetches nothing")
}

func TestKeywordPositionStopsAtCeiling(t *testing.T) {
	var pagesServed []string
	resolver := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed = append(pagesServed, r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchPage(100, 900000, -1, ""))
	}))

	pos, err := resolver.KeywordPosition(context.Background(), Request{Identity: NewIdentity("", "170963849", "")}, "труба")
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, pagesServed, "scan stops once the offset passes the ceiling")
}

func TestPositionPrimaryKeywordWins(t *testing.T) {
	resolver := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `{"data":{"products":[]}}`)
			return
		}
		// Primary keyword ranks 8th, the secondary ranks 2nd.
		at := 7
		if r.URL.Query().Get("query") == "кран шаровый" {
			at = 1
		}
		fmt.Fprint(w, searchPage(100, 900000, at, `{"id":170963849,"name":"Кран"}`))
	}))

	req := Request{Identity: NewIdentity("", "170963849", "")}
	pos, err := resolver.Position(context.Background(), req, []string{"кран", "кран шаровый"})
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 8, *pos, "the first keyword's position wins even when a later keyword ranks better")
}

func TestPositionFallsBackToBestWhenPrimaryMisses(t *testing.T) {
	resolver := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `{"data":{"products":[]}}`)
			return
		}
		switch r.URL.Query().Get("query") {
		case "кран шаровый":
			fmt.Fprint(w, searchPage(100, 900000, 4, `{"id":170963849,"name":"Кран"}`))
		case "кран латунный":
			fmt.Fprint(w, searchPage(100, 900000, 1, `{"id":170963849,"name":"Кран"}`))
		default:
			fmt.Fprint(w, searchPage(50, 900000, -1, ""))
		}
	}))

	req := Request{Identity: NewIdentity("", "170963849", "")}
	pos, err := resolver.Position(context.Background(), req, []string{"кран", "кран шаровый", "кран латунный"})
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 2, *pos)
}

func TestPositionsForKeywords(t *testing.T) {
	resolver := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `{"data":{"products":[]}}`)
			return
		}
		if r.URL.Query().Get("query") == "кран шаровый" {
			fmt.Fprint(w, searchPage(100, 900000, 0, `{"id":170963849,"name":"Кран"}`))
			return
		}
		fmt.Fprint(w, searchPage(50, 900000, -1, ""))
	}))

	req := Request{Identity: NewIdentity("", "170963849", "")}
	got, err := resolver.PositionsForKeywords(context.Background(), req, []string{"кран шаровый ", "кран латунный", "кран шаровый"})
	require.NoError(t, err)
	require.Len(t, got, 2, "duplicate keywords resolve once")
	require.NotNil(t, got["кран шаровый"])
	assert.Equal(t, 1, *got["кран шаровый"])
	assert.Nil(t, got["кран латунный"])
}

func TestNormalizePosition(t *testing.T) {
	assert.Nil(t, NormalizePosition(0))
	assert.Nil(t, NormalizePosition(-3))
	assert.Equal(t, 500, *NormalizePosition(500))
	assert.Equal(t, 501, *NormalizePosition(780))
}

func TestSampleKeywordsCapsAtFive(t *testing.T) {
	kws := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		kws = append(kws, "kw"+strconv.Itoa(i))
	}
	assert.Len(t, sampleKeywords(append([]string{"", "  "}, kws...), primarySample), 5)
}
