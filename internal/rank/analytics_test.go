package rank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalytics(t *testing.T, handler http.Handler) *Analytics {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAnalytics(newTestCache(), srv.URL)
}

func TestAnalyticsKeywordPosition(t *testing.T) {
	analytics := newTestAnalytics(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, analyticsReportPath, r.URL.Path)
		require.Equal(t, "test-token", r.Header.Get("Authorization"))

		var req struct {
			NMID        int      `json:"nmId"`
			SearchTexts []string `json:"searchTexts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 170963849, req.NMID)
		assert.Equal(t, []string{"труба дымохода"}, req.SearchTexts)

		// Positions live at arbitrary depths under drifting key names.
		fmt.Fprint(w, `{"data":{"items":[{"avgPosition":{"current":37}},{"openCard":{"position":12.4}}]}}`)
	}))

	pos := analytics.KeywordPosition(context.Background(), "test-token", "170963849", "труба  дымохода")
	require.NotNil(t, pos)
	assert.Equal(t, 12, *pos, "the best reported position wins")
}

func TestAnalyticsKeywordPositionRejected(t *testing.T) {
	analytics := newTestAnalytics(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	assert.Nil(t, analytics.KeywordPosition(context.Background(), "bad-token", "170963849", "труба"))
}

func TestAnalyticsKeywordPositionRequiresNumericID(t *testing.T) {
	calls := 0
	analytics := newTestAnalytics(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	assert.Nil(t, analytics.KeywordPosition(context.Background(), "token", "ABC-123", "труба"))
	assert.Nil(t, analytics.KeywordPosition(context.Background(), "", "170963849", "труба"))
	assert.Zero(t, calls)
}

func TestCollectPositionsIgnoresOutOfRange(t *testing.T) {
	var payload any
	require.NoError(t, json.Unmarshal([]byte(`{"position":0,"avgPosition":6000,"list":[{"searchPosition":42}]}`), &payload))
	assert.Equal(t, []int{42}, collectPositions(payload, nil))
}

func TestAnalyticsWindowCoversTwoWeeks(t *testing.T) {
	analytics := newTestAnalytics(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Period struct {
				Begin string `json:"begin"`
				End   string `json:"end"`
			} `json:"period"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Period.Begin)
		assert.NotEmpty(t, req.Period.End)
		assert.Less(t, req.Period.Begin, req.Period.End)
		fmt.Fprint(w, `{}`)
	}))
	assert.Nil(t, analytics.KeywordPosition(context.Background(), "token", "170963849", "труба"))
}
