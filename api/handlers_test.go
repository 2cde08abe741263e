package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/refmatch"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/search"
)

type fakeSearcher struct {
	matches []core.Match
	err     error
	entries []*core.QueryEntry

	dataset   string
	req       search.Request
	requestID string
	limit     int
}

func (f *fakeSearcher) Search(ctx context.Context, dataset string, req search.Request) ([]core.Match, error) {
	f.dataset = dataset
	f.req = req
	f.requestID = refmatch.RequestID(ctx)
	if dataset != "school" {
		return nil, fmt.Errorf("%w: %q", refmatch.ErrUnknownDataset, dataset)
	}
	return f.matches, f.err
}

func (f *fakeSearcher) RecentQueries(_ context.Context, limit int) ([]*core.QueryEntry, error) {
	f.limit = limit
	return f.entries, f.err
}

func (f *fakeSearcher) Datasets() []string { return []string{"major", "school"} }

func setupTestRouter(s Searcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(s, nil)
}

func get(t *testing.T, router *gin.Engine, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSearchHandler(t *testing.T) {
	s := &fakeSearcher{matches: []core.Match{
		{Name: "Delhi Public School", Address: "R K Puram", Score: 102.5},
		{Name: "Doon Public School", Address: "Paschim Vihar", Score: 80},
	}}
	router := setupTestRouter(s)

	w := get(t, router, "/search/school?query=dps+rkp&curriculum=CBSE&subject=false")
	require.Equal(t, http.StatusOK, w.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "school", resp.Dataset)
	assert.Equal(t, "dps rkp", resp.Query)
	assert.Equal(t, s.matches, resp.Results)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, w.Header().Get(RequestIDHeader))

	assert.Equal(t, "school", s.dataset)
	assert.Equal(t, search.Request{
		Query:   "dps rkp",
		Filters: map[string]string{"curriculum": "CBSE"},
	}, s.req)
	assert.Equal(t, resp.RequestID, s.requestID)
}

func TestSearchHandler_AddressOmittedWhenEmpty(t *testing.T) {
	router := setupTestRouter(&fakeSearcher{matches: []core.Match{{Name: "Physics", Score: 91.2}}})

	w := get(t, router, "/search/school?query=phy")
	require.Equal(t, http.StatusOK, w.Code)

	var raw struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Len(t, raw.Results, 1)
	assert.Equal(t, map[string]any{"name": "Physics", "score": 91.2}, raw.Results[0])
}

func TestSearchHandler_EmptyResults(t *testing.T) {
	router := setupTestRouter(&fakeSearcher{})

	w := get(t, router, "/search/school")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestSearchHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
		code   ErrorCode
	}{
		{"unknown dataset", "/search/planet?query=x", nil, http.StatusNotFound, ErrorCodeDatasetNotFound},
		{"bad subject flag", "/search/school?query=x&subject=maybe", nil, http.StatusBadRequest, ErrorCodeInvalidQuery},
		{"search failure", "/search/school?query=x", errors.New("encoder down"), http.StatusInternalServerError, ErrorCodeSearchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(&fakeSearcher{err: tt.err})
			w := get(t, router, tt.target, RequestIDHeader, "req-42")
			require.Equal(t, tt.status, w.Code)

			var apiErr APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, "req-42", apiErr.RequestID)
		})
	}
}

func TestSearchHandler_SubjectFlag(t *testing.T) {
	s := &fakeSearcher{}
	router := setupTestRouter(s)

	w := get(t, router, "/search/school?query=phy&subject=true")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.req.Subject)
	assert.Nil(t, s.req.Filters)
}

func TestRequestIDMiddleware_ReusesCallerID(t *testing.T) {
	s := &fakeSearcher{}
	router := setupTestRouter(s)

	w := get(t, router, "/search/school?query=x", RequestIDHeader, "caller-id")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "caller-id", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "caller-id", s.requestID)
}

func TestRecentQueriesHandler(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &fakeSearcher{entries: []*core.QueryEntry{{
		Id:        7,
		RequestID: "r1",
		Dataset:   "school",
		Query:     "dps",
		Strategy:  "abbreviation",
		Results:   3,
		TopScore:  100,
		Duration:  1500 * time.Microsecond,
		Timestamp: ts,
	}}}
	router := setupTestRouter(s)

	w := get(t, router, "/queries/recent?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, s.limit)

	var resp struct {
		Queries []QueryView `json:"queries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Queries, 1)
	q := resp.Queries[0]
	assert.Equal(t, uint64(7), q.ID)
	assert.Equal(t, "abbreviation", q.Strategy)
	assert.Equal(t, "1.5ms", q.Duration)
	assert.True(t, ts.Equal(q.Timestamp))
}

func TestRecentQueriesHandler_Limits(t *testing.T) {
	s := &fakeSearcher{}
	router := setupTestRouter(s)

	w := get(t, router, "/queries/recent")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DefaultRecentLimit, s.limit)
	assert.Contains(t, w.Body.String(), `"queries":[]`)

	w = get(t, router, "/queries/recent?limit=100000")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, MaxRecentLimit, s.limit)

	for _, bad := range []string{"0", "-3", "ten"} {
		w = get(t, router, "/queries/recent?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestHealthHandler(t *testing.T) {
	router := setupTestRouter(&fakeSearcher{})

	w := get(t, router, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, []any{"major", "school"}, resp["datasets"])
}
