package search

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkoleva/inkwell/internal/posts"
	"github.com/dkoleva/inkwell/internal/telemetry/metrics"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	idx := newMemIndex(t)
	require.NoError(t, idx.IndexPost(&posts.Post{
		Slug:    "deploying-with-systemd",
		Title:   "Deploying With Systemd",
		Content: "unit files, restarts and journald",
	}))
	require.NoError(t, idx.IndexPost(&posts.Post{
		Slug:    "pour-over-coffee",
		Title:   "Pour Over Coffee",
		Content: "grind size and water temperature",
	}))

	handler := NewHandler(idx, metrics.NewTestManager())
	router := mux.NewRouter()
	handler.SetupRoutes(router)
	return router
}

func TestHandler_route(t *testing.T) {
	router := newSearchTestRouter(t)

	req, err := http.NewRequest("GET", "/api/search?q=test", nil)
	require.NoError(t, err)

	routeMatch := &mux.RouteMatch{}
	muxRoute := router.Get("search-posts")
	require.NotNil(t, muxRoute)
	assert.True(t, muxRoute.Match(req, routeMatch))
}

func TestHandler_search(t *testing.T) {
	router := newSearchTestRouter(t)

	req, err := http.NewRequest("GET", "/api/search?q=journald", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var searchResp SearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &searchResp))
	require.Equal(t, 1, searchResp.Total)
	assert.Equal(t, "deploying-with-systemd", searchResp.Results[0].Slug)
}

func TestHandler_searchValidation(t *testing.T) {
	router := newSearchTestRouter(t)

	for caseName, target := range map[string]string{
		"missing query":  "/api/search",
		"empty query":    "/api/search?q=",
		"bad limit":      "/api/search?q=coffee&limit=abc",
		"zero limit":     "/api/search?q=coffee&limit=0",
		"negative limit": "/api/search?q=coffee&limit=-3",
	} {
		t.Run(caseName, func(t *testing.T) {
			req, err := http.NewRequest("GET", target, nil)
			require.NoError(t, err)
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestHandler_searchNoResults(t *testing.T) {
	router := newSearchTestRouter(t)

	req, err := http.NewRequest("GET", "/api/search?q=nonexistentterm", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var searchResp SearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &searchResp))
	assert.Zero(t, searchResp.Total)
	assert.Empty(t, searchResp.Results)
}
