package search

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dkoleva/inkwell/internal/telemetry/metrics"
	"github.com/dkoleva/inkwell/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type SearchResponse struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
}

type Handler struct {
	index          *Index
	metricsManager *metrics.Manager
}

func NewHandler(index *Index, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		index:          index,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/search", handler.handleSearch).Methods("GET", "OPTIONS").Name("search-posts")
}

func (handler *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "error, query empty", http.StatusBadRequest)
		return
	}

	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			http.Error(w, "error, invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxLimit)
	}

	results, err := handler.index.Search(query, limit)
	if err != nil {
		log.Errorf("search [%s]: %s", query, err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterSearches.Inc()

	respJson, err := json.Marshal(SearchResponse{Results: results, Total: len(results)})
	if err != nil {
		log.Errorf("marshal search results: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}
