// Package api exposes dataset search over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/refmatch"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/search"
)

const (
	// DefaultRecentLimit is the number of queries /queries/recent returns
	// without a limit parameter.
	DefaultRecentLimit = 20

	// MaxRecentLimit caps the limit parameter.
	MaxRecentLimit = 500
)

// Searcher is the service behind the API.
type Searcher interface {
	Search(ctx context.Context, dataset string, req search.Request) ([]core.Match, error)
	RecentQueries(ctx context.Context, limit int) ([]*core.QueryEntry, error)
	Datasets() []string
}

// API holds the dependencies of the handlers.
type API struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewAPI creates the handler set.
func NewAPI(searcher Searcher, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{searcher: searcher, logger: logger.With("component", "api")}
}

// NewRouter returns a gin engine with middleware and all routes installed.
func NewRouter(searcher Searcher, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), LoggerMiddleware(logger))
	SetupRoutes(router, searcher, logger)
	return router
}

// SetupRoutes defines the API routes.
func SetupRoutes(router *gin.Engine, searcher Searcher, logger *slog.Logger) {
	apiHandler := NewAPI(searcher, logger)

	router.GET("/healthz", apiHandler.HealthHandler)
	router.GET("/search/:dataset", apiHandler.SearchHandler)
	router.GET("/queries/recent", apiHandler.RecentQueriesHandler)
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Dataset   string       `json:"dataset"`
	Query     string       `json:"query"`
	Results   []core.Match `json:"results"`
	Took      string       `json:"took"`
	RequestID string       `json:"request_id,omitempty"`
}

// SearchHandler serves GET /search/:dataset.
//
// query holds the search text and subject=true forces semantic matching.
// Every other parameter is an exact-match filter on the column it names.
func (a *API) SearchHandler(c *gin.Context) {
	start := time.Now()
	dataset := c.Param("dataset")

	req := search.Request{Query: c.Query("query")}
	if v := c.Query("subject"); v != "" {
		subject, err := strconv.ParseBool(v)
		if err != nil {
			SendError(c, http.StatusBadRequest, ErrorCodeInvalidQuery, "subject must be a boolean")
			return
		}
		req.Subject = subject
	}
	for key, values := range c.Request.URL.Query() {
		if key == "query" || key == "subject" || len(values) == 0 {
			continue
		}
		if req.Filters == nil {
			req.Filters = make(map[string]string)
		}
		req.Filters[key] = values[0]
	}

	matches, err := a.searcher.Search(c.Request.Context(), dataset, req)
	if err != nil {
		if errors.Is(err, refmatch.ErrUnknownDataset) {
			SendError(c, http.StatusNotFound, ErrorCodeDatasetNotFound, "dataset '"+dataset+"' not found")
			return
		}
		a.logger.Error("search failed", "dataset", dataset, "err", err)
		SendError(c, http.StatusInternalServerError, ErrorCodeSearchFailed, "search failed")
		return
	}
	if matches == nil {
		matches = []core.Match{}
	}

	c.JSON(http.StatusOK, SearchResponse{
		Dataset:   dataset,
		Query:     req.Query,
		Results:   matches,
		Took:      time.Since(start).String(),
		RequestID: c.GetString(requestIDKey),
	})
}

// QueryView is the wire form of a logged query.
type QueryView struct {
	ID        uint64            `json:"id"`
	RequestID string            `json:"request_id"`
	Dataset   string            `json:"dataset"`
	Query     string            `json:"query"`
	Filters   map[string]string `json:"filters,omitempty"`
	Subject   bool              `json:"subject,omitempty"`
	Strategy  string            `json:"strategy"`
	Results   int               `json:"results"`
	TopScore  float64           `json:"top_score"`
	Duration  string            `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
}

func newQueryView(e *core.QueryEntry) QueryView {
	return QueryView{
		ID:        uint64(e.Id),
		RequestID: e.RequestID,
		Dataset:   e.Dataset,
		Query:     e.Query,
		Filters:   e.Filters,
		Subject:   e.Subject,
		Strategy:  e.Strategy,
		Results:   e.Results,
		TopScore:  e.TopScore,
		Duration:  e.Duration.String(),
		Timestamp: e.Timestamp,
	}
}

// RecentQueriesHandler serves GET /queries/recent?limit=N.
func (a *API) RecentQueriesHandler(c *gin.Context) {
	limit := DefaultRecentLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			SendError(c, http.StatusBadRequest, ErrorCodeInvalidQuery, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxRecentLimit)
	}

	entries, err := a.searcher.RecentQueries(c.Request.Context(), limit)
	if err != nil {
		a.logger.Error("failed to list queries", "err", err)
		SendError(c, http.StatusInternalServerError, ErrorCodeInternalError, "failed to list queries")
		return
	}
	views := make([]QueryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newQueryView(e))
	}
	c.JSON(http.StatusOK, gin.H{"queries": views})
}

// HealthHandler reports liveness and the served datasets.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "refmatch",
		"datasets": a.searcher.Datasets(),
	})
}
