// Package search implements the catalog search endpoint. Queries go to
// the ranked in-memory index when it is built, with a database substring
// match as the fallback; the response carries per-result confidence so
// clients can tell the two apart.
package search

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	searchsvc "github.com/garyellow/ossu-tracker-go/internal/search"
	"github.com/gin-gonic/gin"
)

// Module constants for search handler.
const (
	ModuleName     = "search" // Module identifier for logs and metrics
	DefaultLimit   = 10       // Results when ?limit= is absent
	MaxLimit       = 50       // Hard cap; larger requests are clamped
	MaxQueryLength = 100      // Longest accepted query string
)

// Searcher is the query side of the search service.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]searchsvc.Result, error)
	Enabled() bool
}

// Handler serves the course search endpoint.
type Handler struct {
	searcher Searcher
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewHandler creates a new search handler.
func NewHandler(searcher Searcher, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		searcher: searcher,
		metrics:  m,
		logger:   log.WithModule(ModuleName),
	}
}

// RegisterRoutes mounts the search endpoint on the given router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/search", h.search)
}

func (h *Handler) search(c *gin.Context) {
	ctx := c.Request.Context()

	query := c.Query("q")
	if query == "" {
		h.metrics.RecordHTTPError("bad_request", ModuleName)
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	if len(query) > MaxQueryLength {
		h.metrics.RecordHTTPError("bad_request", ModuleName)
		c.JSON(http.StatusBadRequest, gin.H{"error": "query too long"})
		return
	}

	limit, err := intQuery(c, "limit", DefaultLimit)
	if err != nil {
		h.metrics.RecordHTTPError("bad_request", ModuleName)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	start := time.Now()
	results, err := h.searcher.Search(ctx, query, limit)
	duration := time.Since(start).Seconds()

	if err != nil {
		h.metrics.RecordSearchQuery("error", duration)
		h.logger.WithError(err).Errorf("Search failed: %s", query)
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	if len(results) == 0 {
		h.metrics.RecordSearchQuery("empty", duration)
		results = []searchsvc.Result{}
	} else {
		h.metrics.RecordSearchQuery("success", duration)
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": results,
		"count":   len(results),
		"ranked":  h.searcher.Enabled(),
	})
}

// intQuery returns the named query parameter as a non-negative integer,
// or fallback when absent.
func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return v, nil
}
