// Package stats implements the aggregate progress statistics endpoint.
package stats

import (
	"net/http"

	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
	"github.com/gin-gonic/gin"
)

// ModuleName is the module identifier used in logs and metrics.
const ModuleName = "stats"

// Handler serves the statistics endpoint.
type Handler struct {
	db      *storage.DB
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewHandler creates a new stats handler.
func NewHandler(db *storage.DB, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		db:      db,
		metrics: m,
		logger:  log.WithModule(ModuleName),
	}
}

// RegisterRoutes mounts the stats endpoint on the given router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/stats", h.getStats)
}

func (h *Handler) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	totals, err := h.db.GetStats(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute catalog stats")
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	perCurriculum, err := h.db.GetCurriculumProgress(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute curriculum progress")
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	if perCurriculum == nil {
		perCurriculum = []storage.CurriculumProgress{}
	}

	c.JSON(http.StatusOK, gin.H{
		"catalog":   totals,
		"curricula": perCurriculum,
	})
}
