// Package sync implements the manual catalog refresh endpoints. Triggers
// delegate to the sync service, which collapses concurrent requests for
// the same scope; an overlapping run surfaces as a conflict rather than
// a second fetch of the upstream repositories.
package sync

import (
	"context"
	"errors"
	"net/http"

	apperrors "github.com/garyellow/ossu-tracker-go/internal/errors"
	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	syncsvc "github.com/garyellow/ossu-tracker-go/internal/sync"
	"github.com/gin-gonic/gin"
)

// ModuleName is the module identifier used in logs and metrics.
const ModuleName = "sync"

// Service runs catalog syncs. Implemented by the sync service.
type Service interface {
	SyncAll(ctx context.Context) (*syncsvc.Summary, error)
	SyncCurriculum(ctx context.Context, name string) (*syncsvc.Summary, error)
}

// Handler serves the sync trigger endpoints.
type Handler struct {
	service Service
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewHandler creates a new sync handler.
func NewHandler(service Service, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		metrics: m,
		logger:  log.WithModule(ModuleName),
	}
}

// RegisterRoutes mounts the sync endpoints on the given router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/sync", h.syncAll)
	r.POST("/sync/:name", h.syncCurriculum)
}

func (h *Handler) syncAll(c *gin.Context) {
	h.logger.Info("Manual full sync requested")

	summary, err := h.service.SyncAll(c.Request.Context())
	if err != nil {
		h.respondError(c, "", err)
		return
	}

	h.metrics.RecordSyncRun("api", "success")
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) syncCurriculum(c *gin.Context) {
	name := c.Param("name")
	h.logger.Infof("Manual sync requested: %s", name)

	summary, err := h.service.SyncCurriculum(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, name, err)
		return
	}

	h.metrics.RecordSyncRun("api", "success")
	c.JSON(http.StatusOK, summary)
}

// respondError maps sync service failures to HTTP statuses. A rejected
// overlapping trigger never ran, so it does not count as a sync run.
func (h *Handler) respondError(c *gin.Context, name string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUnknownCurriculum):
		h.metrics.RecordHTTPError("not_found", ModuleName)
		c.JSON(http.StatusNotFound, gin.H{"error": "curriculum not found: " + name})
	case errors.Is(err, apperrors.ErrSyncInProgress):
		h.metrics.RecordHTTPError("conflict", ModuleName)
		c.JSON(http.StatusConflict, gin.H{"error": "a sync covering this scope is already running"})
	default:
		h.metrics.RecordSyncRun("api", "error")
		h.logger.WithError(err).Error("Manual sync failed")
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync failed"})
	}
}
