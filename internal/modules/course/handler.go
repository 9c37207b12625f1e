// Package course implements the course catalog and progress endpoints.
// It serves paginated course listings, single-course detail, and the
// read/update pair for per-course study progress. Progress writes go
// through the shared state machine in internal/progress so time-based
// percentage suggestions and status transitions stay consistent with
// delta replay.
package course

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/data"
	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	"github.com/garyellow/ossu-tracker-go/internal/progress"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
	"github.com/gin-gonic/gin"
)

// Module constants for course handler.
const (
	ModuleName      = "course" // Module identifier for logs and metrics
	DefaultPageSize = 100      // Courses per page when ?limit= is absent
	MaxPageSize     = 500      // Hard cap; larger requests are clamped
)

// ProgressRecorder appends progress mutations to the durable delta log.
// Nil when object storage is not configured; updates then live only in
// the local database until the next snapshot.
type ProgressRecorder interface {
	RecordProgress(ctx context.Context, p *storage.Progress) error
}

// Handler serves course catalog and progress endpoints.
type Handler struct {
	db      *storage.DB
	deltas  ProgressRecorder
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewHandler creates a new course handler. deltas may be nil.
func NewHandler(db *storage.DB, deltas ProgressRecorder, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		db:      db,
		deltas:  deltas,
		metrics: m,
		logger:  log.WithModule(ModuleName),
	}
}

// RegisterRoutes mounts the course endpoints on the given router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/courses", h.listCourses)
	r.GET("/courses/:id", h.getCourse)
	r.GET("/courses/:id/progress", h.getProgress)
	r.PUT("/courses/:id/progress", h.updateProgress)
}

// progressUpdateRequest is the PUT body. Pointer fields distinguish
// "absent" from zero values; at least one must be set.
type progressUpdateRequest struct {
	Status         *string  `json:"status"`
	Percentage     *float64 `json:"percentage"`
	TimeSpentHours *float64 `json:"time_spent_hours"`
	Notes          *string  `json:"notes"`
}

func (h *Handler) listCourses(c *gin.Context) {
	ctx := c.Request.Context()

	curriculum := c.Query("curriculum")
	if curriculum != "" {
		if _, ok := data.GetCurriculum(curriculum); !ok {
			h.metrics.RecordHTTPError("not_found", ModuleName)
			c.JSON(http.StatusNotFound, gin.H{"error": "curriculum not found: " + curriculum})
			return
		}
	}
	category := c.Query("category")

	limit, err := intQuery(c, "limit", DefaultPageSize)
	if err != nil {
		h.metrics.RecordHTTPError("bad_request", ModuleName)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		h.metrics.RecordHTTPError("bad_request", ModuleName)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	courses, err := h.db.GetCourses(ctx, curriculum, category, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list courses")
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list courses"})
		return
	}
	if courses == nil {
		courses = []storage.Course{}
	}

	resp := gin.H{
		"courses": courses,
		"count":   len(courses),
		"limit":   limit,
		"offset":  offset,
	}
	if curriculum != "" {
		resp["curriculum"] = curriculum
	}
	if category != "" {
		resp["category"] = category
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getCourse(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	course, err := h.db.GetCourseByID(ctx, id)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to get course: %s", id)
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get course"})
		return
	}
	if course == nil {
		h.metrics.RecordHTTPError("not_found", ModuleName)
		c.JSON(http.StatusNotFound, gin.H{"error": "course not found: " + id})
		return
	}

	c.JSON(http.StatusOK, course)
}

func (h *Handler) getProgress(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	p, err := h.db.GetOrCreateProgress(ctx, id)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to get progress: %s", id)
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get progress"})
		return
	}
	if p == nil {
		h.metrics.RecordHTTPError("not_found", ModuleName)
		c.JSON(http.StatusNotFound, gin.H{"error": "course not found: " + id})
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) updateProgress(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var req progressUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.RecordHTTPError("bad_request", ModuleName)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	course, err := h.db.GetCourseByID(ctx, id)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to get course: %s", id)
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update progress"})
		return
	}
	if course == nil {
		h.metrics.RecordHTTPError("not_found", ModuleName)
		c.JSON(http.StatusNotFound, gin.H{"error": "course not found: " + id})
		return
	}

	current, err := h.db.GetOrCreateProgress(ctx, id)
	if err != nil || current == nil {
		h.logger.WithError(err).Errorf("Failed to load progress: %s", id)
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update progress"})
		return
	}

	st := progress.State{
		Status:         current.Status,
		Percentage:     current.Percentage,
		TimeSpentHours: current.TimeSpentHours,
		Notes:          current.Notes,
		StartedAt:      current.StartedAt,
		CompletedAt:    current.CompletedAt,
	}
	upd := progress.Update{
		Status:         req.Status,
		Percentage:     req.Percentage,
		TimeSpentHours: req.TimeSpentHours,
		Notes:          req.Notes,
	}

	// Estimation failure just disables time-based percentage suggestions
	estimated, _ := progress.EstimateTotalHours(course.Effort, course.Duration)

	now := time.Now().UTC()
	if err := progress.Apply(&st, upd, estimated, now); err != nil {
		h.metrics.RecordHTTPError("bad_request", ModuleName)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row := &storage.Progress{
		CourseID:       id,
		Status:         st.Status,
		Percentage:     st.Percentage,
		TimeSpentHours: st.TimeSpentHours,
		Notes:          st.Notes,
		StartedAt:      st.StartedAt,
		CompletedAt:    st.CompletedAt,
		UpdatedAt:      now,
	}
	if err := h.db.UpdateProgress(ctx, row); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.metrics.RecordHTTPError("not_found", ModuleName)
			c.JSON(http.StatusNotFound, gin.H{"error": "course not found: " + id})
			return
		}
		h.logger.WithError(err).Errorf("Failed to save progress: %s", id)
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update progress"})
		return
	}

	h.metrics.RecordProgressUpdate(course.Curriculum)

	// The delta append is cross-restart redundancy; the row is already
	// committed locally, so a failed append must not fail the request.
	// The next snapshot upload covers the gap.
	if h.deltas != nil {
		if err := h.deltas.RecordProgress(ctx, row); err != nil {
			h.logger.WithError(err).Warnf("Failed to append progress delta: %s", id)
		}
	}

	c.JSON(http.StatusOK, row)
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
