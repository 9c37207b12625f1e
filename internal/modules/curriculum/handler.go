// Package curriculum implements the curriculum registry endpoints.
// It serves the list of tracked OSSU curricula, per-curriculum detail with
// a category breakdown, and the course listing of a single curriculum.
// The registry is the source of truth for which curricula exist; database
// rows only contribute sync state and counts on top of it.
package curriculum

import (
	"net/http"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/data"
	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
	"github.com/gin-gonic/gin"
)

// ModuleName is the module identifier used in logs and metrics.
const ModuleName = "curriculum"

// Handler serves curriculum endpoints backed by the static registry and
// the catalog database.
type Handler struct {
	db      *storage.DB
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewHandler creates a new curriculum handler.
func NewHandler(db *storage.DB, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		db:      db,
		metrics: m,
		logger:  log.WithModule(ModuleName),
	}
}

// RegisterRoutes mounts the curriculum endpoints on the given router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/curricula", h.listCurricula)
	r.GET("/curricula/:name", h.getCurriculum)
	r.GET("/curricula/:name/courses", h.listCourses)
}

// summary is one entry in the curriculum listing. Registry fields are
// always present; course_count and last_synced stay zero until the first
// sync has populated the database.
type summary struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description,omitempty"`
	GitHubURL   string     `json:"github_url,omitempty"`
	CourseCount int        `json:"course_count"`
	LastSynced  *time.Time `json:"last_synced,omitempty"`
}

// detail extends summary with the per-category course breakdown.
type detail struct {
	summary
	Categories []storage.CategoryCount `json:"categories"`
}

func (h *Handler) listCurricula(c *gin.Context) {
	ctx := c.Request.Context()

	rows, err := h.db.GetAllCurricula(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list curricula")
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list curricula"})
		return
	}

	counts, err := h.db.CountCoursesByCurriculum(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to count courses per curriculum")
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list curricula"})
		return
	}

	synced := make(map[string]storage.Curriculum, len(rows))
	for _, row := range rows {
		synced[row.Name] = row
	}

	// Registry order, not database order: curricula that have never been
	// synced still show up with zero courses.
	out := make([]summary, 0, len(data.AllCurricula))
	for _, info := range data.AllCurricula {
		s := summary{
			Name:        info.Name,
			DisplayName: info.DisplayName,
			Description: info.Description,
			GitHubURL:   info.RepoURL,
			CourseCount: counts[info.Name],
		}
		if row, ok := synced[info.Name]; ok {
			s.LastSynced = row.LastSynced
		}
		out = append(out, s)
	}

	c.JSON(http.StatusOK, gin.H{
		"curricula": out,
		"count":     len(out),
	})
}

func (h *Handler) getCurriculum(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	info, ok := data.GetCurriculum(name)
	if !ok {
		h.metrics.RecordHTTPError("not_found", ModuleName)
		c.JSON(http.StatusNotFound, gin.H{"error": "curriculum not found: " + name})
		return
	}

	s := summary{
		Name:        info.Name,
		DisplayName: info.DisplayName,
		Description: info.Description,
		GitHubURL:   info.RepoURL,
	}

	row, err := h.db.GetCurriculum(ctx, name)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to get curriculum: %s", name)
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get curriculum"})
		return
	}
	if row != nil {
		s.LastSynced = row.LastSynced
	}

	categories, err := h.db.GetCategoryCounts(ctx, name)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to get category counts: %s", name)
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get curriculum"})
		return
	}
	for _, cat := range categories {
		s.CourseCount += cat.Count
	}

	// Empty slice, not null, when the curriculum has no courses yet
	if categories == nil {
		categories = []storage.CategoryCount{}
	}

	c.JSON(http.StatusOK, detail{summary: s, Categories: categories})
}

func (h *Handler) listCourses(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	if _, ok := data.GetCurriculum(name); !ok {
		h.metrics.RecordHTTPError("not_found", ModuleName)
		c.JSON(http.StatusNotFound, gin.H{"error": "curriculum not found: " + name})
		return
	}

	category := c.Query("category")

	courses, err := h.db.GetCourses(ctx, name, category, 0, 0)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to list courses: %s", name)
		h.metrics.RecordHTTPError("internal", ModuleName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list courses"})
		return
	}
	if courses == nil {
		courses = []storage.Course{}
	}

	resp := gin.H{
		"curriculum": name,
		"courses":    courses,
		"count":      len(courses),
	}
	if category != "" {
		resp["category"] = category
	}
	c.JSON(http.StatusOK, resp)
}
