package analytics

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvgenius-backend/internal/cvs"
	"cvgenius-backend/internal/shared/server/middleware"
	"cvgenius-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analytics service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterPublicRoutes attaches the tracking endpoints called from generated
// CV pages. They are unauthenticated because viewers are anonymous.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/analytics/cv/:urlId/view", h.trackView)
	rg.POST("/analytics/cv/:urlId/section/:sectionId", h.trackSection)
}

// RegisterRoutes attaches the owner-facing reporting endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/analytics/cv/:urlId", h.cvAnalytics)
	rg.GET("/analytics/user", h.userAnalytics)
}

func (h *Handler) trackView(c *gin.Context) {
	if err := h.Svc.TrackView(c.Request.Context(), c.Param("urlId")); err != nil {
		respond.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to record view", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"tracked": true})
}

func (h *Handler) trackSection(c *gin.Context) {
	var body struct {
		SectionTitle string `json:"sectionTitle"`
	}
	// Body is optional; an empty title still counts the click.
	_ = c.ShouldBindJSON(&body)

	err := h.Svc.TrackSection(c.Request.Context(), c.Param("urlId"), c.Param("sectionId"), body.SectionTitle)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to record interaction", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"tracked": true})
}

func (h *Handler) cvAnalytics(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	summary, err := h.Svc.CVAnalytics(c.Request.Context(), userID, c.Param("urlId"))
	if err != nil {
		h.respondAnalyticsError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, summary)
}

func (h *Handler) userAnalytics(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	rows, err := h.Svc.UserAnalytics(c.Request.Context(), userID)
	if err != nil {
		h.respondAnalyticsError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, rows)
}

func (h *Handler) respondAnalyticsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNoAccess):
		respond.Error(c, http.StatusForbidden, "ANALYTICS_NOT_INCLUDED", "upgrade your plan to access analytics", nil)
	case errors.Is(err, cvs.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "cv not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load analytics", nil)
	}
}
