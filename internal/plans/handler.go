package plans

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvgenius-backend/internal/shared/server/middleware"
	"cvgenius-backend/internal/shared/server/respond"
)

// Handler exposes subscription endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches subscription routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/subscription", h.getSubscription)
	rg.POST("/subscription", h.updateSubscription)
}

func (h *Handler) getSubscription(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	sub, err := h.Svc.Get(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch subscription", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"tier":         sub.Tier,
		"start":        sub.Start,
		"end":          sub.End,
		"allowedCVs":   sub.AllowedCVs,
		"hasAnalytics": sub.HasAnalytics,
	})
}

type updateSubscriptionRequest struct {
	Tier           string `json:"tier"`
	SubscriptionID string `json:"subscriptionId"`
}

func (h *Handler) updateSubscription(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req updateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}
	if req.Tier == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "tier is required", nil)
		return
	}

	sub, err := h.Svc.UpdateSubscription(c.Request.Context(), userID, req.Tier, req.SubscriptionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownTier):
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown subscription tier", nil)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update subscription", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"tier":         sub.Tier,
		"start":        sub.Start,
		"end":          sub.End,
		"allowedCVs":   sub.AllowedCVs,
		"hasAnalytics": sub.HasAnalytics,
	})
}
