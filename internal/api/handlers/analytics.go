package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/softadastra-group/softadastra-chat/internal/api/middleware"
	"github.com/softadastra-group/softadastra-chat/internal/models"
	"github.com/softadastra-group/softadastra-chat/internal/services"
)

type AnalyticsHandler struct {
	analyticsService *services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// Ingest godoc
// @Summary Ingest a batch of tracking events
// @Description Accepts events from the tracking snippet. Anonymous callers are allowed; a bearer token attaches the user id.
// @Tags analytics
// @Accept json
// @Produce json
// @Param request body models.IngestRequest true "Event batch (max 100)"
// @Success 202 {object} map[string]interface{} "accepted count"
// @Failure 400 {object} models.ErrorResponse "Bad request"
// @Router /analytics/events [post]
func (h *AnalyticsHandler) Ingest(c *gin.Context) {
	var req models.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid event batch",
		})
		return
	}

	accepted, err := h.analyticsService.Ingest(c.Request.Context(), req.Events, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to ingest events",
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted})
}

// Snapshot godoc
// @Summary Current dashboard aggregates
// @Description Same data the dashboard socket receives on connect: active visitors, top pages and funnel totals.
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /analytics/snapshot [get]
func (h *AnalyticsHandler) Snapshot(c *gin.Context) {
	ctx := c.Request.Context()

	pages, err := h.analyticsService.TopPagesSnapshot(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to load snapshot",
		})
		return
	}
	funnel, err := h.analyticsService.FunnelSnapshot(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to load snapshot",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active_now": h.analyticsService.ActiveNow(),
		"top_pages":  pages,
		"funnel":     funnel,
	})
}
