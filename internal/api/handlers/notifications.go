package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/softadastra-group/softadastra-chat/internal/api/middleware"
	"github.com/softadastra-group/softadastra-chat/internal/models"
	"github.com/softadastra-group/softadastra-chat/internal/services"
)

type NotificationHandler struct {
	chatService *services.ChatService
}

func NewNotificationHandler(chatService *services.ChatService) *NotificationHandler {
	return &NotificationHandler{chatService: chatService}
}

// List godoc
// @Summary List recent notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max rows (default 50)"
// @Success 200 {array} models.Notification
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	notifications, err := h.chatService.ListNotifications(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list notifications",
		})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// MarkAllRead godoc
// @Summary Mark every notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 204 "All notifications marked read"
// @Router /notifications/read [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.chatService.MarkNotificationsRead(c.Request.Context(), middleware.UserID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to mark notifications read",
		})
		return
	}
	c.Status(http.StatusNoContent)
}
