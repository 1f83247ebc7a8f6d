package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/softadastra-group/softadastra-chat/internal/api/middleware"
	"github.com/softadastra-group/softadastra-chat/internal/models"
	"github.com/softadastra-group/softadastra-chat/internal/services"
)

const defaultHistoryLimit = 50

type MessageHandler struct {
	chatService *services.ChatService
}

func NewMessageHandler(chatService *services.ChatService) *MessageHandler {
	return &MessageHandler{chatService: chatService}
}

// ListThreads godoc
// @Summary List the caller's conversations
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ThreadSummary
// @Router /threads [get]
func (h *MessageHandler) ListThreads(c *gin.Context) {
	threads, err := h.chatService.ListThreads(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list threads",
		})
		return
	}
	c.JSON(http.StatusOK, threads)
}

// ThreadHistory godoc
// @Summary Page a thread's messages backwards
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Thread ID"
// @Param before query int false "Return messages older than this id"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {array} models.MessageResponse
// @Failure 403 {object} models.ErrorResponse "Not a thread participant"
// @Failure 404 {object} models.ErrorResponse "Thread not found"
// @Router /threads/{id}/messages [get]
func (h *MessageHandler) ThreadHistory(c *gin.Context) {
	threadID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid thread id",
		})
		return
	}
	beforeID, _ := strconv.ParseUint(c.DefaultQuery("before", "0"), 10, 32)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}

	messages, err := h.chatService.ThreadHistory(
		c.Request.Context(), uint(threadID), middleware.UserID(c), uint(beforeID), limit)
	if err != nil {
		if errors.Is(err, services.ErrNotThreadParticipant) {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Code:    http.StatusForbidden,
				Message: "Not a thread participant",
			})
			return
		}
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Code:    http.StatusNotFound,
			Message: "Thread not found",
		})
		return
	}
	c.JSON(http.StatusOK, messages)
}
