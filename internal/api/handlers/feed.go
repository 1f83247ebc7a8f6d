package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/softadastra-group/softadastra-chat/internal/api/middleware"
	"github.com/softadastra-group/softadastra-chat/internal/models"
	"github.com/softadastra-group/softadastra-chat/internal/services"
)

type FeedHandler struct {
	feedService *services.FeedService
}

func NewFeedHandler(feedService *services.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

// Create godoc
// @Summary Publish a feed post
// @Tags feed
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateFeedPostRequest true "Post body and optional images"
// @Success 201 {object} models.FeedPostResponse
// @Failure 400 {object} models.ErrorResponse "Bad request"
// @Router /feed [post]
func (h *FeedHandler) Create(c *gin.Context) {
	var req models.CreateFeedPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid input data",
		})
		return
	}

	post, err := h.feedService.CreatePost(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to create post",
		})
		return
	}
	c.JSON(http.StatusCreated, post)
}

// List godoc
// @Summary List feed posts newest-first
// @Tags feed
// @Produce json
// @Param before query int false "Return posts older than this id"
// @Param limit query int false "Page size (default 20, max 50)"
// @Success 200 {array} models.FeedPostResponse
// @Router /feed [get]
func (h *FeedHandler) List(c *gin.Context) {
	beforeID, _ := strconv.ParseUint(c.DefaultQuery("before", "0"), 10, 32)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	posts, err := h.feedService.ListPosts(c.Request.Context(), uint(beforeID), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to list posts",
		})
		return
	}
	c.JSON(http.StatusOK, posts)
}
