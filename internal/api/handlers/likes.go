package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/softadastra-group/softadastra-chat/internal/api/middleware"
	"github.com/softadastra-group/softadastra-chat/internal/models"
	"github.com/softadastra-group/softadastra-chat/internal/services"
)

type LikeHandler struct {
	likeService *services.LikeService
}

func NewLikeHandler(likeService *services.LikeService) *LikeHandler {
	return &LikeHandler{likeService: likeService}
}

// Toggle godoc
// @Summary Toggle a product like
// @Description Likes the product if the caller has not liked it, unlikes otherwise. Subscribed websocket clients receive the new count.
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 200 {object} map[string]interface{} "liked flag and likes_count"
// @Failure 400 {object} models.ErrorResponse "Invalid product id"
// @Router /products/{id}/like [post]
func (h *LikeHandler) Toggle(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || productID == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid product id",
		})
		return
	}

	liked, count, err := h.likeService.Toggle(c.Request.Context(), productID, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to toggle like",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id":  productID,
		"liked":       liked,
		"likes_count": count,
	})
}

// Count godoc
// @Summary Current like count for a product
// @Tags likes
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} map[string]interface{} "likes_count"
// @Router /products/{id}/likes [get]
func (h *LikeHandler) Count(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || productID == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid product id",
		})
		return
	}

	count, err := h.likeService.CountLikes(c.Request.Context(), productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to count likes",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": productID, "likes_count": count})
}
