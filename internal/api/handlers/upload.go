package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/softadastra-group/softadastra-chat/internal/adapters/storage"
	"github.com/softadastra-group/softadastra-chat/internal/models"
)

// maxUploadSize caps chat and feed image uploads at 8 MiB.
const maxUploadSize = 8 << 20

type UploadHandler struct {
	storage *storage.MinIOClient
}

func NewUploadHandler(storage *storage.MinIOClient) *UploadHandler {
	return &UploadHandler{storage: storage}
}

// Upload godoc
// @Summary Upload an image
// @Description Stores the image in object storage and returns its URL for use in messages and feed posts
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image file (max 8 MiB)"
// @Success 201 {object} map[string]string "url"
// @Failure 400 {object} models.ErrorResponse "Bad request"
// @Failure 413 {object} models.ErrorResponse "File too large"
// @Failure 503 {object} models.ErrorResponse "Uploads unavailable"
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Code:    http.StatusServiceUnavailable,
			Message: "Uploads are unavailable",
		})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Missing file field",
		})
		return
	}
	if file.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Code:    http.StatusRequestEntityTooLarge,
			Message: "File exceeds the 8 MiB limit",
		})
		return
	}

	url, err := h.storage.UploadImage(c.Request.Context(), file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Upload failed",
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
