package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/repositories"
)

// ImageHandler serves message image payloads stored out-of-band.
type ImageHandler struct {
	images repositories.ImageRepository
}

// NewImageHandler builds an ImageHandler.
func NewImageHandler(images repositories.ImageRepository) *ImageHandler {
	return &ImageHandler{images: images}
}

// GetImage streams a stored image. Image ids are unguessable, so the
// blob itself is served without auth; references only circulate inside
// conversations the caller could already read.
func (h *ImageHandler) GetImage(c *gin.Context) {
	id := c.Param("image_id")
	mime, data, err := h.images.GetImage(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load image"})
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, mime, data)
}
