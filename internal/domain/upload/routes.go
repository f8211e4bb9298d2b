package upload

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers upload routes under the protected group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	uploads := r.Group("/uploads")
	{
		uploads.POST("", h.Upload)
		uploads.GET("", h.ListMy)
		uploads.GET("/:id", h.GetByID)
		uploads.DELETE("/:id", h.Delete)
	}

	r.POST("/users/me/photo", h.UploadProfilePhoto)
}

// RegisterMediaRoutes serves stored files under mediaURL, e.g. /media/.
func RegisterMediaRoutes(r gin.IRoutes, mediaURL string, h *Handler) {
	prefix := "/" + strings.Trim(mediaURL, "/")
	r.GET(prefix+"/*filepath", h.ServeMedia)
	r.HEAD(prefix+"/*filepath", h.ServeMedia)
}
