package upload

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"automax/internal/pkg/response"
)

// multipart headers and the other form fields
const formOverhead = 1 << 20

// Handler serves the upload API and the media files behind MEDIA_URL.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Upload godoc
// @Summary Upload a file
// @Description Stores the file under user_<id>/ and returns its record.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File to upload"
// @Param field formData string false "profile_photo or attachment"
// @Success 201 {object} map[string]interface{}
// @Failure 400,401,413,500 {object} map[string]interface{}
// @Router /uploads [post]
func (h *Handler) Upload(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	fileHeader, ok := h.formFile(c)
	if !ok {
		return
	}
	// the form is parsed by now
	h.store(c, userID, c.DefaultPostForm("field", FieldAttachment), fileHeader)
}

// UploadProfilePhoto godoc
// @Summary Replace my profile photo
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Success 201 {object} map[string]interface{}
// @Failure 400,401,413,500 {object} map[string]interface{}
// @Router /users/me/photo [post]
func (h *Handler) UploadProfilePhoto(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}
	fileHeader, ok := h.formFile(c)
	if !ok {
		return
	}
	h.store(c, userID, FieldProfilePhoto, fileHeader)
}

// formFile parses the body, capped a little above the file size limit.
func (h *Handler) formFile(c *gin.Context) (*multipart.FileHeader, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.service.MaxFileSize()+formOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeValidation, ErrFileTooLarge.Error())
			return nil, false
		}
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "no file provided")
		return nil, false
	}
	return fileHeader, true
}

func (h *Handler) store(c *gin.Context, userID int64, field string, fileHeader *multipart.FileHeader) {
	owner := &UploadOwner{ID: userID}
	var upload *Upload
	var err error
	if field == FieldProfilePhoto {
		upload, err = h.service.SetProfilePhoto(c.Request.Context(), owner, fileHeader)
	} else {
		upload, err = h.service.Upload(c.Request.Context(), owner, field, fileHeader)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeValidation, err.Error())
		case errors.Is(err, ErrEmptyFile), errors.Is(err, ErrEmptyFilename), errors.Is(err, ErrInvalidFilename),
			errors.Is(err, ErrInvalidMimeType), errors.Is(err, ErrUnknownField):
			response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		case errors.Is(err, ErrPathTaken):
			response.Error(c, http.StatusConflict, response.CodeValidation, err.Error())
		default:
			logrus.WithError(err).WithField("user_id", userID).Error("upload failed")
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "upload failed")
		}
		return
	}

	response.Success(c, http.StatusCreated, toResponse(upload))
}

// GetByID godoc
// @Summary Get upload metadata by ID
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Upload ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /uploads/{id} [get]
func (h *Handler) GetByID(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	upload, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil || upload.UserID != userID {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, ErrUploadNotFound.Error())
		return
	}
	response.Success(c, http.StatusOK, toResponse(upload))
}

// Delete godoc
// @Summary Delete an upload (file + record)
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Upload ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403,404,500 {object} map[string]interface{}
// @Router /uploads/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		switch {
		case errors.Is(err, ErrUploadNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		case errors.Is(err, ErrNotOwner):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		default:
			logrus.WithError(err).WithField("upload_id", c.Param("id")).Error("delete failed")
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "delete failed")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "deleted"})
}

// ListMy godoc
// @Summary List my uploads
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /uploads [get]
func (h *Handler) ListMy(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	uploads, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to list uploads")
		return
	}

	items := make([]gin.H, 0, len(uploads))
	for _, u := range uploads {
		items = append(items, toResponse(u))
	}
	response.Success(c, http.StatusOK, items)
}

// ServeMedia streams a stored file by its storage path.
func (h *Handler) ServeMedia(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("filepath"), "/")

	upload, rc, err := h.service.OpenMedia(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, ErrUploadNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		logrus.WithError(err).WithField("path", name).Error("media open failed")
		c.Status(http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	etag := `"` + upload.Checksum + `"`
	headers := map[string]string{
		"ETag":          etag,
		"Cache-Control": "public, max-age=3600",
		"Last-Modified": upload.CreatedAt.UTC().Format(http.TimeFormat),
	}
	if upload.Checksum != "" && c.GetHeader("If-None-Match") == etag {
		for k, v := range headers {
			c.Header(k, v)
		}
		c.Status(http.StatusNotModified)
		return
	}

	c.DataFromReader(http.StatusOK, upload.Size, upload.MimeType, rc, headers)
}

func toResponse(u *Upload) gin.H {
	return gin.H{
		"id":         u.ID,
		"field":      u.Field,
		"path":       u.FilePath,
		"url":        u.FileURL,
		"name":       u.OriginalName,
		"mime_type":  u.MimeType,
		"size":       u.Size,
		"checksum":   u.Checksum,
		"created_at": u.CreatedAt.Format(time.RFC3339),
	}
}

func mustUserID(c *gin.Context) int64 {
	id, exists := c.Get("user_id")
	if !exists {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return 0
	}
	switch v := id.(type) {
	case int64:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int64(v)
		}
	}
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid user id")
	return 0
}
