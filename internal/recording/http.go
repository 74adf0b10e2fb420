package recording

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abduss/practiceroom/internal/auth"
	"github.com/abduss/practiceroom/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipartOverhead is the slack allowed on top of the payload limit for
// multipart boundaries and part headers.
const multipartOverhead = 64 * 1024

// RegisterRoutes mounts the recording API and the playback route. The caller
// is expected to have applied auth.RequireAPI to router.
func RegisterRoutes(router gin.IRouter, service *Service, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	handler := &httpHandler{service: service, log: log}
	router.POST("/api/upload-recording", handler.upload)
	router.POST("/api/rename-recording", handler.rename)
	router.POST("/api/delete-recording", handler.delete)
	router.GET("/api/get-recordings", handler.list)
	router.GET(URLPrefix+":filename", handler.download)
}

type httpHandler struct {
	service *Service
	log     *zap.Logger
}

type renameRequest struct {
	Filename string `json:"filename"`
	NewName  string `json:"newName"`
}

type deleteRequest struct {
	Filename string `json:"filename"`
}

func (h *httpHandler) upload(c *gin.Context) {
	identity, _ := auth.CurrentIdentity(c)

	if limit := h.service.MaxBytes(); limit > 0 {
		if c.Request.ContentLength > limit+multipartOverhead {
			h.fail(c, ErrTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, ErrTooLarge)
			return
		}
		h.fail(c, ErrEmptyPayload)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	ref, err := h.service.Upload(c.Request.Context(), identity, file, fileHeader.Size, fileHeader.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "filename": ref.Filename, "url": ref.URL})
}

func (h *httpHandler) list(c *gin.Context) {
	identity, _ := auth.CurrentIdentity(c)

	views, err := h.service.List(c.Request.Context(), identity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recordings": views})
}

func (h *httpHandler) rename(c *gin.Context) {
	identity, _ := auth.CurrentIdentity(c)

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, &ArgumentError{Msg: "No data provided"})
		return
	}

	name, err := h.service.Rename(c.Request.Context(), identity, req.Filename, req.NewName)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "newName": name})
}

func (h *httpHandler) delete(c *gin.Context) {
	identity, _ := auth.CurrentIdentity(c)

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, &ArgumentError{Msg: "No data provided"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), identity, req.Filename); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) download(c *gin.Context) {
	identity, _ := auth.CurrentIdentity(c)
	filename := c.Param("filename")

	link, err := h.service.DownloadURL(c.Request.Context(), identity, filename)
	if err != nil {
		h.fail(c, err)
		return
	}
	if link != "" {
		c.Redirect(http.StatusFound, link)
		return
	}

	reader, entry, err := h.service.Open(c.Request.Context(), identity, filename)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer reader.Close()

	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", entry.Filename),
		"Cache-Control":       "private, max-age=0",
	}
	c.DataFromReader(http.StatusOK, entry.Size, ContentTypeFor(entry.Filename), reader, headers)
}

func (h *httpHandler) fail(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c, h.log).Error("recording request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "error": message})
}

func statusFor(err error) (int, string) {
	if ae, ok := IsArgumentError(err); ok {
		return http.StatusBadRequest, ae.Msg
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, ErrUnsupportedFormat):
		return http.StatusBadRequest, "Unsupported audio format"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Recording not found"
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, "Invalid request"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
