package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milletsmon/internal/upload"
	"milletsmon/pkg/logger"
)

// multipart 头部与其它字段的余量
const multipartOverhead = 1 << 20

type UploadHandler struct {
	uploader *upload.Uploader
	logger   *zap.Logger
}

func NewUploadHandler(uploader *upload.Uploader, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{uploader: uploader, logger: logger}
}

// Upload POST /admin/uploads
// multipart 字段：file（必填），folder（可选，默认 uploads）
func (h *UploadHandler) Upload(c *gin.Context) {
	limit := h.uploader.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.logger, upload.ErrFileTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fh.Size > limit {
		respondError(c, h.logger, upload.ErrFileTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}
	folder := c.DefaultPostForm("folder", "uploads")

	stored, err := h.uploader.Upload(c.Request.Context(), token(c), folder, fh.Filename, contentType, body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": stored})
}

// Delete DELETE /admin/uploads/*key
func (h *UploadHandler) Delete(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.uploader.Delete(c.Request.Context(), token(c), key); err != nil {
		respondError(c, h.logger, err)
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Info("File deleted", zap.String("key", key))
	c.Status(http.StatusNoContent)
}
