package handler

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
	"github.com/noah-isme/genius-academy-api/pkg/response"
	"github.com/noah-isme/genius-academy-api/pkg/storage"
)

type mediaVerifier interface {
	Verify(token string) (string, error)
}

// MediaHandler serves stored pictures behind signed, expiring URLs.
type MediaHandler struct {
	signer mediaVerifier
	files  *storage.LocalStorage
	logger *zap.Logger
}

// NewMediaHandler constructs a MediaHandler.
func NewMediaHandler(signer mediaVerifier, files *storage.LocalStorage, logger *zap.Logger) *MediaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaHandler{signer: signer, files: files, logger: logger}
}

// Serve godoc
// @Summary Fetch a stored picture
// @Tags Media
// @Produce image/png
// @Param token path string true "Signed media token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /media/{token} [get]
func (h *MediaHandler) Serve(c *gin.Context) {
	path, err := h.signer.Verify(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired media link"))
		return
	}
	file, err := h.files.Open(path)
	if err != nil {
		h.logger.Debug("media not found", zap.String("path", path), zap.Error(err))
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read media"))
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
