package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/genius-academy-api/internal/models"
	"github.com/noah-isme/genius-academy-api/internal/service"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
	"github.com/noah-isme/genius-academy-api/pkg/response"
)

type rosterExporter interface {
	Export(ctx context.Context, kind models.RoleKind, rawFormat string) (*service.ExportResult, error)
}

// ExportHandler streams account rosters as downloadable files.
type ExportHandler struct {
	exports rosterExporter
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(exports rosterExporter) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Export godoc
// @Summary Export roster
// @Description Download every account of a role as CSV, XLSX or PDF
// @Tags Exports
// @Produce octet-stream
// @Security BearerAuth
// @Param role path string true "students, parents, lecturers, others or admins"
// @Param format query string false "csv (default), xlsx or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /exports/{role} [get]
func (h *ExportHandler) Export(c *gin.Context) {
	kind, err := models.ParseRoleKind(c.Param("role"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	result, err := h.exports.Export(c.Request.Context(), kind, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("X-Row-Count", strconv.Itoa(result.Rows))
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}
