package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/genius-academy-api/internal/dto"
	"github.com/noah-isme/genius-academy-api/internal/middleware"
	"github.com/noah-isme/genius-academy-api/internal/models"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
	"github.com/noah-isme/genius-academy-api/pkg/response"
)

type teacherInfoService interface {
	Create(ctx context.Context, actor *models.Principal, req dto.TeacherInfoRequest) (*models.TeacherInfo, error)
	Get(ctx context.Context, actor *models.Principal, id string) (*models.TeacherInfo, error)
	ListForTeacher(ctx context.Context, actor *models.Principal, accountID string) ([]models.TeacherInfo, error)
	Update(ctx context.Context, actor *models.Principal, id string, req dto.TeacherInfoRequest) (*models.TeacherInfo, error)
	Delete(ctx context.Context, actor *models.Principal, id string) error
}

// TeacherInfoHandler serves the lecturer registration sheets.
type TeacherInfoHandler struct {
	service teacherInfoService
}

// NewTeacherInfoHandler constructs a TeacherInfoHandler.
func NewTeacherInfoHandler(svc teacherInfoService) *TeacherInfoHandler {
	return &TeacherInfoHandler{service: svc}
}

// Create godoc
// @Summary Submit a teacher information sheet
// @Tags TeacherInfos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.TeacherInfoRequest true "Sheet"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /teacher-infos [post]
func (h *TeacherInfoHandler) Create(c *gin.Context) {
	var req dto.TeacherInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher info payload"))
		return
	}
	info, err := h.service.Create(c.Request.Context(), middleware.Principal(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.ResourceIDKey, info.ID)
	response.Created(c, info)
}

// List godoc
// @Summary List teacher information sheets
// @Description Lecturers see their own sheets; admins pass account_id
// @Tags TeacherInfos
// @Produce json
// @Security BearerAuth
// @Param account_id query string false "Lecturer account ID"
// @Success 200 {object} response.Envelope
// @Router /teacher-infos [get]
func (h *TeacherInfoHandler) List(c *gin.Context) {
	actor := middleware.Principal(c)
	accountID := c.Query("account_id")
	if accountID == "" && actor != nil {
		accountID = actor.ID
	}
	infos, err := h.service.ListForTeacher(c.Request.Context(), actor, accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, infos, nil)
}

// Get godoc
// @Summary Teacher information sheet
// @Tags TeacherInfos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Sheet ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teacher-infos/{id} [get]
func (h *TeacherInfoHandler) Get(c *gin.Context) {
	info, err := h.service.Get(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Update godoc
// @Summary Replace a teacher information sheet
// @Tags TeacherInfos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Sheet ID"
// @Param payload body dto.TeacherInfoRequest true "Sheet"
// @Success 200 {object} response.Envelope
// @Router /teacher-infos/{id} [put]
func (h *TeacherInfoHandler) Update(c *gin.Context) {
	var req dto.TeacherInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher info payload"))
		return
	}
	info, err := h.service.Update(c.Request.Context(), middleware.Principal(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Delete godoc
// @Summary Delete a teacher information sheet
// @Tags TeacherInfos
// @Security BearerAuth
// @Param id path string true "Sheet ID"
// @Success 204
// @Router /teacher-infos/{id} [delete]
func (h *TeacherInfoHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.Principal(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
