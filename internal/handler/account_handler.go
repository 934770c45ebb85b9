package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/genius-academy-api/internal/dto"
	"github.com/noah-isme/genius-academy-api/internal/middleware"
	"github.com/noah-isme/genius-academy-api/internal/models"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
	"github.com/noah-isme/genius-academy-api/pkg/response"
)

type accountService interface {
	Register(ctx context.Context, req dto.RegisterRequest, actor *models.Principal) (*dto.RegisterResponse, error)
	Get(ctx context.Context, id string) (*models.AccountDetail, error)
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error)
	UpdateProfile(ctx context.Context, id string, fields models.ProfileFields) (*models.AccountDetail, error)
	UpdateRoleProfile(ctx context.Context, id string, req dto.RoleProfileRequest, actor *models.Principal) (*models.AccountDetail, error)
	SetPicture(ctx context.Context, id string, r io.Reader) (*models.AccountDetail, error)
	Delete(ctx context.Context, id string, actor *models.Principal) error
	DeleteStudentProfile(ctx context.Context, studentID string) (string, error)
	DeleteParentProfile(ctx context.Context, parentID string) (string, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	Stats(ctx context.Context) (*models.AccountStats, error)
}

type credentialService interface {
	Issue(ctx context.Context, accountID string) (bool, error)
	Reset(ctx context.Context, accountID string) error
}

// AccountHandler exposes registration and account management endpoints.
type AccountHandler struct {
	accounts    accountService
	credentials credentialService
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(accounts accountService, credentials credentialService) *AccountHandler {
	return &AccountHandler{accounts: accounts, credentials: credentials}
}

// SelfRegister godoc
// @Summary Self registration
// @Description Public registration for students, parents and other accounts
// @Tags Accounts
// @Accept json
// @Produce json
// @Param role path string true "student, parent or other"
// @Param payload body dto.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /register/{role} [post]
func (h *AccountHandler) SelfRegister(c *gin.Context) {
	kind, err := models.ParseRoleKind(c.Param("role"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	req.Role = kind
	h.register(c, req, nil)
}

// Create godoc
// @Summary Create account
// @Description Admins create accounts of any role; ADMIN accounts need a super admin
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RegisterRequest true "Account payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid account payload"))
		return
	}
	if kind, err := models.ParseRoleKind(string(req.Role)); err == nil {
		req.Role = kind
	}
	h.register(c, req, middleware.Principal(c))
}

func (h *AccountHandler) register(c *gin.Context, req dto.RegisterRequest, actor *models.Principal) {
	res, err := h.accounts.Register(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.ResourceIDKey, res.Account.ID)
	response.Created(c, res)
}

// UsernameAvailable godoc
// @Summary Username availability
// @Tags Accounts
// @Produce json
// @Param username query string true "Username to check"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounts/username-available [get]
func (h *AccountHandler) UsernameAvailable(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "username is required"))
		return
	}
	available, err := h.accounts.UsernameAvailable(c.Request.Context(), username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.UsernameAvailability{Username: username, Available: available}, nil)
}

// List godoc
// @Summary List accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role filter"
// @Param active query bool false "Active filter"
// @Param search query string false "Search username, email or name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	var filter models.AccountFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if raw := c.Query("role"); raw != "" {
		kind, err := models.ParseRoleKind(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
			return
		}
		filter.Role = &kind
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be a boolean"))
			return
		}
		filter.Active = &active
	}
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	accounts, pagination, err := h.accounts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accounts, pagination)
}

// Get godoc
// @Summary Account detail
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounts/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	detail, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Stats godoc
// @Summary Account statistics
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /accounts/stats [get]
func (h *AccountHandler) Stats(c *gin.Context) {
	stats, err := h.accounts.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// UpdateProfile godoc
// @Summary Update shared profile fields
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param payload body models.ProfileFields true "Profile fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /accounts/{id}/profile [put]
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var fields models.ProfileFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}
	detail, err := h.accounts.UpdateProfile(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateRoleProfile godoc
// @Summary Update role profile
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param payload body dto.RoleProfileRequest true "Role payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounts/{id}/role-profile [put]
func (h *AccountHandler) UpdateRoleProfile(c *gin.Context) {
	var req dto.RoleProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid role payload"))
		return
	}
	detail, err := h.accounts.UpdateRoleProfile(c.Request.Context(), c.Param("id"), req, middleware.Principal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UploadPicture godoc
// @Summary Upload profile picture
// @Tags Accounts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param picture formData file true "Image file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounts/{id}/picture [put]
func (h *AccountHandler) UploadPicture(c *gin.Context) {
	header, err := c.FormFile("picture")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "picture file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable picture"))
		return
	}
	defer file.Close()

	detail, err := h.accounts.SetPicture(c.Request.Context(), c.Param("id"), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// IssueCredentials godoc
// @Summary Issue generated credentials
// @Description Generates and sends credentials once; repeated calls are no-ops
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounts/{id}/credentials/issue [post]
func (h *AccountHandler) IssueCredentials(c *gin.Context) {
	issued, err := h.credentials.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"issued": issued}, nil)
}

// ResetCredentials godoc
// @Summary Reset generated credentials
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounts/{id}/credentials/reset [post]
func (h *AccountHandler) ResetCredentials(c *gin.Context) {
	if err := h.credentials.Reset(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"message": "new credentials queued for delivery"})
}

// Delete godoc
// @Summary Delete account
// @Tags Accounts
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounts/{id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.accounts.Delete(c.Request.Context(), c.Param("id"), middleware.Principal(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteStudent godoc
// @Summary Delete a student profile and its account
// @Tags Accounts
// @Security BearerAuth
// @Param id path string true "Student profile ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *AccountHandler) DeleteStudent(c *gin.Context) {
	h.deleteProfile(c, h.accounts.DeleteStudentProfile)
}

// DeleteParent godoc
// @Summary Delete a parent profile and its account
// @Tags Accounts
// @Security BearerAuth
// @Param id path string true "Parent profile ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /parents/{id} [delete]
func (h *AccountHandler) DeleteParent(c *gin.Context) {
	h.deleteProfile(c, h.accounts.DeleteParentProfile)
}

func (h *AccountHandler) deleteProfile(c *gin.Context, del func(context.Context, string) (string, error)) {
	accountID, err := del(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.ResourceIDKey, accountID)
	response.NoContent(c)
}
