package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/genius-academy-api/internal/models"
	"github.com/noah-isme/genius-academy-api/pkg/response"
)

type activityLister interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, *models.Pagination, error)
}

// ActivityHandler exposes the admin activity trail.
type ActivityHandler struct {
	activity activityLister
}

// NewActivityHandler constructs an ActivityHandler.
func NewActivityHandler(activity activityLister) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// List godoc
// @Summary List recent activity
// @Tags Activity
// @Produce json
// @Security BearerAuth
// @Param actor_id query string false "Actor account ID"
// @Param action query string false "Action name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /activity [get]
func (h *ActivityHandler) List(c *gin.Context) {
	filter := models.ActivityFilter{
		ActorID: c.Query("actor_id"),
		Action:  c.Query("action"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, pagination, err := h.activity.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}
