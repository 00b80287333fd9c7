package audit

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/handler"
	"github.com/jwalitptl/leadsla/internal/model"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
)

type Service interface {
	List(ctx context.Context, filters *model.AuditFilters) ([]*model.StatusHistory, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit-logs", h.ListLogs)
	r.GET("/leads/:id/history", h.LeadHistory)
}

type listQuery struct {
	ActionType string `form:"action_type"`
	LeadID     string `form:"lead_id" binding:"omitempty,uuid"`
	UserID     string `form:"user_id" binding:"omitempty,uuid"`
	Skip       int    `form:"skip" binding:"min=0"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

// ListLogs returns audit entries newest first, filtered by action type,
// lead and acting user.
func (h *Handler) ListLogs(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	filters := &model.AuditFilters{
		ActionType: q.ActionType,
		Pagination: model.Pagination{Offset: q.Skip, Limit: q.Limit},
	}
	if q.LeadID != "" {
		id := uuid.MustParse(q.LeadID)
		filters.LeadID = &id
	}
	if q.UserID != "" {
		id := uuid.MustParse(q.UserID)
		filters.UserID = &id
	}

	logs, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
}

func (h *Handler) LeadHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid lead id", err))
		return
	}

	logs, err := h.service.List(c.Request.Context(), &model.AuditFilters{LeadID: &id})
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
}
