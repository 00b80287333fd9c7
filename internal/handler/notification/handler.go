package notification

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/handler"
	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/service/notification"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
)

type Service interface {
	ResendAssignment(ctx context.Context, leadID uuid.UUID) (notification.Outcome, error)
	RecordAssignment(ctx context.Context, leadID, assigneeID, actorID uuid.UUID, comment string) (notification.Outcome, error)
	RecordCreation(ctx context.Context, leadID, actorID uuid.UUID) (notification.Outcome, error)
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]*model.Notification, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/leads/:id/notifications", h.List)
}

func (h *Handler) RegisterCommandRoutes(r *gin.RouterGroup) {
	r.POST("/leads/:id/resend-email", h.ResendAssignment)
	r.POST("/leads/:id/assignment", h.RecordAssignment)
	r.POST("/leads/:id/created", h.RecordCreation)
}

type assignmentRequest struct {
	AssigneeID uuid.UUID `json:"assignee_id" binding:"required"`
	AssignedBy uuid.UUID `json:"assigned_by" binding:"required"`
	Comment    string    `json:"comment"`
}

type creationRequest struct {
	CreatedBy uuid.UUID `json:"created_by" binding:"required"`
}

func (h *Handler) List(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid lead id", err))
		return
	}
	rows, err := h.service.ListForLead(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if rows == nil {
		rows = []*model.Notification{}
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(rows))
}

// ResendAssignment mails the current assignee again. A delivery failure is
// reported in the body, not as an HTTP error.
func (h *Handler) ResendAssignment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid lead id", err))
		return
	}
	outcome, err := h.service.ResendAssignment(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, handler.NewSuccessResponse(gin.H{"outcome": outcome}))
}

// RecordAssignment is called by the CRUD layer after it has stored a new
// assignee. The audit entries are written even when the email fails.
func (h *Handler) RecordAssignment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid lead id", err))
		return
	}
	var req assignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	outcome, err := h.service.RecordAssignment(c.Request.Context(), id, req.AssigneeID, req.AssignedBy, req.Comment)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{"outcome": outcome}))
}

func (h *Handler) RecordCreation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid lead id", err))
		return
	}
	var req creationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	outcome, err := h.service.RecordCreation(c.Request.Context(), id, req.CreatedBy)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{"outcome": outcome}))
}
