package sla

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/handler"
	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/service/sla"
	"github.com/jwalitptl/leadsla/internal/worker"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
)

type Service interface {
	Summary(ctx context.Context) (*sla.Summary, error)
	LeadsByStatus(ctx context.Context, status sla.Status) ([]*model.Lead, error)
	RecordStatusChange(ctx context.Context, leadID uuid.UUID, status model.LeadStatus, actorID uuid.UUID, comment string) (*model.StatusHistory, error)
	TransitionStatus(ctx context.Context, leadID uuid.UUID, status model.LeadStatus, actorID uuid.UUID, comment string) (*model.Lead, error)
	AlreadyNotified(ctx context.Context, leadID uuid.UUID, messageType model.MessageType) (bool, error)
}

// Trigger runs a check on demand.
type Trigger interface {
	Trigger(ctx context.Context, check string) (*sla.Report, error)
}

type Handler struct {
	service Service
	trigger Trigger
}

func NewHandler(service Service, trigger Trigger) *Handler {
	return &Handler{
		service: service,
		trigger: trigger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	s := r.Group("/sla")
	{
		s.GET("/summary", h.Summary)
		s.GET("/leads", h.ListLeads)
	}
	leads := r.Group("/leads/:id")
	{
		leads.POST("/status", h.TransitionStatus)
		leads.POST("/status-history", h.RecordStatusChange)
		leads.GET("/notifications/:type/sent", h.AlreadyNotified)
	}
}

// RegisterCommandRoutes registers the endpoints that start scans. They are
// kept separate so the router can throttle them.
func (h *Handler) RegisterCommandRoutes(r *gin.RouterGroup) {
	r.POST("/sla/checks/:check/run", h.RunCheck)
}

func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func (h *Handler) ListLeads(c *gin.Context) {
	status := sla.Status(c.DefaultQuery("status", string(sla.StatusBreached)))
	leads, err := h.service.LeadsByStatus(c.Request.Context(), status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(leads))
}

func (h *Handler) RunCheck(c *gin.Context) {
	report, err := h.trigger.Trigger(c.Request.Context(), c.Param("check"))
	switch {
	case errors.Is(err, worker.ErrUnknownCheck):
		c.JSON(http.StatusNotFound, handler.NewErrorResponse(err.Error()))
		return
	case errors.Is(err, worker.ErrTickInProgress):
		c.JSON(http.StatusConflict, handler.NewErrorResponse(err.Error()))
		return
	case err != nil:
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(report))
}

type statusRequest struct {
	Status    model.LeadStatus `json:"status" binding:"required"`
	UpdatedBy uuid.UUID        `json:"updated_by" binding:"required"`
	Comment   string           `json:"comment"`
}

func (h *Handler) bindStatus(c *gin.Context) (uuid.UUID, *statusRequest, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid lead id", err))
		return uuid.Nil, nil, false
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return uuid.Nil, nil, false
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("unknown lead status"))
		return uuid.Nil, nil, false
	}
	return id, &req, true
}

// TransitionStatus writes the new status and its history entry.
func (h *Handler) TransitionStatus(c *gin.Context) {
	id, req, ok := h.bindStatus(c)
	if !ok {
		return
	}
	lead, err := h.service.TransitionStatus(c.Request.Context(), id, req.Status, req.UpdatedBy, req.Comment)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(lead))
}

// RecordStatusChange logs a transition applied elsewhere.
func (h *Handler) RecordStatusChange(c *gin.Context) {
	id, req, ok := h.bindStatus(c)
	if !ok {
		return
	}
	entry, err := h.service.RecordStatusChange(c.Request.Context(), id, req.Status, req.UpdatedBy, req.Comment)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(entry))
}

func (h *Handler) AlreadyNotified(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid lead id", err))
		return
	}
	sent, err := h.service.AlreadyNotified(c.Request.Context(), id, model.MessageType(c.Param("type")))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"already_notified": sent}))
}
