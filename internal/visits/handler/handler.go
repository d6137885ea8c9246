// Package handler exposes the visit request endpoints.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"propertyhub_backend/internal/visits/service"
	"propertyhub_backend/internal/visits/transport"
	"propertyhub_backend/platform/httpkit"
	"propertyhub_backend/platform/logger"
	"propertyhub_backend/platform/validator"
)

// Handler serves the visit request API.
type Handler struct {
	svc *service.Service
	val *validator.Validator
	log *logger.Logger
}

// New creates a visits handler.
func New(svc *service.Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, val: val, log: log}
}

// Create handles POST /visits.
func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	visit, err := h.svc.Create(c.Request.Context(), identity.UserID(), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transport.ToVisitResponse(visit))
}

// Accept handles POST /visits/:id/accept.
func (h *Handler) Accept(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	visitID, ok := h.visitID(c)
	if !ok {
		return
	}

	var req transport.AcceptVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httpkit.Error(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	visit, err := h.svc.Accept(c.Request.Context(), identity.UserID(), visitID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, transport.ToVisitResponse(visit))
}

// ProposeReschedule handles POST /visits/:id/propose.
func (h *Handler) ProposeReschedule(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	visitID, ok := h.visitID(c)
	if !ok {
		return
	}

	var req transport.ProposeRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	visit, err := h.svc.ProposeReschedule(c.Request.Context(), identity.UserID(), visitID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, transport.ToVisitResponse(visit))
}

// Decline handles POST /visits/:id/decline.
func (h *Handler) Decline(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	visitID, ok := h.visitID(c)
	if !ok {
		return
	}

	var req transport.DeclineVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	out, err := h.svc.Decline(c.Request.Context(), identity.UserID(), visitID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"visit":    transport.ToVisitResponse(out.Visit),
		"warnings": out.Warnings,
	})
}

// ConfirmProposal handles POST /visits/:id/confirm.
func (h *Handler) ConfirmProposal(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	visitID, ok := h.visitID(c)
	if !ok {
		return
	}

	visit, err := h.svc.ConfirmProposal(c.Request.Context(), identity.UserID(), visitID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, transport.ToVisitResponse(visit))
}

// Complete handles POST /visits/:id/complete.
func (h *Handler) Complete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	visitID, ok := h.visitID(c)
	if !ok {
		return
	}

	var req transport.CompleteVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	out, err := h.svc.Complete(c.Request.Context(), identity.UserID(), visitID, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"visit":    transport.ToVisitResponse(out.Visit),
		"warnings": out.Warnings,
	})
}

// Cancel handles POST /visits/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	visitID, ok := h.visitID(c)
	if !ok {
		return
	}

	visit, err := h.svc.Cancel(c.Request.Context(), identity.UserID(), visitID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, transport.ToVisitResponse(visit))
}

// MarkInterested handles POST /visits/:id/interested.
func (h *Handler) MarkInterested(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	visitID, ok := h.visitID(c)
	if !ok {
		return
	}

	visit, err := h.svc.MarkInterested(c.Request.Context(), identity.UserID(), visitID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, transport.ToVisitResponse(visit))
}

// Get handles GET /visits/:id.
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	visitID, ok := h.visitID(c)
	if !ok {
		return
	}

	visit, err := h.svc.Get(c.Request.Context(), identity.UserID(), visitID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, transport.ToVisitResponse(visit))
}

// ListMine handles GET /visits/my-requests.
func (h *Handler) ListMine(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	limit, offset, ok := h.pagination(c)
	if !ok {
		return
	}

	visits, err := h.svc.ListForBuyer(c.Request.Context(), identity.UserID(), limit, offset)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visits": transport.ToVisitResponses(visits)})
}

// ListForAgent handles GET /visits/agent-requests.
func (h *Handler) ListForAgent(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	limit, offset, ok := h.pagination(c)
	if !ok {
		return
	}

	visits, err := h.svc.ListForAgent(c.Request.Context(), identity.UserID(), limit, offset)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visits": transport.ToVisitResponses(visits)})
}

func (h *Handler) visitID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "bad_request", "invalid visit id", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) pagination(c *gin.Context) (limit, offset int, ok bool) {
	var q transport.ListVisitsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "bad_request", "invalid pagination query", nil)
		return 0, 0, false
	}
	if err := h.val.Struct(q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return 0, 0, false
	}
	return q.Limit, q.Offset, true
}
