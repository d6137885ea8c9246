// Package handler exposes the account standing endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"propertyhub_backend/internal/directory/service"
	"propertyhub_backend/platform/httpkit"
	"propertyhub_backend/platform/logger"
)

// Handler serves eligibility, warnings and standing queries.
type Handler struct {
	svc *service.Service
	log *logger.Logger
}

// New creates a directory handler.
func New(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// CheckEligibility handles GET /agents/me/eligibility.
// Returns the gate result for the calling user, never an error status for
// an ineligible account.
func (h *Handler) CheckEligibility(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.CheckEligibility(c.Request.Context(), identity.UserID())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetWarnings handles GET /agents/me/warnings.
func (h *Handler) GetWarnings(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	warnings, err := h.svc.AgentWarnings(c.Request.Context(), identity.UserID())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warnings": warnings})
}

// GetStanding handles GET /agents/me/standing.
func (h *Handler) GetStanding(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	standing, err := h.svc.GetAgentStanding(c.Request.Context(), identity.UserID())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, standing)
}

// GetBuyerStanding handles GET /users/me/standing.
func (h *Handler) GetBuyerStanding(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	standing, err := h.svc.GetBuyerStanding(c.Request.Context(), identity.UserID())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, standing)
}
