// Package handler exposes the notification feed and the SSE stream.
package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"propertyhub_backend/internal/notification/inapp"
	"propertyhub_backend/internal/notification/sse"
	"propertyhub_backend/platform/httpkit"
	"propertyhub_backend/platform/logger"
)

// Handler serves the notification endpoints.
type Handler struct {
	feed   *inapp.Repository
	stream *sse.Service
	log    *logger.Logger
}

// New creates a notification handler.
func New(feed *inapp.Repository, stream *sse.Service, log *logger.Logger) *Handler {
	return &Handler{feed: feed, stream: stream, log: log}
}

// List handles GET /notifications.
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	notifications, err := h.feed.ListByUser(c.Request.Context(), identity.UserID(), limit, offset)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// UnreadCount handles GET /notifications/unread-count.
func (h *Handler) UnreadCount(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	count, err := h.feed.CountUnread(c.Request.Context(), identity.UserID())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkRead handles POST /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "bad_request", "invalid notification id", nil)
		return
	}

	if err := h.feed.MarkRead(c.Request.Context(), identity.UserID(), id); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.feed.MarkAllRead(c.Request.Context(), identity.UserID()); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream handles GET /notifications/stream, holding the connection open and
// writing SSE frames as notifications arrive.
func (h *Handler) Stream(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ch, unsubscribe := h.stream.Subscribe(identity.UserID())
	defer unsubscribe()

	c.Stream(func(w io.Writer) bool {
		select {
		case payload, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("notification", string(payload))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
