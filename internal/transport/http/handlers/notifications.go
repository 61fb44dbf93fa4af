package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/usecase"
)

// NotificationService reads and acknowledges the caller's inbox.
type NotificationService interface {
	List(ctx context.Context, principal domain.Principal, unreadOnly bool, limit int) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, principal domain.Principal) (int, error)
	MarkRead(ctx context.Context, principal domain.Principal, notificationID string) error
	MarkAllRead(ctx context.Context, principal domain.Principal) (int64, error)
}

// NotificationHandler exposes the caller's notification inbox.
type NotificationHandler struct {
	notifications NotificationService
}

func NewNotificationHandler(notifications NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// RegisterRoutes binds inbox endpoints.
func (h *NotificationHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("", h.List)
	r.GET("/unread-count", h.UnreadCount)
	r.POST("/read-all", h.MarkAllRead)
	r.POST("/:id/read", h.MarkRead)
}

// List godoc
// @Summary List notifications, newest first
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread"
// @Param limit query int false "Page size"
// @Success 200 {object} NotificationListResponse
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	limit, valid := queryInt(c, "limit")
	if !valid {
		respondError(c, &usecase.ValidationError{Fields: map[string]string{"limit": "must be a non-negative integer"}})
		return
	}
	unreadOnly := c.Query("unread") == "true" || c.Query("unread") == "1"

	items, err := h.notifications.List(c.Request.Context(), principal, unreadOnly, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newNotificationListResponse(items))
}

// UnreadCount godoc
// @Summary Count unread notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UnreadCountResponse
// @Router /api/v1/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, UnreadCountResponse{Unread: count})
}

// MarkRead godoc
// @Summary Mark one notification read
// @Tags Notifications
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), principal, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAllRead godoc
// @Summary Mark every notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MarkAllReadResponse
// @Router /api/v1/notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllRead(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MarkAllReadResponse{Updated: updated})
}
