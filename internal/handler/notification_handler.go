package handler

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// NotificationHandler handles notification requests
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// GetUnreadCount handles GET /notifications/unread-count
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	summary, err := h.service.GetUnreadCount(c.Request.Context(), middleware.GetScope(c), userID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "알림 수 조회 중 오류가 발생했습니다", err)
		return
	}
	c.JSON(http.StatusOK, common.APIResponse{Data: summary})
}

// GetList handles GET /notifications
func (h *NotificationHandler) GetList(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit := ginutil.QueryLimit(c, "limit", 20, 100)
	list, err := h.service.List(c.Request.Context(), middleware.GetScope(c), userID, limit)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "알림 목록 조회 중 오류가 발생했습니다", err)
		return
	}
	c.JSON(http.StatusOK, common.APIResponse{Data: list, Meta: &common.Meta{Limit: limit}})
}

// MarkAsRead handles POST /notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.MarkAsRead(c.Request.Context(), middleware.GetScope(c), userID, c.Param("id")); err != nil {
		common.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.APIResponse{Data: gin.H{"success": true}})
}

// MarkAllAsRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.MarkAllAsRead(c.Request.Context(), middleware.GetScope(c), userID); err != nil {
		common.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.APIResponse{Data: gin.H{"success": true}})
}
