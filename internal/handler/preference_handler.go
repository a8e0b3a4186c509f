package handler

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/gin-gonic/gin"
)

// PreferenceHandler handles per-user chat settings and drafts
type PreferenceHandler struct {
	prefs *service.PreferenceService
}

// NewPreferenceHandler creates a new PreferenceHandler
func NewPreferenceHandler(prefs *service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs}
}

// GetSettings handles GET /chats/:chatId/settings
func (h *PreferenceHandler) GetSettings(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	settings, err := h.prefs.GetSettings(c.Request.Context(), userID, c.Param("chatId"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, settings, nil)
}

// UpdateSettings handles PUT /chats/:chatId/settings
func (h *PreferenceHandler) UpdateSettings(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req domain.ChatSettings
	if !bindJSON(c, &req) {
		return
	}
	req.ChatID = c.Param("chatId")
	settings, err := h.prefs.UpdateSettings(c.Request.Context(), userID, &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, settings, nil)
}

// ListDrafts handles GET /drafts
func (h *PreferenceHandler) ListDrafts(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	drafts, err := h.prefs.ListDrafts(c.Request.Context(), userID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, drafts, nil)
}

// GetDraft handles GET /chats/:chatId/draft; data is null when none exists
func (h *PreferenceHandler) GetDraft(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	draft, err := h.prefs.GetDraft(c.Request.Context(), userID, c.Param("chatId"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, draft, nil)
}

// SaveDraft handles PUT /chats/:chatId/draft
// @Summary 임시 저장 (빈 텍스트는 삭제)
// @Tags messenger
// @Accept json
// @Param request body domain.SaveDraftRequest true "초안"
// @Router /messenger/chats/{chatId}/draft [put]
func (h *PreferenceHandler) SaveDraft(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req domain.SaveDraftRequest
	if !bindJSON(c, &req) {
		return
	}
	draft, err := h.prefs.SaveDraft(c.Request.Context(), userID, c.Param("chatId"), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, draft, nil)
}

// DeleteDraft handles DELETE /chats/:chatId/draft
func (h *PreferenceHandler) DeleteDraft(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.prefs.DeleteDraft(c.Request.Context(), userID, c.Param("chatId")); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
