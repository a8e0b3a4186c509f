package handler

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/gin-gonic/gin"
)

// ChatHandler handles chat and category requests
type ChatHandler struct {
	chats      *service.ChatService
	categories *service.CategoryService
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chats *service.ChatService, categories *service.CategoryService) *ChatHandler {
	return &ChatHandler{chats: chats, categories: categories}
}

// requireUser writes 401 and reports false when the request has no user
func requireUser(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "로그인이 필요합니다", nil)
		return "", false
	}
	return userID, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", err)
		return false
	}
	return true
}

// ListChats handles GET /chats
// @Summary 내 채팅 목록
// @Tags messenger
// @Produce json
// @Success 200 {object} common.APIResponse{data=[]domain.Chat}
// @Router /messenger/chats [get]
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chats, err := h.chats.ListUserChats(c.Request.Context(), middleware.GetScope(c), userID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, chats, nil)
}

// CreateChat handles POST /chats
// @Summary 채팅 생성 (회사/사이트/부서/역할 채팅은 기존 채팅에 참여)
// @Tags messenger
// @Accept json
// @Produce json
// @Param request body domain.CreateChatRequest true "채팅 정보"
// @Success 201 {object} common.APIResponse{data=domain.Chat}
// @Router /messenger/chats [post]
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req domain.CreateChatRequest
	if !bindJSON(c, &req) {
		return
	}
	chat, err := h.chats.CreateChat(c.Request.Context(), middleware.GetScope(c), userID, &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.APIResponse{Data: chat})
}

// GetChat handles GET /chats/:chatId
func (h *ChatHandler) GetChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chat, err := h.chats.GetChat(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, chat, nil)
}

// UpdateChat handles PATCH /chats/:chatId
func (h *ChatHandler) UpdateChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req domain.UpdateChatRequest
	if !bindJSON(c, &req) {
		return
	}
	chat, err := h.chats.UpdateChat(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, chat, nil)
}

// DeleteChat handles DELETE /chats/:chatId
// @Summary 채팅 삭제 (생성자만)
// @Tags messenger
// @Router /messenger/chats/{chatId} [delete]
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.chats.DeleteChat(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId")); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type participantRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// AddParticipant handles POST /chats/:chatId/participants
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req participantRequest
	if !bindJSON(c, &req) {
		return
	}
	chat, err := h.chats.AddParticipant(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), req.UserID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, chat, nil)
}

// RemoveParticipant handles DELETE /chats/:chatId/participants/:userId
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chat, err := h.chats.RemoveParticipant(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), c.Param("userId"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, chat, nil)
}

type setCategoryRequest struct {
	CategoryID string `json:"category_id"`
}

// SetCategory handles PUT /chats/:chatId/category; an empty id clears it
func (h *ChatHandler) SetCategory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req setCategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	chat, err := h.chats.SetCategory(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), req.CategoryID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, chat, nil)
}

// ListCategories handles GET /categories
func (h *ChatHandler) ListCategories(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	list, err := h.categories.List(c.Request.Context(), middleware.GetScope(c))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, list, nil)
}

// CreateCategory handles POST /categories
func (h *ChatHandler) CreateCategory(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	var req domain.ChatCategory
	if !bindJSON(c, &req) {
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), middleware.GetScope(c), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.APIResponse{Data: cat})
}

// UpdateCategory handles PUT /categories/:categoryId
func (h *ChatHandler) UpdateCategory(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	var req domain.ChatCategory
	if !bindJSON(c, &req) {
		return
	}
	cat, err := h.categories.Update(c.Request.Context(), middleware.GetScope(c), c.Param("categoryId"), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, cat, nil)
}

// DeleteCategory handles DELETE /categories/:categoryId
func (h *ChatHandler) DeleteCategory(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	if err := h.categories.Delete(c.Request.Context(), middleware.GetScope(c), c.Param("categoryId")); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
