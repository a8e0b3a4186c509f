package handler

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

const maxMessageWindow = 500

// MessageHandler handles chat message HTTP requests
type MessageHandler struct {
	messages      *service.MessageService
	chats         *service.ChatService
	attachments   *service.AttachmentService
	defaultWindow int
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messages *service.MessageService, chats *service.ChatService, attachments *service.AttachmentService, defaultWindow int) *MessageHandler {
	if defaultWindow <= 0 {
		defaultWindow = 50
	}
	return &MessageHandler{messages: messages, chats: chats, attachments: attachments, defaultWindow: defaultWindow}
}

// GetMessages handles GET /chats/:chatId/messages
// @Summary 최근 메시지 조회 (오래된 순)
// @Tags messenger
// @Produce json
// @Param limit query int false "개수 (기본 50)"
// @Success 200 {object} common.APIResponse{data=[]domain.Message}
// @Router /messenger/chats/{chatId}/messages [get]
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit := ginutil.QueryLimit(c, "limit", h.defaultWindow, maxMessageWindow)
	msgs, err := h.messages.GetMessages(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), limit)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, msgs, &common.Meta{Limit: limit})
}

// SendMessage handles POST /chats/:chatId/messages
// @Summary 메시지 전송
// @Tags messenger
// @Accept json
// @Produce json
// @Param request body domain.SendMessageRequest true "메시지"
// @Success 201 {object} common.APIResponse{data=domain.Message}
// @Router /messenger/chats/{chatId}/messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req domain.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.messages.SendMessage(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.APIResponse{Data: msg})
}

// EditMessage handles PATCH /chats/:chatId/messages/:messageId
func (h *MessageHandler) EditMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req domain.EditMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.messages.EditMessage(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), c.Param("messageId"), req.Text)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, msg, nil)
}

// DeleteMessage handles DELETE /chats/:chatId/messages/:messageId (soft delete)
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	msg, err := h.messages.DeleteMessage(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), c.Param("messageId"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, msg, nil)
}

// PinMessage handles POST /chats/:chatId/messages/:messageId/pin
func (h *MessageHandler) PinMessage(c *gin.Context) {
	h.setPinned(c, true)
}

// UnpinMessage handles DELETE /chats/:chatId/messages/:messageId/pin
func (h *MessageHandler) UnpinMessage(c *gin.Context) {
	h.setPinned(c, false)
}

func (h *MessageHandler) setPinned(c *gin.Context, pinned bool) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	msg, err := h.messages.SetPinned(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), c.Param("messageId"), pinned)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, msg, nil)
}

// AddReaction handles POST /chats/:chatId/messages/:messageId/reactions
func (h *MessageHandler) AddReaction(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req domain.ReactionRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.messages.AddReaction(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), c.Param("messageId"), req.Emoji)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, msg, nil)
}

// RemoveReaction handles DELETE /chats/:chatId/messages/:messageId/reactions/:emoji
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	msg, err := h.messages.RemoveReaction(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), c.Param("messageId"), c.Param("emoji"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, msg, nil)
}

type markReadRequest struct {
	MessageID string `json:"message_id"`
}

// MarkAsRead handles POST /chats/:chatId/read. Without message_id every
// message of the chat is marked.
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req markReadRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	n, err := h.messages.MarkAsRead(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), req.MessageID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"marked": n}, nil)
}

// ForwardMessage handles POST /chats/:chatId/messages/:messageId/forward
func (h *MessageHandler) ForwardMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req domain.ForwardMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.messages.ForwardMessage(c.Request.Context(), middleware.GetScope(c), userID, c.Param("chatId"), c.Param("messageId"), req.TargetChatID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.APIResponse{Data: msg})
}

// SearchMessages handles GET /search?q=&chat_id=
// @Summary 메시지 검색
// @Tags messenger
// @Produce json
// @Param q query string true "검색어"
// @Param chat_id query string false "특정 채팅으로 제한"
// @Success 200 {object} common.APIResponse{data=[]domain.SearchResult}
// @Router /messenger/search [get]
func (h *MessageHandler) SearchMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	res, err := h.messages.SearchMessages(c.Request.Context(), middleware.GetScope(c), userID, c.Query("q"), c.Query("chat_id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, res.Results, &common.Meta{Total: int64(len(res.Results)), Partial: res.Partial})
}

// UploadAttachment handles POST /chats/:chatId/attachments (multipart "file").
// The returned attachment goes into a later SendMessage.
func (h *MessageHandler) UploadAttachment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID := c.Param("chatId")
	if _, err := h.chats.GetChat(c.Request.Context(), middleware.GetScope(c), userID, chatID); err != nil {
		common.HandleError(c, err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "파일이 필요합니다", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "파일을 읽을 수 없습니다", err)
		return
	}
	defer f.Close()

	att, err := h.attachments.Upload(c.Request.Context(), userID, chatID, fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.APIResponse{Data: att})
}
