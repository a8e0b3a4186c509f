package routes

import (
	"github.com/damoang/angple-messenger/internal/handler"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups every messenger handler for Setup
type Handlers struct {
	Chat         *handler.ChatHandler
	Message      *handler.MessageHandler
	Contact      *handler.ContactHandler
	Preference   *handler.PreferenceHandler
	Notification *handler.NotificationHandler
	Session      *handler.SessionHandler
	WS           *handler.WSHandler
}

// Setup configures all messenger routes. Every route requires a JWT and a
// resolvable company scope. redisClient may be nil, which disables the send
// limiter.
func Setup(router *gin.Engine, h *Handlers, jwtManager *jwt.Manager, redisClient *redis.Client) {
	authed := []gin.HandlerFunc{middleware.JWTAuth(jwtManager), middleware.ResolveScope()}
	sendLimit := middleware.RateLimitPerUser(redisClient, middleware.DefaultRateLimitConfig())

	api := router.Group("/api/v1/messenger", authed...)

	// 채팅
	chats := api.Group("/chats")
	chats.GET("", h.Chat.ListChats)
	chats.POST("", h.Chat.CreateChat)
	chats.GET("/:chatId", h.Chat.GetChat)
	chats.PATCH("/:chatId", h.Chat.UpdateChat)
	chats.DELETE("/:chatId", h.Chat.DeleteChat)
	chats.POST("/:chatId/participants", h.Chat.AddParticipant)
	chats.DELETE("/:chatId/participants/:userId", h.Chat.RemoveParticipant)
	chats.PUT("/:chatId/category", h.Chat.SetCategory)

	// 메시지
	chats.GET("/:chatId/messages", h.Message.GetMessages)
	chats.POST("/:chatId/messages", sendLimit, h.Message.SendMessage)
	chats.PATCH("/:chatId/messages/:messageId", h.Message.EditMessage)
	chats.DELETE("/:chatId/messages/:messageId", h.Message.DeleteMessage)
	chats.POST("/:chatId/messages/:messageId/pin", h.Message.PinMessage)
	chats.DELETE("/:chatId/messages/:messageId/pin", h.Message.UnpinMessage)
	chats.POST("/:chatId/messages/:messageId/reactions", h.Message.AddReaction)
	chats.DELETE("/:chatId/messages/:messageId/reactions/:emoji", h.Message.RemoveReaction)
	chats.POST("/:chatId/messages/:messageId/forward", sendLimit, h.Message.ForwardMessage)
	chats.POST("/:chatId/read", h.Message.MarkAsRead)
	chats.POST("/:chatId/attachments", h.Message.UploadAttachment)
	api.GET("/search", h.Message.SearchMessages)

	// 개인 설정 / 임시 저장
	chats.GET("/:chatId/settings", h.Preference.GetSettings)
	chats.PUT("/:chatId/settings", h.Preference.UpdateSettings)
	chats.GET("/:chatId/draft", h.Preference.GetDraft)
	chats.PUT("/:chatId/draft", h.Preference.SaveDraft)
	chats.DELETE("/:chatId/draft", h.Preference.DeleteDraft)
	api.GET("/drafts", h.Preference.ListDrafts)

	// 카테고리
	categories := api.Group("/categories")
	categories.GET("", h.Chat.ListCategories)
	categories.POST("", h.Chat.CreateCategory)
	categories.PUT("/:categoryId", h.Chat.UpdateCategory)
	categories.DELETE("/:categoryId", h.Chat.DeleteCategory)

	// 연락처 / 초대 / 상태
	api.GET("/contacts", h.Contact.ListContacts)
	api.GET("/contacts/work", h.Contact.WorkContacts)
	api.DELETE("/contacts/:contactId", h.Contact.DeleteContact)
	api.GET("/invitations", h.Contact.ListInvitations)
	api.POST("/invitations", sendLimit, h.Contact.SendInvitation)
	api.POST("/invitations/:invitationId/accept", h.Contact.AcceptInvitation)
	api.POST("/invitations/:invitationId/decline", h.Contact.DeclineInvitation)
	api.GET("/status", h.Contact.ListStatuses)
	api.PUT("/status", h.Contact.SetStatus)
	api.GET("/status/:userId", h.Contact.GetStatus)

	// 알림
	notifications := api.Group("/notifications")
	notifications.GET("", h.Notification.GetList)
	notifications.GET("/unread-count", h.Notification.GetUnreadCount)
	notifications.POST("/read-all", h.Notification.MarkAllAsRead)
	notifications.POST("/:id/read", h.Notification.MarkAsRead)

	// WebSocket
	wsGroup := router.Group("/ws", authed...)
	wsGroup.GET("/messenger", h.Session.Connect)
	wsGroup.GET("/notifications", h.WS.Connect)
}
