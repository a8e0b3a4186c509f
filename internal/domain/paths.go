package domain

import "github.com/damoang/angple-messenger/internal/tree"

// Storage layout. Chat data lives under the company; contacts, invitations,
// categories and per-user preferences are company independent.

func CompanyPath(companyID string) string {
	return tree.Join("companies", companyID)
}

func ChatsPath(companyID string) string {
	return tree.Join("companies", companyID, "chats")
}

func ChatPath(companyID, chatID string) string {
	return tree.Join("companies", companyID, "chats", chatID)
}

func MessagesPath(companyID, chatID string) string {
	return tree.Join("companies", companyID, "messages", chatID)
}

func MessagePath(companyID, chatID, messageID string) string {
	return tree.Join("companies", companyID, "messages", chatID, messageID)
}

func UserChatsPath(companyID, userID string) string {
	return tree.Join("companies", companyID, "users", userID, "chats")
}

func UserChatPath(companyID, userID, chatID string) string {
	return tree.Join("companies", companyID, "users", userID, "chats", chatID)
}

// ChatScopeIndexPath maps a scoped chat (type, scope id) to its single chat id
func ChatScopeIndexPath(companyID string, t ChatType, scopeID string) string {
	return tree.Join("companies", companyID, "chatScopes", string(t), scopeID)
}

func UserStatusesPath(companyID string) string {
	return tree.Join("companies", companyID, "userStatus")
}

func UserStatusPath(companyID, userID string) string {
	return tree.Join("companies", companyID, "userStatus", userID)
}

func MembersPath(companyID string) string {
	return tree.Join("companies", companyID, "members")
}

func MemberPath(companyID, userID string) string {
	return tree.Join("companies", companyID, "members", userID)
}

func NotificationsPath(companyID, userID string) string {
	return tree.Join("companies", companyID, "notifications", userID)
}

func NotificationPath(companyID, userID, notificationID string) string {
	return tree.Join("companies", companyID, "notifications", userID, notificationID)
}

func CategoriesPath(companyID string) string {
	return tree.Join("categories", companyID)
}

func CategoryPath(companyID, categoryID string) string {
	return tree.Join("categories", companyID, categoryID)
}

func ContactsPath(userID string) string {
	return tree.Join("contacts", userID)
}

func ContactPath(userID, contactID string) string {
	return tree.Join("contacts", userID, contactID)
}

func InvitationsPath() string {
	return "contactInvitations"
}

func InvitationPath(invitationID string) string {
	return tree.Join("contactInvitations", invitationID)
}

// PendingInvitationPath guards against duplicate pending invitations per ordered pair
func PendingInvitationPath(fromUserID, toUserID string) string {
	return tree.Join("pendingInvitations", fromUserID, toUserID)
}

func ProfilePath(userID string) string {
	return tree.Join("users", userID, "profile")
}

func ChatSettingsPath(userID, chatID string) string {
	return tree.Join("users", userID, "chatSettings", chatID)
}

func DraftsPath(userID string) string {
	return tree.Join("users", userID, "drafts")
}

func DraftPath(userID, chatID string) string {
	return tree.Join("users", userID, "drafts", chatID)
}
