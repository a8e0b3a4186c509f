package domain

import "time"

// ChatType classifies how chat membership is defined
type ChatType string

const (
	ChatTypeDirect     ChatType = "direct"
	ChatTypeGroup      ChatType = "group"
	ChatTypeCompany    ChatType = "company"
	ChatTypeSite       ChatType = "site"
	ChatTypeDepartment ChatType = "department"
	ChatTypeRole       ChatType = "role"
)

// Valid reports whether t is a known chat type
func (t ChatType) Valid() bool {
	switch t {
	case ChatTypeDirect, ChatTypeGroup, ChatTypeCompany, ChatTypeSite, ChatTypeDepartment, ChatTypeRole:
		return true
	}
	return false
}

// Scoped reports whether membership follows an organisational scope. At most
// one chat exists per (company, type, scope id) for scoped types.
func (t ChatType) Scoped() bool {
	switch t {
	case ChatTypeCompany, ChatTypeSite, ChatTypeDepartment, ChatTypeRole:
		return true
	}
	return false
}

// Participant roles stored on user-chat index entries
const (
	ChatRoleOwner  = "owner"
	ChatRoleMember = "member"
)

// Chat is a conversation container stored at companies/{c}/chats/{id}
type Chat struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Type           ChatType      `json:"type"`
	Participants   []string      `json:"participants"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	CreatedBy      string        `json:"created_by"`
	CompanyID      string        `json:"company_id"`
	SiteID         string        `json:"site_id,omitempty"`
	DepartmentID   string        `json:"department_id,omitempty"`
	RoleID         string        `json:"role_id,omitempty"`
	CategoryID     string        `json:"category_id,omitempty"`
	IsPrivate      bool          `json:"is_private"`
	IsArchived     bool          `json:"is_archived"`
	LastMessage    *LastMessage  `json:"last_message,omitempty"`
	PinnedMessages []string      `json:"pinned_messages,omitempty"`
	Settings       *ChatFeatures `json:"settings,omitempty"`
}

// LastMessage is the denormalized mirror of a chat's most recent message
type LastMessage struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
}

// ChatFeatures are chat-wide switches set by chat admins
type ChatFeatures struct {
	AllowFileSharing bool `json:"allow_file_sharing"`
	AllowMentions    bool `json:"allow_mentions"`
	Muted            bool `json:"muted"`
}

// HasParticipant reports whether userID is a member of the chat
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ScopeID returns the organisational id a scoped chat is keyed on
func (c *Chat) ScopeID() string {
	switch c.Type {
	case ChatTypeCompany:
		return c.CompanyID
	case ChatTypeSite:
		return c.SiteID
	case ChatTypeDepartment:
		return c.DepartmentID
	case ChatTypeRole:
		return c.RoleID
	}
	return ""
}

// UserChatEntry is the per-user pointer at companies/{c}/users/{uid}/chats/{chatId}
type UserChatEntry struct {
	ChatID   string    `json:"chat_id"`
	JoinedAt time.Time `json:"joined_at"`
	Role     string    `json:"role"`
}

// CreateChatRequest is the input for chat creation
type CreateChatRequest struct {
	Name         string        `json:"name" binding:"required"`
	Description  string        `json:"description"`
	Participants []string      `json:"participants"`
	Type         ChatType      `json:"type" binding:"required"`
	IsPrivate    bool          `json:"is_private"`
	CategoryID   string        `json:"category_id"`
	Settings     *ChatFeatures `json:"settings"`
}

// UpdateChatRequest carries the mutable chat fields; nil means unchanged
type UpdateChatRequest struct {
	Name        *string       `json:"name"`
	Description *string       `json:"description"`
	IsPrivate   *bool         `json:"is_private"`
	IsArchived  *bool         `json:"is_archived"`
	CategoryID  *string       `json:"category_id"`
	Settings    *ChatFeatures `json:"settings"`
}

// Fields converts the request into a merge patch
func (r *UpdateChatRequest) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if r.Name != nil {
		fields["name"] = *r.Name
	}
	if r.Description != nil {
		fields["description"] = *r.Description
	}
	if r.IsPrivate != nil {
		fields["is_private"] = *r.IsPrivate
	}
	if r.IsArchived != nil {
		fields["is_archived"] = *r.IsArchived
	}
	if r.CategoryID != nil {
		if *r.CategoryID == "" {
			fields["category_id"] = nil
		} else {
			fields["category_id"] = *r.CategoryID
		}
	}
	if r.Settings != nil {
		fields["settings"] = r.Settings
	}
	return fields
}

// ChatCategory is a company-scoped grouping label at categories/{c}/{id}
type ChatCategory struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name" binding:"required"`
	Color     string    `json:"color,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Order     int       `json:"order"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
