package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/tree"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// ChatRepository chat data access interface
type ChatRepository interface {
	Create(ctx context.Context, scope domain.Scope, chat *domain.Chat) (*domain.Chat, error)
	FindByID(ctx context.Context, scope domain.Scope, chatID string) (*domain.Chat, error)
	FindUserChats(ctx context.Context, scope domain.Scope, userID string) ([]*domain.Chat, error)
	FindUserChatEntries(ctx context.Context, scope domain.Scope, userID string) ([]domain.UserChatEntry, error)
	FindAll(ctx context.Context, scope domain.Scope) ([]*domain.Chat, error)
	FindCompanyChats(ctx context.Context, scope domain.Scope) ([]*domain.Chat, error)
	FindSiteChats(ctx context.Context, scope domain.Scope, siteID string) ([]*domain.Chat, error)
	FindDepartmentChats(ctx context.Context, scope domain.Scope, departmentID string) ([]*domain.Chat, error)
	FindRoleChats(ctx context.Context, scope domain.Scope, roleID string) ([]*domain.Chat, error)
	Update(ctx context.Context, scope domain.Scope, chatID string, fields map[string]interface{}) error
	Delete(ctx context.Context, scope domain.Scope, chatID string) error

	AddParticipant(ctx context.Context, scope domain.Scope, chatID, userID string) (*domain.Chat, error)
	RemoveParticipant(ctx context.Context, scope domain.Scope, chatID, userID string) (*domain.Chat, error)
	EnsureUserChatEntry(ctx context.Context, scope domain.Scope, userID, chatID, role string) (bool, error)
	SetPinned(ctx context.Context, scope domain.Scope, chatID, messageID string, pinned bool) (*domain.Chat, error)
	PatchLastMessage(ctx context.Context, scope domain.Scope, chatID string, msg *domain.Message) (bool, error)
	ClearCategory(ctx context.Context, scope domain.Scope, categoryID string) (int, error)

	FindScopeChatID(ctx context.Context, scope domain.Scope, chatType domain.ChatType, scopeID string) (string, error)
	ClaimScope(ctx context.Context, scope domain.Scope, chatType domain.ChatType, scopeID, chatID string) (string, error)

	SubscribeUserChats(scope domain.Scope, userID string, fn func()) func()
	SubscribeChats(scope domain.Scope, fn func()) func()
}

type chatRepository struct {
	store *tree.Store
}

// NewChatRepository creates a new ChatRepository
func NewChatRepository(store *tree.Store) ChatRepository {
	return &chatRepository{store: store}
}

func requireScope(scope domain.Scope) error {
	if !scope.Valid() {
		return fmt.Errorf("%w: company scope is required", common.ErrInvalidInput)
	}
	return nil
}

// Create stores the chat and an index entry for every participant in one commit.
// The creator is always added as a participant. Scoped chats are not claimed
// here; see ClaimScope.
func (r *chatRepository) Create(ctx context.Context, scope domain.Scope, chat *domain.Chat) (*domain.Chat, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	now := r.store.Now()
	if chat.ID == "" {
		chat.ID = r.store.NewKey()
	}
	chat.CompanyID = scope.CompanyID
	chat.CreatedAt = now
	chat.UpdatedAt = now
	if chat.CreatedBy != "" {
		chat.AddParticipant(chat.CreatedBy)
	}

	ops := []tree.Op{tree.SetOp(domain.ChatPath(scope.CompanyID, chat.ID), chat)}
	for _, uid := range chat.Participants {
		role := domain.ChatRoleMember
		if uid == chat.CreatedBy {
			role = domain.ChatRoleOwner
		}
		ops = append(ops, tree.SetOp(
			domain.UserChatPath(scope.CompanyID, uid, chat.ID),
			domain.UserChatEntry{ChatID: chat.ID, JoinedAt: now, Role: role},
		))
	}
	if err := r.store.Commit(ctx, ops...); err != nil {
		pkglogger.GetLogger().Error().Err(err).
			Str("company_id", scope.CompanyID).
			Str("chat_id", chat.ID).
			Msg("create chat failed")
		return nil, err
	}
	return chat, nil
}

// FindByID returns the chat or common.ErrChatNotFound
func (r *chatRepository) FindByID(ctx context.Context, scope domain.Scope, chatID string) (*domain.Chat, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	var chat domain.Chat
	found, err := r.store.Get(ctx, domain.ChatPath(scope.CompanyID, chatID), &chat)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", common.ErrChatNotFound, chatID)
	}
	return &chat, nil
}

// FindUserChatEntries reads the user's chat index
func (r *chatRepository) FindUserChatEntries(ctx context.Context, scope domain.Scope, userID string) ([]domain.UserChatEntry, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	snaps, err := r.store.Children(ctx, domain.UserChatsPath(scope.CompanyID, userID))
	if err != nil {
		return nil, err
	}
	entries := make([]domain.UserChatEntry, 0, len(snaps))
	for _, s := range snaps {
		var e domain.UserChatEntry
		if err := s.Decode(&e); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("path", s.Path).Msg("skipping malformed user chat entry")
			continue
		}
		if e.ChatID == "" {
			e.ChatID = s.Key
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FindUserChats resolves the user's index. Entries pointing at missing chats
// are logged and skipped.
func (r *chatRepository) FindUserChats(ctx context.Context, scope domain.Scope, userID string) ([]*domain.Chat, error) {
	entries, err := r.FindUserChatEntries(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	chats := make([]*domain.Chat, 0, len(entries))
	for _, e := range entries {
		var chat domain.Chat
		found, err := r.store.Get(ctx, domain.ChatPath(scope.CompanyID, e.ChatID), &chat)
		if err != nil {
			return nil, err
		}
		if !found {
			pkglogger.GetLogger().Warn().
				Str("company_id", scope.CompanyID).
				Str("user_id", userID).
				Str("chat_id", e.ChatID).
				Msg("user chat index references a missing chat")
			continue
		}
		chats = append(chats, &chat)
	}
	return chats, nil
}

// FindAll scans every chat of the company
func (r *chatRepository) FindAll(ctx context.Context, scope domain.Scope) ([]*domain.Chat, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	snaps, err := r.store.Children(ctx, domain.ChatsPath(scope.CompanyID))
	if err != nil {
		return nil, err
	}
	chats := make([]*domain.Chat, 0, len(snaps))
	for _, s := range snaps {
		var chat domain.Chat
		if err := s.Decode(&chat); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("path", s.Path).Msg("skipping malformed chat")
			continue
		}
		chats = append(chats, &chat)
	}
	return chats, nil
}

func (r *chatRepository) findScoped(ctx context.Context, scope domain.Scope, t domain.ChatType, scopeID string) ([]*domain.Chat, error) {
	all, err := r.FindAll(ctx, scope)
	if err != nil {
		return nil, err
	}
	var out []*domain.Chat
	for _, c := range all {
		if c.Type == t && c.ScopeID() == scopeID {
			out = append(out, c)
		}
	}
	return out, nil
}

// FindCompanyChats returns company-wide chats (full scan)
func (r *chatRepository) FindCompanyChats(ctx context.Context, scope domain.Scope) ([]*domain.Chat, error) {
	return r.findScoped(ctx, scope, domain.ChatTypeCompany, scope.CompanyID)
}

// FindSiteChats returns site-wide chats for siteID (full scan)
func (r *chatRepository) FindSiteChats(ctx context.Context, scope domain.Scope, siteID string) ([]*domain.Chat, error) {
	return r.findScoped(ctx, scope, domain.ChatTypeSite, siteID)
}

// FindDepartmentChats returns department chats for departmentID (full scan)
func (r *chatRepository) FindDepartmentChats(ctx context.Context, scope domain.Scope, departmentID string) ([]*domain.Chat, error) {
	return r.findScoped(ctx, scope, domain.ChatTypeDepartment, departmentID)
}

// FindRoleChats returns role chats for roleID (full scan)
func (r *chatRepository) FindRoleChats(ctx context.Context, scope domain.Scope, roleID string) ([]*domain.Chat, error) {
	return r.findScoped(ctx, scope, domain.ChatTypeRole, roleID)
}

// Update merge-patches the chat and stamps updated_at
func (r *chatRepository) Update(ctx context.Context, scope domain.Scope, chatID string, fields map[string]interface{}) error {
	if _, err := r.FindByID(ctx, scope, chatID); err != nil {
		return err
	}
	patch := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch["updated_at"] = r.store.Now()
	return r.store.Update(ctx, domain.ChatPath(scope.CompanyID, chatID), patch)
}

// Delete removes the chat, its index entries, its scope index entry, its
// messages and the participants' drafts and settings in one commit. The chat
// row is the last op.
func (r *chatRepository) Delete(ctx context.Context, scope domain.Scope, chatID string) error {
	chat, err := r.FindByID(ctx, scope, chatID)
	if err != nil {
		return err
	}

	var ops []tree.Op
	for _, uid := range chat.Participants {
		ops = append(ops,
			tree.RemoveOp(domain.UserChatPath(scope.CompanyID, uid, chatID)),
			tree.RemoveOp(domain.DraftPath(uid, chatID)),
			tree.RemoveOp(domain.ChatSettingsPath(uid, chatID)),
		)
	}
	if chat.Type.Scoped() && chat.ScopeID() != "" {
		owner, err := r.FindScopeChatID(ctx, scope, chat.Type, chat.ScopeID())
		if err != nil {
			return err
		}
		if owner == chatID {
			ops = append(ops, tree.RemoveOp(domain.ChatScopeIndexPath(scope.CompanyID, chat.Type, chat.ScopeID())))
		}
	}
	ops = append(ops,
		tree.RemoveOp(domain.MessagesPath(scope.CompanyID, chatID)),
		tree.RemoveOp(domain.ChatPath(scope.CompanyID, chatID)),
	)

	if err := r.store.Commit(ctx, ops...); err != nil {
		pkglogger.GetLogger().Error().Err(err).
			Str("company_id", scope.CompanyID).
			Str("chat_id", chatID).
			Msg("delete chat failed")
		return err
	}
	return nil
}

// mutate runs fn against the chat under compare-and-swap
func (r *chatRepository) mutate(ctx context.Context, scope domain.Scope, chatID string, fn func(chat *domain.Chat) (bool, error)) (*domain.Chat, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	var result domain.Chat
	err := r.store.Transact(ctx, domain.ChatPath(scope.CompanyID, chatID), func(cur json.RawMessage) (interface{}, error) {
		if cur == nil {
			return nil, fmt.Errorf("%w: %s", common.ErrChatNotFound, chatID)
		}
		var chat domain.Chat
		if err := json.Unmarshal(cur, &chat); err != nil {
			return nil, err
		}
		changed, err := fn(&chat)
		if err != nil {
			return nil, err
		}
		result = chat
		if !changed {
			return nil, tree.ErrAbort
		}
		chat.UpdatedAt = r.store.Now()
		result = chat
		return &chat, nil
	})
	if err != nil && !errors.Is(err, tree.ErrAbort) {
		return nil, err
	}
	return &result, nil
}

// AddParticipant appends userID to the chat and writes their index entry
func (r *chatRepository) AddParticipant(ctx context.Context, scope domain.Scope, chatID, userID string) (*domain.Chat, error) {
	chat, err := r.mutate(ctx, scope, chatID, func(c *domain.Chat) (bool, error) {
		return c.AddParticipant(userID), nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := r.EnsureUserChatEntry(ctx, scope, userID, chatID, domain.ChatRoleMember); err != nil {
		return nil, err
	}
	return chat, nil
}

// RemoveParticipant drops userID from the chat and removes their index entry
func (r *chatRepository) RemoveParticipant(ctx context.Context, scope domain.Scope, chatID, userID string) (*domain.Chat, error) {
	chat, err := r.mutate(ctx, scope, chatID, func(c *domain.Chat) (bool, error) {
		if userID == c.CreatedBy {
			return false, fmt.Errorf("%w: the creator cannot leave the chat", common.ErrForbidden)
		}
		return c.RemoveParticipant(userID), nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.store.Remove(ctx, domain.UserChatPath(scope.CompanyID, userID, chatID)); err != nil {
		return nil, err
	}
	return chat, nil
}

// EnsureUserChatEntry writes the index entry when missing and reports whether it did
func (r *chatRepository) EnsureUserChatEntry(ctx context.Context, scope domain.Scope, userID, chatID, role string) (bool, error) {
	if err := requireScope(scope); err != nil {
		return false, err
	}
	created := false
	err := r.store.Transact(ctx, domain.UserChatPath(scope.CompanyID, userID, chatID), func(cur json.RawMessage) (interface{}, error) {
		if cur != nil {
			return nil, tree.ErrAbort
		}
		created = true
		return domain.UserChatEntry{ChatID: chatID, JoinedAt: r.store.Now(), Role: role}, nil
	})
	if err != nil && !errors.Is(err, tree.ErrAbort) {
		return false, err
	}
	return created, nil
}

// SetPinned adds or removes messageID from the chat's pinned list
func (r *chatRepository) SetPinned(ctx context.Context, scope domain.Scope, chatID, messageID string, pinned bool) (*domain.Chat, error) {
	return r.mutate(ctx, scope, chatID, func(c *domain.Chat) (bool, error) {
		return c.SetPinned(messageID, pinned), nil
	})
}

// PatchLastMessage refreshes the last-message mirror only when it points at
// msg.ID. It reports whether the mirror was patched.
func (r *chatRepository) PatchLastMessage(ctx context.Context, scope domain.Scope, chatID string, msg *domain.Message) (bool, error) {
	patched := false
	_, err := r.mutate(ctx, scope, chatID, func(c *domain.Chat) (bool, error) {
		if c.LastMessage == nil || c.LastMessage.ID != msg.ID {
			return false, nil
		}
		c.LastMessage = msg.Mirror()
		patched = true
		return true, nil
	})
	return patched, err
}

// ClearCategory unsets category_id on every chat referencing categoryID
func (r *chatRepository) ClearCategory(ctx context.Context, scope domain.Scope, categoryID string) (int, error) {
	chats, err := r.FindAll(ctx, scope)
	if err != nil {
		return 0, err
	}
	var ops []tree.Op
	for _, c := range chats {
		if c.CategoryID == categoryID {
			ops = append(ops, tree.UpdateOp(domain.ChatPath(scope.CompanyID, c.ID), map[string]interface{}{
				"category_id": nil,
				"updated_at":  r.store.Now(),
			}))
		}
	}
	if len(ops) == 0 {
		return 0, nil
	}
	return len(ops), r.store.Commit(ctx, ops...)
}

// FindScopeChatID reads the scoped-chat index ("" when absent)
func (r *chatRepository) FindScopeChatID(ctx context.Context, scope domain.Scope, chatType domain.ChatType, scopeID string) (string, error) {
	if err := requireScope(scope); err != nil {
		return "", err
	}
	var chatID string
	found, err := r.store.Get(ctx, domain.ChatScopeIndexPath(scope.CompanyID, chatType, scopeID), &chatID)
	if err != nil || !found {
		return "", err
	}
	return chatID, nil
}

// ClaimScope atomically points the scope index at chatID unless it already
// points at a live chat. It returns the winning chat id.
func (r *chatRepository) ClaimScope(ctx context.Context, scope domain.Scope, chatType domain.ChatType, scopeID, chatID string) (string, error) {
	if err := requireScope(scope); err != nil {
		return "", err
	}
	winner := chatID
	err := r.store.Transact(ctx, domain.ChatScopeIndexPath(scope.CompanyID, chatType, scopeID), func(cur json.RawMessage) (interface{}, error) {
		if cur != nil {
			var existing string
			if err := json.Unmarshal(cur, &existing); err == nil && existing != "" && existing != chatID {
				live, err := r.store.Exists(ctx, domain.ChatPath(scope.CompanyID, existing))
				if err != nil {
					return nil, err
				}
				if live {
					winner = existing
					return nil, tree.ErrAbort
				}
			}
		}
		winner = chatID
		return chatID, nil
	})
	if err != nil && !errors.Is(err, tree.ErrAbort) {
		return "", err
	}
	return winner, nil
}

// SubscribeUserChats calls fn whenever the user's chat index changes
func (r *chatRepository) SubscribeUserChats(scope domain.Scope, userID string, fn func()) func() {
	return r.store.Watch(domain.UserChatsPath(scope.CompanyID, userID), func(string) { fn() })
}

// SubscribeChats calls fn whenever any chat of the company changes
func (r *chatRepository) SubscribeChats(scope domain.Scope, fn func()) func() {
	return r.store.Watch(domain.ChatsPath(scope.CompanyID), func(string) { fn() })
}
