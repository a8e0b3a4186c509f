package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// ChatService enforces chat-level invariants: scoped-chat uniqueness, creator
// membership and the self-healing user index
type ChatService struct {
	chats repository.ChatRepository
}

// NewChatService creates a new ChatService
func NewChatService(chats repository.ChatRepository) *ChatService {
	return &ChatService{chats: chats}
}

// CreateChat creates a chat, or for scoped types and direct pairs returns the
// existing one after making sure userID is a participant
func (s *ChatService) CreateChat(ctx context.Context, scope domain.Scope, userID string, req *domain.CreateChatRequest) (*domain.Chat, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown chat type %q", common.ErrInvalidInput, req.Type)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: chat name is required", common.ErrInvalidInput)
	}

	chat := &domain.Chat{
		Name:         name,
		Description:  req.Description,
		Type:         req.Type,
		Participants: dedupe(req.Participants),
		CreatedBy:    userID,
		CategoryID:   req.CategoryID,
		IsPrivate:    req.IsPrivate,
		Settings:     req.Settings,
	}

	switch {
	case req.Type.Scoped():
		scopeID := scope.ScopeIDFor(req.Type)
		if scopeID == "" {
			return nil, fmt.Errorf("%w: %s chat requires a %s id", common.ErrInvalidInput, req.Type, req.Type)
		}
		chat.SiteID = scope.SiteID
		chat.DepartmentID = scope.DepartmentID
		chat.RoleID = scope.RoleID
		return s.createScoped(ctx, scope, userID, chat, scopeID)

	case req.Type == domain.ChatTypeDirect:
		if len(chat.Participants) != 1 || chat.Participants[0] == userID {
			return nil, fmt.Errorf("%w: a direct chat needs exactly one other participant", common.ErrInvalidInput)
		}
		existing, err := s.findDirect(ctx, scope, userID, chat.Participants[0])
		if err != nil {
			return nil, err
		}
		if existing != nil {
			chatsCreated.WithLabelValues(string(req.Type), "reused").Inc()
			return existing, nil
		}
	}

	created, err := s.chats.Create(ctx, scope, chat)
	if err != nil {
		return nil, err
	}
	chatsCreated.WithLabelValues(string(req.Type), "created").Inc()
	return created, nil
}

// createScoped implements the two-state dedup protocol. The scope index claim
// is a compare-and-swap, so concurrent creators converge on one chat; a losing
// creator deletes its own chat and joins the winner.
func (s *ChatService) createScoped(ctx context.Context, scope domain.Scope, userID string, chat *domain.Chat, scopeID string) (*domain.Chat, error) {
	existing, err := s.findScopedChat(ctx, scope, chat.Type, scopeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		chatsCreated.WithLabelValues(string(chat.Type), "reused").Inc()
		return s.join(ctx, scope, existing.ID, userID)
	}

	// 범위 채팅 없음 -> 새로 생성 후 인덱스 선점
	created, err := s.chats.Create(ctx, scope, chat)
	if err != nil {
		return nil, err
	}
	winner, err := s.chats.ClaimScope(ctx, scope, chat.Type, scopeID, created.ID)
	if err != nil {
		return nil, err
	}
	if winner != created.ID {
		if err := s.chats.Delete(ctx, scope, created.ID); err != nil {
			pkglogger.GetLogger().Warn().Err(err).
				Str("company_id", scope.CompanyID).
				Str("chat_id", created.ID).
				Msg("failed to discard losing scoped chat")
		}
		chatsCreated.WithLabelValues(string(chat.Type), "reused").Inc()
		return s.join(ctx, scope, winner, userID)
	}
	chatsCreated.WithLabelValues(string(chat.Type), "created").Inc()
	return created, nil
}

// findScopedChat consults the scope index and falls back to a scan for chats
// created before the index existed, backfilling the index when it finds one
func (s *ChatService) findScopedChat(ctx context.Context, scope domain.Scope, t domain.ChatType, scopeID string) (*domain.Chat, error) {
	id, err := s.chats.FindScopeChatID(ctx, scope, t, scopeID)
	if err != nil {
		return nil, err
	}
	if id != "" {
		chat, err := s.chats.FindByID(ctx, scope, id)
		if err == nil {
			return chat, nil
		}
		if !common.IsNotFound(err) {
			return nil, err
		}
	}

	var candidates []*domain.Chat
	switch t {
	case domain.ChatTypeCompany:
		candidates, err = s.chats.FindCompanyChats(ctx, scope)
	case domain.ChatTypeSite:
		candidates, err = s.chats.FindSiteChats(ctx, scope, scopeID)
	case domain.ChatTypeDepartment:
		candidates, err = s.chats.FindDepartmentChats(ctx, scope, scopeID)
	case domain.ChatTypeRole:
		candidates, err = s.chats.FindRoleChats(ctx, scope, scopeID)
	}
	if err != nil || len(candidates) == 0 {
		return nil, err
	}
	// oldest wins when legacy data holds duplicates
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })
	winner, err := s.chats.ClaimScope(ctx, scope, t, scopeID, candidates[0].ID)
	if err != nil {
		return nil, err
	}
	return s.chats.FindByID(ctx, scope, winner)
}

func (s *ChatService) findDirect(ctx context.Context, scope domain.Scope, userID, otherID string) (*domain.Chat, error) {
	chats, err := s.chats.FindUserChats(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range chats {
		if c.Type == domain.ChatTypeDirect && len(c.Participants) == 2 && c.HasParticipant(userID) && c.HasParticipant(otherID) {
			return c, nil
		}
	}
	return nil, nil
}

func (s *ChatService) join(ctx context.Context, scope domain.Scope, chatID, userID string) (*domain.Chat, error) {
	chat, err := s.chats.AddParticipant(ctx, scope, chatID, userID)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// ListUserChats reads the user's index. An empty index triggers a full scan for
// chats the user participates in plus company-wide chats, and the index is
// backfilled for every result.
func (s *ChatService) ListUserChats(ctx context.Context, scope domain.Scope, userID string) ([]*domain.Chat, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	chats, err := s.chats.FindUserChats(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		chats, err = s.fallbackListing(ctx, scope, userID)
		if err != nil {
			return nil, err
		}
	}
	sortByActivity(chats)
	return chats, nil
}

func (s *ChatService) fallbackListing(ctx context.Context, scope domain.Scope, userID string) ([]*domain.Chat, error) {
	all, err := s.chats.FindAll(ctx, scope)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []*domain.Chat
	for _, c := range all {
		if seen[c.ID] {
			continue
		}
		if c.HasParticipant(userID) || c.Type == domain.ChatTypeCompany {
			seen[c.ID] = true
			out = append(out, c)
		}
	}

	for _, c := range out {
		role := domain.ChatRoleMember
		if c.CreatedBy == userID {
			role = domain.ChatRoleOwner
		}
		created, err := s.chats.EnsureUserChatEntry(ctx, scope, userID, c.ID, role)
		if err != nil {
			// the listing is still valid; the next read retries the backfill
			pkglogger.GetLogger().Warn().Err(err).
				Str("company_id", scope.CompanyID).
				Str("user_id", userID).
				Str("chat_id", c.ID).
				Msg("user chat index backfill failed")
			continue
		}
		if created {
			indexBackfills.Inc()
		}
	}
	return out, nil
}

// GetChat returns a chat the user participates in
func (s *ChatService) GetChat(ctx context.Context, scope domain.Scope, userID, chatID string) (*domain.Chat, error) {
	chat, err := s.chats.FindByID(ctx, scope, chatID)
	if err != nil {
		return nil, err
	}
	if !canSee(chat, userID) {
		return nil, common.ErrNotParticipant
	}
	return chat, nil
}

// UpdateChat merge-patches the chat's mutable fields
func (s *ChatService) UpdateChat(ctx context.Context, scope domain.Scope, userID, chatID string, req *domain.UpdateChatRequest) (*domain.Chat, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	if _, err := s.GetChat(ctx, scope, userID, chatID); err != nil {
		return nil, err
	}
	fields := req.Fields()
	if len(fields) == 0 {
		return s.chats.FindByID(ctx, scope, chatID)
	}
	if err := s.chats.Update(ctx, scope, chatID, fields); err != nil {
		return nil, err
	}
	return s.chats.FindByID(ctx, scope, chatID)
}

// SetCategory files the chat under categoryID; empty clears it
func (s *ChatService) SetCategory(ctx context.Context, scope domain.Scope, userID, chatID, categoryID string) (*domain.Chat, error) {
	return s.UpdateChat(ctx, scope, userID, chatID, &domain.UpdateChatRequest{CategoryID: &categoryID})
}

// DeleteChat removes the chat with its messages and index entries. Only the
// creator may delete.
func (s *ChatService) DeleteChat(ctx context.Context, scope domain.Scope, userID, chatID string) error {
	if userID == "" {
		return common.ErrUnauthenticated
	}
	chat, err := s.chats.FindByID(ctx, scope, chatID)
	if err != nil {
		return err
	}
	if chat.CreatedBy != userID {
		return fmt.Errorf("%w: only the creator may delete the chat", common.ErrForbidden)
	}
	return s.chats.Delete(ctx, scope, chatID)
}

// AddParticipant adds targetID on behalf of a participant
func (s *ChatService) AddParticipant(ctx context.Context, scope domain.Scope, userID, chatID, targetID string) (*domain.Chat, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	if _, err := s.GetChat(ctx, scope, userID, chatID); err != nil {
		return nil, err
	}
	return s.chats.AddParticipant(ctx, scope, chatID, targetID)
}

// RemoveParticipant removes targetID. Participants may remove themselves; the
// creator may remove anyone else but always stays a participant.
func (s *ChatService) RemoveParticipant(ctx context.Context, scope domain.Scope, userID, chatID, targetID string) (*domain.Chat, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	chat, err := s.chats.FindByID(ctx, scope, chatID)
	if err != nil {
		return nil, err
	}
	if userID != targetID && chat.CreatedBy != userID {
		return nil, fmt.Errorf("%w: only the creator may remove other participants", common.ErrForbidden)
	}
	if targetID == chat.CreatedBy {
		return nil, fmt.Errorf("%w: the creator cannot leave the chat", common.ErrForbidden)
	}
	return s.chats.RemoveParticipant(ctx, scope, chatID, targetID)
}

// SubscribeUserChats fires fn on any change to the user's index or the chats collection
func (s *ChatService) SubscribeUserChats(scope domain.Scope, userID string, fn func()) func() {
	stopIndex := s.chats.SubscribeUserChats(scope, userID, fn)
	stopChats := s.chats.SubscribeChats(scope, fn)
	return func() {
		stopIndex()
		stopChats()
	}
}

func canSee(chat *domain.Chat, userID string) bool {
	return chat.HasParticipant(userID) || chat.Type == domain.ChatTypeCompany
}

func sortByActivity(chats []*domain.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		return lastActivity(chats[i]).After(lastActivity(chats[j]))
	})
}

func lastActivity(c *domain.Chat) time.Time {
	if c.LastMessage != nil && c.LastMessage.Timestamp.After(c.UpdatedAt) {
		return c.LastMessage.Timestamp
	}
	return c.UpdatedAt
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
