package messenger

import (
	"context"
	"errors"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/service"
)

// InvitationResult reports the outcome of SendContactInvitation. A duplicate
// pending invitation is a result, not an error.
type InvitationResult struct {
	Invitation *domain.ContactInvitation `json:"invitation,omitempty"`
	Duplicate  bool                      `json:"duplicate"`
}

// CreateChat creates a chat, or joins the existing one for scoped types
func (s *Session) CreateChat(ctx context.Context, req *domain.CreateChatRequest) (*domain.Chat, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("create_chat", err)
		return nil, err
	}
	chat, err := s.svc.Chats.CreateChat(ctx, scope, userID, req)
	if err != nil {
		s.fail("create_chat", err)
		return nil, err
	}
	s.dispatch(upsertChat{chat: chat})
	return chat, nil
}

// SendMessage sends text (and optional attachments, mentions, reply) to chatID
func (s *Session) SendMessage(ctx context.Context, chatID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("send_message", err)
		return nil, err
	}
	msg, err := s.svc.Messages.SendMessage(ctx, scope, userID, chatID, req)
	if err != nil {
		s.fail("send_message", err)
		return nil, err
	}
	s.dispatch(upsertMessage{message: msg}, setDraft{chatID: chatID})
	return msg, nil
}

// EditMessage replaces the text of one of the user's messages
func (s *Session) EditMessage(ctx context.Context, chatID, messageID, text string) (*domain.Message, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("edit_message", err)
		return nil, err
	}
	msg, err := s.svc.Messages.EditMessage(ctx, scope, userID, chatID, messageID, text)
	if err != nil {
		s.fail("edit_message", err)
		return nil, err
	}
	s.dispatch(upsertMessage{message: msg})
	return msg, nil
}

// DeleteMessage tombstones one of the user's messages
func (s *Session) DeleteMessage(ctx context.Context, chatID, messageID string) (*domain.Message, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("delete_message", err)
		return nil, err
	}
	msg, err := s.svc.Messages.DeleteMessage(ctx, scope, userID, chatID, messageID)
	if err != nil {
		s.fail("delete_message", err)
		return nil, err
	}
	s.dispatch(upsertMessage{message: msg})
	return msg, nil
}

// PinMessage pins a message in its chat
func (s *Session) PinMessage(ctx context.Context, chatID, messageID string) (*domain.Message, error) {
	return s.setPinned(ctx, "pin_message", chatID, messageID, true)
}

// UnpinMessage unpins a message
func (s *Session) UnpinMessage(ctx context.Context, chatID, messageID string) (*domain.Message, error) {
	return s.setPinned(ctx, "unpin_message", chatID, messageID, false)
}

func (s *Session) setPinned(ctx context.Context, op, chatID, messageID string, pinned bool) (*domain.Message, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail(op, err)
		return nil, err
	}
	msg, err := s.svc.Messages.SetPinned(ctx, scope, userID, chatID, messageID, pinned)
	if err != nil {
		s.fail(op, err)
		return nil, err
	}
	s.dispatch(upsertMessage{message: msg})
	return msg, nil
}

// AddReaction adds the user's emoji reaction
func (s *Session) AddReaction(ctx context.Context, chatID, messageID, emoji string) (*domain.Message, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("add_reaction", err)
		return nil, err
	}
	msg, err := s.svc.Messages.AddReaction(ctx, scope, userID, chatID, messageID, emoji)
	if err != nil {
		s.fail("add_reaction", err)
		return nil, err
	}
	s.dispatch(upsertMessage{message: msg})
	return msg, nil
}

// RemoveReaction removes the user's emoji reaction
func (s *Session) RemoveReaction(ctx context.Context, chatID, messageID, emoji string) (*domain.Message, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("remove_reaction", err)
		return nil, err
	}
	msg, err := s.svc.Messages.RemoveReaction(ctx, scope, userID, chatID, messageID, emoji)
	if err != nil {
		s.fail("remove_reaction", err)
		return nil, err
	}
	s.dispatch(upsertMessage{message: msg})
	return msg, nil
}

// MarkAsRead marks one message, or the whole chat when messageID is empty
func (s *Session) MarkAsRead(ctx context.Context, chatID, messageID string) (int, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("mark_as_read", err)
		return 0, err
	}
	n, err := s.svc.Messages.MarkAsRead(ctx, scope, userID, chatID, messageID)
	if err != nil {
		s.fail("mark_as_read", err)
		return n, err
	}
	return n, nil
}

// SearchMessages searches one chat, or every chat of the user when chatID is
// empty. Failures yield an empty response.
func (s *Session) SearchMessages(ctx context.Context, query, chatID string) (*domain.SearchResponse, error) {
	empty := &domain.SearchResponse{Results: []domain.SearchResult{}}
	scope, userID, err := s.current()
	if err != nil {
		s.fail("search_messages", err)
		return empty, err
	}
	res, err := s.svc.Messages.SearchMessages(ctx, scope, userID, query, chatID)
	if err != nil {
		s.fail("search_messages", err)
		return empty, err
	}
	return res, nil
}

// SetUserStatus updates the user's presence
func (s *Session) SetUserStatus(ctx context.Context, req *domain.SetStatusRequest) (*domain.UserStatus, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("set_user_status", err)
		return nil, err
	}
	status, err := s.svc.Statuses.SetStatus(ctx, scope, userID, req)
	if err != nil {
		s.fail("set_user_status", err)
		return nil, err
	}
	return status, nil
}

// SendContactInvitation invites another user to the saved contacts
func (s *Session) SendContactInvitation(ctx context.Context, req *domain.SendInvitationRequest) (InvitationResult, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("send_invitation", err)
		return InvitationResult{}, err
	}
	inv, err := s.svc.Contacts.SendInvitation(ctx, scope, userID, req)
	if errors.Is(err, common.ErrDuplicateInvitation) {
		s.dispatch(setError{message: err.Error()})
		return InvitationResult{Duplicate: true}, nil
	}
	if err != nil {
		s.fail("send_invitation", err)
		return InvitationResult{}, err
	}
	s.dispatch(upsertInvitation{invitation: inv})
	return InvitationResult{Invitation: inv}, nil
}

// AcceptInvitation accepts an invitation sent to the user
func (s *Session) AcceptInvitation(ctx context.Context, invitationID string) ([]*domain.Contact, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("accept_invitation", err)
		return nil, err
	}
	pair, err := s.svc.Contacts.AcceptInvitation(ctx, scope, userID, invitationID)
	if err != nil {
		s.fail("accept_invitation", err)
		return nil, err
	}
	_ = s.RefreshContacts(ctx)
	return pair, nil
}

// DeclineInvitation declines an invitation sent to the user
func (s *Session) DeclineInvitation(ctx context.Context, invitationID string) (*domain.ContactInvitation, error) {
	_, userID, err := s.current()
	if err != nil {
		s.fail("decline_invitation", err)
		return nil, err
	}
	inv, err := s.svc.Contacts.DeclineInvitation(ctx, userID, invitationID)
	if err != nil {
		s.fail("decline_invitation", err)
		return nil, err
	}
	s.dispatch(upsertInvitation{invitation: inv})
	return inv, nil
}

// UpdateChatSettings saves the user's private settings for a chat
func (s *Session) UpdateChatSettings(ctx context.Context, settings *domain.ChatSettings) (*domain.ChatSettings, error) {
	_, userID, err := s.current()
	if err != nil {
		s.fail("update_chat_settings", err)
		return nil, err
	}
	saved, err := s.svc.Preferences.UpdateSettings(ctx, userID, settings)
	if err != nil {
		s.fail("update_chat_settings", err)
		return nil, err
	}
	s.dispatch(setSettings{settings: saved})
	return saved, nil
}

// SaveDraft stores the compose state for chatID; empty text discards it
func (s *Session) SaveDraft(ctx context.Context, chatID string, req *domain.SaveDraftRequest) (*domain.Draft, error) {
	_, userID, err := s.current()
	if err != nil {
		s.fail("save_draft", err)
		return nil, err
	}
	draft, err := s.svc.Preferences.SaveDraft(ctx, userID, chatID, req)
	if err != nil {
		s.fail("save_draft", err)
		return nil, err
	}
	s.dispatch(setDraft{chatID: chatID, draft: draft})
	return draft, nil
}

// GetWorkContacts lists everyone in the active company except the user
func (s *Session) GetWorkContacts(ctx context.Context) ([]*domain.WorkContact, error) {
	scope, userID, err := s.current()
	if err != nil {
		s.fail("get_work_contacts", err)
		return []*domain.WorkContact{}, err
	}
	list, err := s.svc.Contacts.WorkContacts(ctx, scope, userID)
	if err != nil {
		s.fail("get_work_contacts", err)
		return []*domain.WorkContact{}, err
	}
	return list, nil
}

// GetSavedContacts returns the saved contacts from local state
func (s *Session) GetSavedContacts() []*domain.Contact {
	return service.FilterSaved(s.State().Contacts)
}
