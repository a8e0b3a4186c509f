package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/repository"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 500
	maxMessageLength    = 10000
)

// MessageService enforces message invariants: participant checks, sender-only
// edit and delete, tombstones, last-message mirroring and draft cleanup
type MessageService struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	profiles *repository.ProfileRepository
	prefs    *repository.PreferenceRepository
	bus      *events.Bus
	index    SearchIndex
}

// NewMessageService creates a new MessageService. bus may be nil.
func NewMessageService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	profiles *repository.ProfileRepository,
	prefs *repository.PreferenceRepository,
	bus *events.Bus,
) *MessageService {
	if bus == nil {
		bus = events.NewBus()
	}
	return &MessageService{
		chats:    chats,
		messages: messages,
		profiles: profiles,
		prefs:    prefs,
		bus:      bus,
	}
}

// WithSearchIndex routes SearchMessages through idx
func (s *MessageService) WithSearchIndex(idx SearchIndex) *MessageService {
	s.index = idx
	return s
}

func (s *MessageService) participantChat(ctx context.Context, scope domain.Scope, userID, chatID string) (*domain.Chat, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	chat, err := s.chats.FindByID(ctx, scope, chatID)
	if err != nil {
		return nil, err
	}
	if !canSee(chat, userID) {
		return nil, common.ErrNotParticipant
	}
	return chat, nil
}

// SendMessage stores a message from userID. On success the sender's draft for
// the chat is removed and TopicMessageSent is published.
func (s *MessageService) SendMessage(ctx context.Context, scope domain.Scope, userID, chatID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	chat, err := s.participantChat(ctx, scope, userID, chatID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" && len(req.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message is empty", common.ErrInvalidInput)
	}
	if len(text) > maxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", common.ErrInvalidInput, maxMessageLength)
	}
	if len(req.Attachments) > 0 && chat.Settings != nil && !chat.Settings.AllowFileSharing {
		return nil, fmt.Errorf("%w: file sharing is disabled in this chat", common.ErrForbidden)
	}

	msg := &domain.Message{
		ChatID:      chatID,
		Text:        text,
		Type:        messageTypeOf(text, req.Attachments),
		SenderID:    userID,
		SenderName:  s.profiles.DisplayName(ctx, userID),
		Status:      domain.MessageStatusSent,
		ReadBy:      []string{userID},
		Attachments: req.Attachments,
		Mentions:    req.Mentions,
	}
	if chat.Settings != nil && !chat.Settings.AllowMentions {
		msg.Mentions = nil
	}
	if req.ReplyToID != "" {
		parent, err := s.messages.FindByID(ctx, scope, chatID, req.ReplyToID)
		if err != nil {
			return nil, err
		}
		msg.ReplyTo = &domain.ReplyRef{
			MessageID:  parent.ID,
			Text:       parent.Text,
			SenderID:   parent.SenderID,
			SenderName: parent.SenderName,
		}
	}
	return s.send(ctx, scope, chat, msg)
}

func (s *MessageService) send(ctx context.Context, scope domain.Scope, chat *domain.Chat, msg *domain.Message) (*domain.Message, error) {
	sent, err := s.messages.Send(ctx, scope, msg)
	if err != nil {
		return nil, err
	}
	messagesSent.WithLabelValues(string(chat.Type)).Inc()

	// 전송 성공 후 초안 정리
	if err := s.prefs.DeleteDraft(ctx, msg.SenderID, chat.ID); err != nil {
		pkglogger.GetLogger().Warn().Err(err).
			Str("user_id", msg.SenderID).
			Str("chat_id", chat.ID).
			Msg("draft cleanup failed")
	}

	chat.LastMessage = sent.Mirror()
	s.bus.Publish(events.TopicMessageSent, scope, &events.MessagePayload{Chat: chat, Message: sent})
	return sent, nil
}

// GetMessages returns the most recent limit messages sorted ascending
func (s *MessageService) GetMessages(ctx context.Context, scope domain.Scope, userID, chatID string, limit int) ([]*domain.Message, error) {
	if _, err := s.participantChat(ctx, scope, userID, chatID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	msgs, err := s.messages.FindRecent(ctx, scope, chatID, limit)
	if err != nil {
		return nil, err
	}
	repository.SortByTimestamp(msgs)
	return msgs, nil
}

// SubscribeMessages streams full sorted snapshots of the chat's messages
func (s *MessageService) SubscribeMessages(scope domain.Scope, chatID string, fn func([]*domain.Message, error)) func() {
	return s.messages.Subscribe(scope, chatID, fn)
}

func (s *MessageService) ownMessage(ctx context.Context, scope domain.Scope, userID, chatID, messageID string) (*domain.Message, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	msg, err := s.messages.FindByID(ctx, scope, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, common.ErrNotSender
	}
	return msg, nil
}

// EditMessage replaces the text of userID's own message and refreshes the
// chat's last-message mirror when it shows this message
func (s *MessageService) EditMessage(ctx context.Context, scope domain.Scope, userID, chatID, messageID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", common.ErrInvalidInput)
	}
	if _, err := s.ownMessage(ctx, scope, userID, chatID, messageID); err != nil {
		return nil, err
	}
	msg, err := s.messages.Edit(ctx, scope, chatID, messageID, text)
	if err != nil {
		return nil, err
	}
	messageMutations.WithLabelValues("edit").Inc()
	s.patchMirror(ctx, scope, chatID, msg)
	s.bus.Publish(events.TopicMessageEdited, scope, &events.MessagePayload{Message: msg})
	return msg, nil
}

// DeleteMessage tombstones userID's own message
func (s *MessageService) DeleteMessage(ctx context.Context, scope domain.Scope, userID, chatID, messageID string) (*domain.Message, error) {
	before, err := s.ownMessage(ctx, scope, userID, chatID, messageID)
	if err != nil {
		return nil, err
	}
	msg, err := s.messages.SoftDelete(ctx, scope, chatID, messageID)
	if err != nil {
		return nil, err
	}
	messageMutations.WithLabelValues("delete").Inc()
	if before.IsPinned {
		if _, err := s.chats.SetPinned(ctx, scope, chatID, messageID, false); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("chat_id", chatID).Str("message_id", messageID).Msg("unpin on delete failed")
		}
	}
	s.patchMirror(ctx, scope, chatID, msg)
	s.bus.Publish(events.TopicMessageDeleted, scope, &events.MessagePayload{Message: msg})
	return msg, nil
}

// patchMirror matches the mirror by message id, never by sender
func (s *MessageService) patchMirror(ctx context.Context, scope domain.Scope, chatID string, msg *domain.Message) {
	if _, err := s.chats.PatchLastMessage(ctx, scope, chatID, msg); err != nil {
		pkglogger.GetLogger().Warn().Err(err).
			Str("company_id", scope.CompanyID).
			Str("chat_id", chatID).
			Str("message_id", msg.ID).
			Msg("last message mirror patch failed")
	}
}

// SetPinned pins or unpins a message on the message and the chat
func (s *MessageService) SetPinned(ctx context.Context, scope domain.Scope, userID, chatID, messageID string, pinned bool) (*domain.Message, error) {
	if _, err := s.participantChat(ctx, scope, userID, chatID); err != nil {
		return nil, err
	}
	msg, err := s.messages.FindByID(ctx, scope, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted && pinned {
		return nil, fmt.Errorf("%w: deleted messages cannot be pinned", common.ErrInvalidInput)
	}
	msg, err = s.messages.SetPinned(ctx, scope, chatID, messageID, pinned)
	if err != nil {
		return nil, err
	}
	if _, err := s.chats.SetPinned(ctx, scope, chatID, messageID, pinned); err != nil {
		return nil, err
	}
	messageMutations.WithLabelValues("pin").Inc()
	return msg, nil
}

// AddReaction records userID's emoji reaction; repeats are no-ops
func (s *MessageService) AddReaction(ctx context.Context, scope domain.Scope, userID, chatID, messageID, emoji string) (*domain.Message, error) {
	if _, err := s.participantChat(ctx, scope, userID, chatID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(emoji) == "" {
		return nil, fmt.Errorf("%w: emoji is required", common.ErrInvalidInput)
	}
	msg, err := s.messages.AddReaction(ctx, scope, chatID, messageID, emoji, userID)
	if err != nil {
		return nil, err
	}
	messageMutations.WithLabelValues("react").Inc()
	return msg, nil
}

// RemoveReaction drops userID's emoji reaction; absent reactions are no-ops
func (s *MessageService) RemoveReaction(ctx context.Context, scope domain.Scope, userID, chatID, messageID, emoji string) (*domain.Message, error) {
	if _, err := s.participantChat(ctx, scope, userID, chatID); err != nil {
		return nil, err
	}
	msg, err := s.messages.RemoveReaction(ctx, scope, chatID, messageID, emoji, userID)
	if err != nil {
		return nil, err
	}
	messageMutations.WithLabelValues("unreact").Inc()
	return msg, nil
}

// MarkAsRead marks one message, or every message when messageID is empty, as
// read by userID
func (s *MessageService) MarkAsRead(ctx context.Context, scope domain.Scope, userID, chatID, messageID string) (int, error) {
	if _, err := s.participantChat(ctx, scope, userID, chatID); err != nil {
		return 0, err
	}
	if messageID == "" {
		n, err := s.messages.MarkChatAsRead(ctx, scope, chatID, userID)
		if n > 0 {
			messageMutations.WithLabelValues("read").Add(float64(n))
		}
		return n, err
	}
	if _, err := s.messages.MarkAsRead(ctx, scope, chatID, messageID, userID); err != nil {
		return 0, err
	}
	messageMutations.WithLabelValues("read").Inc()
	return 1, nil
}

// ForwardMessage copies a message into targetChatID as a new message from userID
func (s *MessageService) ForwardMessage(ctx context.Context, scope domain.Scope, userID, chatID, messageID, targetChatID string) (*domain.Message, error) {
	if _, err := s.participantChat(ctx, scope, userID, chatID); err != nil {
		return nil, err
	}
	original, err := s.messages.FindByID(ctx, scope, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if original.IsDeleted {
		return nil, fmt.Errorf("%w: deleted messages cannot be forwarded", common.ErrInvalidInput)
	}
	target, err := s.participantChat(ctx, scope, userID, targetChatID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ChatID:      target.ID,
		Text:        original.Text,
		Type:        original.Type,
		SenderID:    userID,
		SenderName:  s.profiles.DisplayName(ctx, userID),
		Status:      domain.MessageStatusSent,
		ReadBy:      []string{userID},
		Attachments: original.Attachments,
		ForwardedFrom: &domain.ForwardRef{
			MessageID:  original.ID,
			ChatID:     original.ChatID,
			SenderID:   original.SenderID,
			SenderName: original.SenderName,
		},
	}
	return s.send(ctx, scope, target, msg)
}

// SearchMessages finds messages containing query. With chatID empty it covers
// every chat in the user's index; an empty index yields Partial=true because
// chats the user can see may not be covered.
func (s *MessageService) SearchMessages(ctx context.Context, scope domain.Scope, userID, query, chatID string) (*domain.SearchResponse, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	resp := &domain.SearchResponse{Results: []domain.SearchResult{}}
	if strings.TrimSpace(query) == "" {
		return resp, nil
	}

	var chats []*domain.Chat
	if chatID != "" {
		chat, err := s.participantChat(ctx, scope, userID, chatID)
		if err != nil {
			return nil, err
		}
		chats = []*domain.Chat{chat}
	} else {
		var err error
		chats, err = s.chats.FindUserChats(ctx, scope, userID)
		if err != nil {
			return nil, err
		}
		if len(chats) == 0 {
			resp.Partial = true
			return resp, nil
		}
	}

	names := make(map[string]string, len(chats))
	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		names[c.ID] = c.Name
		ids = append(ids, c.ID)
	}

	hits, err := s.search(ctx, scope, query, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range hits {
		resp.Results = append(resp.Results, domain.SearchResult{Message: *m, ChatName: names[m.ChatID]})
	}
	return resp, nil
}

func (s *MessageService) search(ctx context.Context, scope domain.Scope, query string, chatIDs []string) ([]*domain.Message, error) {
	if s.index != nil {
		hits, err := s.index.Search(ctx, scope, query, chatIDs, maxMessageLimit)
		if err == nil {
			return hits, nil
		}
		pkglogger.GetLogger().Warn().Err(err).Str("company_id", scope.CompanyID).Msg("search index unavailable, scanning")
	}
	var out []*domain.Message
	for _, id := range chatIDs {
		hits, err := s.messages.Search(ctx, scope, id, query)
		if err != nil {
			return nil, err
		}
		out = append(out, hits...)
	}
	repository.SortByTimestamp(out)
	return out, nil
}

func messageTypeOf(text string, attachments []domain.Attachment) domain.MessageType {
	if text != "" || len(attachments) == 0 {
		return domain.MessageTypeText
	}
	if attachments[0].Type == domain.AttachmentImage {
		return domain.MessageTypeImage
	}
	return domain.MessageTypeFile
}
