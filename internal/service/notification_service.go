package service

import (
	"context"
	"fmt"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/repository"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// Pusher delivers realtime events to a user's open connections
type Pusher interface {
	Push(userID, eventType string, payload interface{})
}

const previewLength = 100

// NotificationService handles notification business logic
type NotificationService struct {
	repo   *repository.NotificationRepository
	prefs  *repository.PreferenceRepository
	pusher Pusher
	now    func() time.Time
}

// NewNotificationService creates a new NotificationService. pusher may be nil.
func NewNotificationService(repo *repository.NotificationRepository, prefs *repository.PreferenceRepository, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, prefs: prefs, pusher: pusher, now: time.Now}
}

// Register subscribes the service to message and invitation events
func (s *NotificationService) Register(bus *events.Bus) {
	bus.Subscribe("notifications", events.TopicMessageSent, s.onMessageSent)
	bus.Subscribe("notifications", events.TopicInvitationSent, s.onInvitationSent)
}

// onMessageSent notifies every other participant that has not muted the chat
func (s *NotificationService) onMessageSent(e events.Event) {
	p, ok := e.Payload.(*events.MessagePayload)
	if !ok || p.Chat == nil || p.Message == nil {
		return
	}
	ctx := context.Background()
	msg := p.Message

	mentioned := make(map[string]bool, len(msg.Mentions))
	for _, uid := range msg.Mentions {
		mentioned[uid] = true
	}

	var batch []*domain.Notification
	for _, uid := range p.Chat.Participants {
		if uid == msg.SenderID {
			continue
		}
		settings, err := s.prefs.GetSettings(ctx, uid, p.Chat.ID)
		if err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("user_id", uid).Msg("chat settings lookup failed")
			continue
		}
		// 멘션은 음소거를 무시
		if settings.IsMuted(s.now()) && !mentioned[uid] {
			continue
		}
		n := &domain.Notification{
			UserID:     uid,
			Type:       domain.NotificationMessage,
			Title:      fmt.Sprintf("%s · %s", msg.SenderName, p.Chat.Name),
			Body:       preview(msg.Text),
			ChatID:     p.Chat.ID,
			MessageID:  msg.ID,
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
		}
		if mentioned[uid] {
			n.Type = domain.NotificationMention
		}
		batch = append(batch, n)
	}
	if err := s.repo.CreateBatch(ctx, e.Scope, batch); err != nil {
		pkglogger.GetLogger().Error().Err(err).Str("chat_id", p.Chat.ID).Msg("notification batch failed")
		return
	}
	for _, n := range batch {
		s.push(n)
	}
}

func (s *NotificationService) onInvitationSent(e events.Event) {
	p, ok := e.Payload.(*events.InvitationPayload)
	if !ok || p.Invitation == nil || !e.Scope.Valid() {
		return
	}
	inv := p.Invitation
	n := &domain.Notification{
		UserID:     inv.ToUserID,
		Type:       domain.NotificationInvitation,
		Title:      fmt.Sprintf("%s wants to add you as a contact", inv.FromName),
		Body:       preview(inv.Message),
		SenderID:   inv.FromUserID,
		SenderName: inv.FromName,
	}
	if err := s.repo.Create(context.Background(), e.Scope, n); err != nil {
		pkglogger.GetLogger().Error().Err(err).Str("invitation_id", inv.ID).Msg("invitation notification failed")
		return
	}
	s.push(n)
}

func (s *NotificationService) push(n *domain.Notification) {
	if s.pusher != nil {
		s.pusher.Push(n.UserID, "notification", n)
	}
}

// List returns the user's most recent notifications
func (s *NotificationService) List(ctx context.Context, scope domain.Scope, userID string, limit int) ([]*domain.Notification, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.FindByUser(ctx, scope, userID, limit)
}

// GetUnreadCount returns the unread notification count
func (s *NotificationService) GetUnreadCount(ctx context.Context, scope domain.Scope, userID string) (*domain.NotificationSummary, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	count, err := s.repo.UnreadCount(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	return &domain.NotificationSummary{TotalUnread: count}, nil
}

// MarkAsRead marks one notification read and pushes the new unread count
func (s *NotificationService) MarkAsRead(ctx context.Context, scope domain.Scope, userID, notificationID string) error {
	if userID == "" {
		return common.ErrUnauthenticated
	}
	if err := s.repo.MarkRead(ctx, scope, userID, notificationID); err != nil {
		return err
	}
	s.pushUnread(ctx, scope, userID)
	return nil
}

// MarkAllAsRead marks all notifications read
func (s *NotificationService) MarkAllAsRead(ctx context.Context, scope domain.Scope, userID string) error {
	if userID == "" {
		return common.ErrUnauthenticated
	}
	if _, err := s.repo.MarkAllRead(ctx, scope, userID); err != nil {
		return err
	}
	s.pushUnread(ctx, scope, userID)
	return nil
}

func (s *NotificationService) pushUnread(ctx context.Context, scope domain.Scope, userID string) {
	if s.pusher == nil {
		return
	}
	summary, err := s.GetUnreadCount(ctx, scope, userID)
	if err != nil {
		return
	}
	s.pusher.Push(userID, "unread_count", summary)
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLength {
		return text
	}
	return string(r[:previewLength]) + "…"
}
