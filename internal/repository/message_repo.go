package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/tree"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// MessageRepository message data access interface
type MessageRepository interface {
	Send(ctx context.Context, scope domain.Scope, msg *domain.Message) (*domain.Message, error)
	FindByID(ctx context.Context, scope domain.Scope, chatID, messageID string) (*domain.Message, error)
	FindRecent(ctx context.Context, scope domain.Scope, chatID string, limit int) ([]*domain.Message, error)
	FindAll(ctx context.Context, scope domain.Scope, chatID string) ([]*domain.Message, error)
	Subscribe(scope domain.Scope, chatID string, fn func([]*domain.Message, error)) func()

	Mutate(ctx context.Context, scope domain.Scope, chatID, messageID string, fn func(msg *domain.Message) (bool, error)) (*domain.Message, error)
	AddReaction(ctx context.Context, scope domain.Scope, chatID, messageID, emoji, userID string) (*domain.Message, error)
	RemoveReaction(ctx context.Context, scope domain.Scope, chatID, messageID, emoji, userID string) (*domain.Message, error)
	MarkAsRead(ctx context.Context, scope domain.Scope, chatID, messageID, userID string) (*domain.Message, error)
	MarkChatAsRead(ctx context.Context, scope domain.Scope, chatID, userID string) (int, error)
	Edit(ctx context.Context, scope domain.Scope, chatID, messageID, text string) (*domain.Message, error)
	SoftDelete(ctx context.Context, scope domain.Scope, chatID, messageID string) (*domain.Message, error)
	SetPinned(ctx context.Context, scope domain.Scope, chatID, messageID string, pinned bool) (*domain.Message, error)
	Search(ctx context.Context, scope domain.Scope, chatID, query string) ([]*domain.Message, error)
}

type messageRepository struct {
	store *tree.Store
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(store *tree.Store) MessageRepository {
	return &messageRepository{store: store}
}

// Send stores the message with a server-assigned id and timestamp and moves
// the chat's last-message mirror to it in the same commit
func (r *messageRepository) Send(ctx context.Context, scope domain.Scope, msg *domain.Message) (*domain.Message, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	now := r.store.Now()
	msg.ID = r.store.NewKey()
	msg.Timestamp = now
	if msg.Status == "" {
		msg.Status = domain.MessageStatusSent
	}
	if msg.Type == "" {
		msg.Type = domain.MessageTypeText
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}

	err := r.store.Commit(ctx,
		tree.SetOp(domain.MessagePath(scope.CompanyID, msg.ChatID, msg.ID), msg),
		tree.UpdateOp(domain.ChatPath(scope.CompanyID, msg.ChatID), map[string]interface{}{
			"last_message": msg.Mirror(),
			"updated_at":   now,
		}),
	)
	if err != nil {
		pkglogger.GetLogger().Error().Err(err).
			Str("company_id", scope.CompanyID).
			Str("chat_id", msg.ChatID).
			Msg("send message failed")
		return nil, err
	}
	return msg, nil
}

// FindByID returns the message or common.ErrMessageNotFound
func (r *messageRepository) FindByID(ctx context.Context, scope domain.Scope, chatID, messageID string) (*domain.Message, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	var msg domain.Message
	found, err := r.store.Get(ctx, domain.MessagePath(scope.CompanyID, chatID, messageID), &msg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", common.ErrMessageNotFound, messageID)
	}
	return &msg, nil
}

func decodeMessages(snaps []tree.Snapshot) []*domain.Message {
	msgs := make([]*domain.Message, 0, len(snaps))
	for _, s := range snaps {
		var m domain.Message
		if err := s.Decode(&m); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("path", s.Path).Msg("skipping malformed message")
			continue
		}
		msgs = append(msgs, &m)
	}
	return msgs
}

// SortByTimestamp orders messages ascending by timestamp, then id
func SortByTimestamp(msgs []*domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

// FindRecent returns the last limit messages in store order. Callers that need
// display order sort by timestamp.
func (r *messageRepository) FindRecent(ctx context.Context, scope domain.Scope, chatID string, limit int) ([]*domain.Message, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	snaps, err := r.store.LastChildren(ctx, domain.MessagesPath(scope.CompanyID, chatID), limit)
	if err != nil {
		return nil, err
	}
	return decodeMessages(snaps), nil
}

// FindAll returns every message of the chat sorted ascending
func (r *messageRepository) FindAll(ctx context.Context, scope domain.Scope, chatID string) ([]*domain.Message, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	snaps, err := r.store.Children(ctx, domain.MessagesPath(scope.CompanyID, chatID))
	if err != nil {
		return nil, err
	}
	msgs := decodeMessages(snaps)
	SortByTimestamp(msgs)
	return msgs, nil
}

// Subscribe pushes the full sorted snapshot of the chat's messages now and on
// every change. The returned func unsubscribes.
func (r *messageRepository) Subscribe(scope domain.Scope, chatID string, fn func([]*domain.Message, error)) func() {
	return r.store.Subscribe(domain.MessagesPath(scope.CompanyID, chatID), func(string) {
		msgs, err := r.FindAll(context.Background(), scope, chatID)
		if err != nil {
			pkglogger.GetLogger().Warn().Err(err).
				Str("company_id", scope.CompanyID).
				Str("chat_id", chatID).
				Msg("message snapshot reload failed")
		}
		fn(msgs, err)
	})
}

// Mutate applies fn to the message under compare-and-swap. When fn reports no
// change nothing is written and the current message is returned.
func (r *messageRepository) Mutate(ctx context.Context, scope domain.Scope, chatID, messageID string, fn func(msg *domain.Message) (bool, error)) (*domain.Message, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	var result domain.Message
	err := r.store.Transact(ctx, domain.MessagePath(scope.CompanyID, chatID, messageID), func(cur json.RawMessage) (interface{}, error) {
		if cur == nil {
			return nil, fmt.Errorf("%w: %s", common.ErrMessageNotFound, messageID)
		}
		var msg domain.Message
		if err := json.Unmarshal(cur, &msg); err != nil {
			return nil, err
		}
		changed, err := fn(&msg)
		if err != nil {
			return nil, err
		}
		result = msg
		if !changed {
			return nil, tree.ErrAbort
		}
		return &msg, nil
	})
	if err != nil && !errors.Is(err, tree.ErrAbort) {
		return nil, err
	}
	return &result, nil
}

// AddReaction is a no-op when userID already reacted with emoji
func (r *messageRepository) AddReaction(ctx context.Context, scope domain.Scope, chatID, messageID, emoji, userID string) (*domain.Message, error) {
	return r.Mutate(ctx, scope, chatID, messageID, func(m *domain.Message) (bool, error) {
		return m.AddReaction(emoji, userID), nil
	})
}

// RemoveReaction is a no-op when userID never reacted with emoji
func (r *messageRepository) RemoveReaction(ctx context.Context, scope domain.Scope, chatID, messageID, emoji, userID string) (*domain.Message, error) {
	return r.Mutate(ctx, scope, chatID, messageID, func(m *domain.Message) (bool, error) {
		return m.RemoveReaction(emoji, userID), nil
	})
}

// MarkAsRead adds userID to the message readers
func (r *messageRepository) MarkAsRead(ctx context.Context, scope domain.Scope, chatID, messageID, userID string) (*domain.Message, error) {
	return r.Mutate(ctx, scope, chatID, messageID, func(m *domain.Message) (bool, error) {
		return m.MarkReadBy(userID), nil
	})
}

// MarkChatAsRead marks every unread message of the chat read by userID and
// returns how many changed
func (r *messageRepository) MarkChatAsRead(ctx context.Context, scope domain.Scope, chatID, userID string) (int, error) {
	msgs, err := r.FindAll(ctx, scope, chatID)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, m := range msgs {
		if m.IsReadBy(userID) || m.IsDeleted {
			continue
		}
		changed := false
		_, err := r.Mutate(ctx, scope, chatID, m.ID, func(cur *domain.Message) (bool, error) {
			changed = cur.MarkReadBy(userID)
			return changed, nil
		})
		if err != nil {
			return marked, err
		}
		if changed {
			marked++
		}
	}
	return marked, nil
}

// Edit replaces the text and appends the prior version to the edit history.
// Deleted messages cannot be edited.
func (r *messageRepository) Edit(ctx context.Context, scope domain.Scope, chatID, messageID, text string) (*domain.Message, error) {
	return r.Mutate(ctx, scope, chatID, messageID, func(m *domain.Message) (bool, error) {
		if m.IsDeleted {
			return false, fmt.Errorf("%w: message %s was deleted", common.ErrInvalidInput, messageID)
		}
		m.ApplyEdit(text, r.store.Now())
		return true, nil
	})
}

// SoftDelete tombstones the message
func (r *messageRepository) SoftDelete(ctx context.Context, scope domain.Scope, chatID, messageID string) (*domain.Message, error) {
	return r.Mutate(ctx, scope, chatID, messageID, func(m *domain.Message) (bool, error) {
		if m.IsDeleted {
			return false, nil
		}
		m.ApplySoftDelete(domain.DeletedMessageText, r.store.Now())
		return true, nil
	})
}

// SetPinned flips the message pin flag
func (r *messageRepository) SetPinned(ctx context.Context, scope domain.Scope, chatID, messageID string, pinned bool) (*domain.Message, error) {
	return r.Mutate(ctx, scope, chatID, messageID, func(m *domain.Message) (bool, error) {
		if m.IsPinned == pinned {
			return false, nil
		}
		m.IsPinned = pinned
		return true, nil
	})
}

// Search scans one chat for a case-insensitive substring match. Deleted
// messages never match.
func (r *messageRepository) Search(ctx context.Context, scope domain.Scope, chatID, query string) ([]*domain.Message, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*domain.Message{}, nil
	}
	msgs, err := r.FindAll(ctx, scope, chatID)
	if err != nil {
		return nil, err
	}
	hits := make([]*domain.Message, 0)
	for _, m := range msgs {
		if !m.IsDeleted && strings.Contains(strings.ToLower(m.Text), q) {
			hits = append(hits, m)
		}
	}
	return hits, nil
}
