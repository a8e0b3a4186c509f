package repository

import (
	"context"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChat(t *testing.T, repo ChatRepository) *domain.Chat {
	t.Helper()
	chat, err := repo.Create(context.Background(), testScope, &domain.Chat{
		Name:         "room",
		Type:         domain.ChatTypeGroup,
		Participants: []string{"u2"},
		CreatedBy:    "u1",
	})
	require.NoError(t, err)
	return chat
}

func TestMessageRepository_SendMirrorsLastMessage(t *testing.T) {
	store := setupTestStore(t)
	chats := NewChatRepository(store)
	repo := NewMessageRepository(store)
	ctx := context.Background()
	chat := seedChat(t, chats)

	msg, err := repo.Send(ctx, testScope, &domain.Message{ChatID: chat.ID, Text: "hello", SenderID: "u1", SenderName: "Kim"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, domain.MessageStatusSent, msg.Status)
	assert.False(t, msg.Timestamp.IsZero())

	got, err := chats.FindByID(ctx, testScope, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, msg.ID, got.LastMessage.ID)
	assert.Equal(t, "Kim", got.LastMessage.SenderName)
	// the mirror patch leaves the rest of the chat alone
	assert.Equal(t, "room", got.Name)
}

func TestMessageRepository_FindRecentAndAll(t *testing.T) {
	store := setupTestStore(t)
	repo := NewMessageRepository(store)
	chat := seedChat(t, NewChatRepository(store))
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		_, err := repo.Send(ctx, testScope, &domain.Message{ChatID: chat.ID, Text: text, SenderID: "u1"})
		require.NoError(t, err)
	}

	recent, err := repo.FindRecent(ctx, testScope, chat.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	SortByTimestamp(recent)
	assert.Equal(t, "b", recent[0].Text)
	assert.Equal(t, "c", recent[1].Text)

	all, err := repo.FindAll(ctx, testScope, chat.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Text)

	_, err = repo.FindByID(ctx, testScope, chat.ID, "missing")
	assert.ErrorIs(t, err, common.ErrMessageNotFound)
}

func TestMessageRepository_ReactionsAreIdempotent(t *testing.T) {
	store := setupTestStore(t)
	repo := NewMessageRepository(store)
	chat := seedChat(t, NewChatRepository(store))
	ctx := context.Background()

	msg, err := repo.Send(ctx, testScope, &domain.Message{ChatID: chat.ID, Text: "hi", SenderID: "u1"})
	require.NoError(t, err)

	_, err = repo.AddReaction(ctx, testScope, chat.ID, msg.ID, "👍", "u2")
	require.NoError(t, err)
	got, err := repo.AddReaction(ctx, testScope, chat.ID, msg.ID, "👍", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, got.Reactions["👍"])

	// removing an absent reaction is a no-op
	got, err = repo.RemoveReaction(ctx, testScope, chat.ID, msg.ID, "🎉", "u2")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"👍": {"u2"}}, got.Reactions)

	_, err = repo.RemoveReaction(ctx, testScope, chat.ID, msg.ID, "👍", "u2")
	require.NoError(t, err)
	stored, err := repo.FindByID(ctx, testScope, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.Reactions, "👍")
	assert.Empty(t, stored.Reactions)
}

func TestMessageRepository_EditAndSoftDelete(t *testing.T) {
	store := setupTestStore(t)
	repo := NewMessageRepository(store)
	chat := seedChat(t, NewChatRepository(store))
	ctx := context.Background()

	msg, err := repo.Send(ctx, testScope, &domain.Message{
		ChatID:      chat.ID,
		Text:        "hello",
		SenderID:    "u1",
		Attachments: []domain.Attachment{{ID: "a1", Name: "x.png"}},
	})
	require.NoError(t, err)

	edited, err := repo.Edit(ctx, testScope, chat.ID, msg.ID, "hello world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", edited.Text)
	assert.True(t, edited.IsEdited)
	require.Len(t, edited.EditHistory, 1)
	assert.Equal(t, "hello", edited.EditHistory[0].Text)
	assert.True(t, edited.EditHistory[0].Timestamp.Equal(msg.Timestamp))

	deleted, err := repo.SoftDelete(ctx, testScope, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, domain.DeletedMessageText, deleted.Text)
	assert.Empty(t, deleted.Attachments)
	assert.Equal(t, msg.ID, deleted.ID)
	assert.Equal(t, msg.SenderID, deleted.SenderID)
	assert.True(t, deleted.Timestamp.Equal(msg.Timestamp))

	_, err = repo.Edit(ctx, testScope, chat.ID, "missing", "x")
	assert.ErrorIs(t, err, common.ErrMessageNotFound)
}

func TestMessageRepository_ReadAndPin(t *testing.T) {
	store := setupTestStore(t)
	repo := NewMessageRepository(store)
	chat := seedChat(t, NewChatRepository(store))
	ctx := context.Background()

	m1, err := repo.Send(ctx, testScope, &domain.Message{ChatID: chat.ID, Text: "1", SenderID: "u1"})
	require.NoError(t, err)
	_, err = repo.Send(ctx, testScope, &domain.Message{ChatID: chat.ID, Text: "2", SenderID: "u1"})
	require.NoError(t, err)

	got, err := repo.MarkAsRead(ctx, testScope, chat.ID, m1.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, got.ReadBy)
	assert.Equal(t, domain.MessageStatusRead, got.Status)

	n, err := repo.MarkChatAsRead(ctx, testScope, chat.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pinned, err := repo.SetPinned(ctx, testScope, chat.ID, m1.ID, true)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
}

func TestMessageRepository_Search(t *testing.T) {
	store := setupTestStore(t)
	repo := NewMessageRepository(store)
	chat := seedChat(t, NewChatRepository(store))
	ctx := context.Background()

	for _, text := range []string{"Deploy at noon", "lunch?", "deployment done"} {
		_, err := repo.Send(ctx, testScope, &domain.Message{ChatID: chat.ID, Text: text, SenderID: "u1"})
		require.NoError(t, err)
	}

	hits, err := repo.Search(ctx, testScope, chat.ID, "DEPLOY")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = repo.Search(ctx, testScope, chat.ID, "  ")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMessageRepository_SubscribeDeliversSnapshots(t *testing.T) {
	store := setupTestStore(t)
	repo := NewMessageRepository(store)
	chat := seedChat(t, NewChatRepository(store))
	ctx := context.Background()

	snapshots := make(chan []*domain.Message, 8)
	unsubscribe := repo.Subscribe(testScope, chat.ID, func(msgs []*domain.Message, err error) {
		assert.NoError(t, err)
		snapshots <- msgs
	})
	defer unsubscribe()

	select {
	case msgs := <-snapshots:
		assert.Empty(t, msgs)
	case <-time.After(time.Second):
		t.Fatal("initial snapshot not delivered")
	}

	_, err := repo.Send(ctx, testScope, &domain.Message{ChatID: chat.ID, Text: "hi", SenderID: "u1"})
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for {
		select {
		case msgs := <-snapshots:
			if len(msgs) == 1 {
				assert.Equal(t, "hi", msgs[0].Text)
				return
			}
		case <-deadline:
			t.Fatal("change snapshot not delivered")
		}
	}
}

func TestMessageRepository_EditRefusesDeleted(t *testing.T) {
	store := setupTestStore(t)
	repo := NewMessageRepository(store)
	chat := seedChat(t, NewChatRepository(store))
	ctx := context.Background()

	msg, err := repo.Send(ctx, testScope, &domain.Message{ChatID: chat.ID, Text: "x", SenderID: "u1"})
	require.NoError(t, err)
	_, err = repo.SoftDelete(ctx, testScope, chat.ID, msg.ID)
	require.NoError(t, err)

	_, err = repo.Edit(ctx, testScope, chat.ID, msg.ID, "y")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	got, err := repo.FindByID(ctx, testScope, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeletedMessageText, got.Text)
}
