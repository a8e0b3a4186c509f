package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(t *testing.T, f *fixture, userID, chatID, text string) *domain.Message {
	t.Helper()
	msg, err := f.msgSvc.SendMessage(context.Background(), testScope, userID, chatID, &domain.SendMessageRequest{Text: text})
	require.NoError(t, err)
	return msg
}

func TestMessageService_SendUsesProfileName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.profiles.SaveProfile(ctx, &domain.UserProfile{ID: "u1", DisplayName: "Kim"}))
	chat := f.group(t, "u1", "u2")

	msg := send(t, f, "u1", chat.ID, "  hello  ")
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "Kim", msg.SenderName)
	assert.Equal(t, []string{"u1"}, msg.ReadBy)

	got, err := f.chats.FindByID(ctx, testScope, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, msg.ID, got.LastMessage.ID)
	assert.Equal(t, "Kim", got.LastMessage.SenderName)
}

func TestMessageService_SendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, "u1", "u2")

	_, err := f.msgSvc.SendMessage(ctx, testScope, "u1", chat.ID, &domain.SendMessageRequest{Text: "   "})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.msgSvc.SendMessage(ctx, testScope, "u1", chat.ID, &domain.SendMessageRequest{Text: strings.Repeat("a", maxMessageLength+1)})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.msgSvc.SendMessage(ctx, testScope, "u3", chat.ID, &domain.SendMessageRequest{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrNotParticipant)

	_, err = f.msgSvc.SendMessage(ctx, testScope, "", chat.ID, &domain.SendMessageRequest{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestMessageService_FileSharingDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, err := f.chatSvc.CreateChat(ctx, testScope, "u1", &domain.CreateChatRequest{
		Name:     "locked",
		Type:     domain.ChatTypeGroup,
		Settings: &domain.ChatFeatures{AllowFileSharing: false, AllowMentions: true},
	})
	require.NoError(t, err)

	_, err = f.msgSvc.SendMessage(ctx, testScope, "u1", chat.ID, &domain.SendMessageRequest{
		Attachments: []domain.Attachment{{ID: "a1", Type: domain.AttachmentImage, URL: "https://cdn/x.png"}},
	})
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestMessageService_SendClearsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, "u1")
	require.NoError(t, f.prefs.SaveDraft(ctx, "u1", &domain.Draft{ChatID: chat.ID, Text: "wip"}))

	send(t, f, "u1", chat.ID, "done")

	draft, err := f.prefs.GetDraft(ctx, "u1", chat.ID)
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestMessageService_EditKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, "u1", "u2")
	msg := send(t, f, "u1", chat.ID, "hello")

	_, err := f.msgSvc.EditMessage(ctx, testScope, "u2", chat.ID, msg.ID, "hijack")
	assert.ErrorIs(t, err, common.ErrNotSender)

	// 거부된 수정은 메시지를 바꾸지 않는다
	untouched, err := f.messages.FindByID(ctx, testScope, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", untouched.Text)
	assert.False(t, untouched.IsEdited)
	assert.Empty(t, untouched.EditHistory)

	edited, err := f.msgSvc.EditMessage(ctx, testScope, "u1", chat.ID, msg.ID, "hello!")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "hello!", edited.Text)
	require.Len(t, edited.EditHistory, 1)
	assert.Equal(t, "hello", edited.EditHistory[0].Text)
	assert.True(t, edited.EditHistory[0].Timestamp.Equal(msg.Timestamp))

	got, err := f.chats.FindByID(ctx, testScope, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello!", got.LastMessage.Text)
}

func TestMessageService_EditAndDeletePublishEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, "u1")
	msg := send(t, f, "u1", chat.ID, "hello")

	var mu sync.Mutex
	var topics []string
	record := func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		topics = append(topics, e.Topic)
	}
	f.bus.Subscribe("test", events.TopicMessageEdited, record)
	f.bus.Subscribe("test", events.TopicMessageDeleted, record)

	_, err := f.msgSvc.EditMessage(ctx, testScope, "u1", chat.ID, msg.ID, "hello!")
	require.NoError(t, err)
	_, err = f.msgSvc.DeleteMessage(ctx, testScope, "u1", chat.ID, msg.ID)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{events.TopicMessageEdited, events.TopicMessageDeleted}, topics)
}

func TestMessageService_MirrorMatchesByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, "u1")
	first := send(t, f, "u1", chat.ID, "first")
	second := send(t, f, "u1", chat.ID, "second")

	_, err := f.msgSvc.EditMessage(ctx, testScope, "u1", chat.ID, first.ID, "first, edited")
	require.NoError(t, err)

	got, err := f.chats.FindByID(ctx, testScope, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.LastMessage.ID)
	assert.Equal(t, "second", got.LastMessage.Text)
}

func TestMessageService_DeleteTombstones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, "u1", "u2")
	msg := send(t, f, "u1", chat.ID, "secret")

	_, err := f.msgSvc.SetPinned(ctx, testScope, "u2", chat.ID, msg.ID, true)
	require.NoError(t, err)

	_, err = f.msgSvc.DeleteMessage(ctx, testScope, "u2", chat.ID, msg.ID)
	assert.ErrorIs(t, err, common.ErrNotSender)

	untouched, err := f.messages.FindByID(ctx, testScope, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", untouched.Text)
	assert.False(t, untouched.IsDeleted)
	assert.False(t, untouched.IsEdited)

	deleted, err := f.msgSvc.DeleteMessage(ctx, testScope, "u1", chat.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, domain.DeletedMessageText, deleted.Text)
	assert.Equal(t, "u1", deleted.SenderID)

	got, err := f.chats.FindByID(ctx, testScope, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeletedMessageText, got.LastMessage.Text)
	assert.NotContains(t, got.PinnedMessages, msg.ID)

	msgs, err := f.msgSvc.GetMessages(ctx, testScope, "u2", chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	_, err = f.msgSvc.EditMessage(ctx, testScope, "u1", chat.ID, msg.ID, "back")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestMessageService_ReactionsAndReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, "u1", "u2")
	a := send(t, f, "u1", chat.ID, "a")
	send(t, f, "u1", chat.ID, "b")

	for i := 0; i < 2; i++ {
		_, err := f.msgSvc.AddReaction(ctx, testScope, "u2", chat.ID, a.ID, "👍")
		require.NoError(t, err)
	}
	got, err := f.messages.FindByID(ctx, testScope, chat.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, got.Reactions["👍"])

	_, err = f.msgSvc.RemoveReaction(ctx, testScope, "u2", chat.ID, a.ID, "👍")
	require.NoError(t, err)
	got, err = f.messages.FindByID(ctx, testScope, chat.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Reactions["👍"])

	n, err := f.msgSvc.MarkAsRead(ctx, testScope, "u2", chat.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.msgSvc.MarkAsRead(ctx, testScope, "u2", chat.ID, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMessageService_ReplyAndForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.group(t, "u1", "u2")
	dst := f.group(t, "u2")
	orig := send(t, f, "u1", src.ID, "look")

	reply, err := f.msgSvc.SendMessage(ctx, testScope, "u2", src.ID, &domain.SendMessageRequest{Text: "nice", ReplyToID: orig.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, "look", reply.ReplyTo.Text)

	fwd, err := f.msgSvc.ForwardMessage(ctx, testScope, "u2", src.ID, orig.ID, dst.ID)
	require.NoError(t, err)
	assert.Equal(t, dst.ID, fwd.ChatID)
	assert.Equal(t, "u2", fwd.SenderID)
	require.NotNil(t, fwd.ForwardedFrom)
	assert.Equal(t, orig.ID, fwd.ForwardedFrom.MessageID)

	_, err = f.msgSvc.ForwardMessage(ctx, testScope, "u2", src.ID, orig.ID, "missing")
	assert.ErrorIs(t, err, common.ErrChatNotFound)
}

func TestMessageService_GetMessagesLimit(t *testing.T) {
	f := newFixture(t)
	chat := f.group(t, "u1")
	for _, text := range []string{"1", "2", "3"} {
		send(t, f, "u1", chat.ID, text)
	}

	msgs, err := f.msgSvc.GetMessages(context.Background(), testScope, "u1", chat.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "2", msgs[0].Text)
	assert.Equal(t, "3", msgs[1].Text)
}

func TestMessageService_SearchPartialWithoutIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, "u1", "u2")
	send(t, f, "u1", chat.ID, "quarterly Report")
	send(t, f, "u1", chat.ID, "lunch?")

	res, err := f.msgSvc.SearchMessages(ctx, testScope, "u2", "report", "")
	require.NoError(t, err)
	assert.False(t, res.Partial)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "room", res.Results[0].ChatName)

	res, err = f.msgSvc.SearchMessages(ctx, testScope, "u9", "report", "")
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Empty(t, res.Results)
}

type stubIndex struct {
	hits []*domain.Message
	err  error
}

func (s *stubIndex) Index(context.Context, domain.Scope, *domain.Message) error { return nil }
func (s *stubIndex) Remove(context.Context, domain.Scope, string) error { return nil }
func (s *stubIndex) Search(context.Context, domain.Scope, string, []string, int) ([]*domain.Message, error) {
	return s.hits, s.err
}

func TestMessageService_SearchIndexFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.group(t, "u1")
	send(t, f, "u1", chat.ID, "from the store")

	f.msgSvc.WithSearchIndex(&stubIndex{hits: []*domain.Message{{ID: "x", ChatID: chat.ID, Text: "from the index"}}})
	res, err := f.msgSvc.SearchMessages(ctx, testScope, "u1", "from", "")
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "from the index", res.Results[0].Message.Text)

	f.msgSvc.WithSearchIndex(&stubIndex{err: errors.New("es down")})
	res, err = f.msgSvc.SearchMessages(ctx, testScope, "u1", "from", chat.ID)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "from the store", res.Results[0].Message.Text)
}
