package messenger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var scope = domain.Scope{CompanyID: "c1"}

type user string

func (u user) UserID() string        { return string(u) }
func (u user) IsAuthenticated() bool { return u != "" }

func newServices(t *testing.T) (Services, *tree.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, tree.AutoMigrate(db))

	store := tree.New(db)
	t.Cleanup(store.Notifier().Close)

	bus := events.NewBus()
	chats := repository.NewChatRepository(store)
	messages := repository.NewMessageRepository(store)
	prefs := repository.NewPreferenceRepository(store)
	profiles := repository.NewProfileRepository(store, nil)
	contacts := repository.NewContactRepository(store)
	statuses := repository.NewStatusRepository(store)

	return Services{
		Chats:       service.NewChatService(chats),
		Messages:    service.NewMessageService(chats, messages, profiles, prefs, bus),
		Contacts:    service.NewContactService(contacts, profiles, statuses, bus),
		Statuses:    service.NewStatusService(statuses),
		Preferences: service.NewPreferenceService(prefs),
	}, store
}

func TestSession_SetScopeSubscribesOnce(t *testing.T) {
	svc, store := newServices(t)
	ctx := context.Background()
	s := NewSession(svc, user("u1"), nil)

	s.SetScope(ctx, scope)
	assert.Equal(t, 4, store.Notifier().WatcherCount())
	assert.Equal(t, "companies/c1", s.State().BasePath)

	s.SetScope(ctx, scope)
	assert.Equal(t, 4, store.Notifier().WatcherCount())

	chat, err := s.CreateChat(ctx, &domain.CreateChatRequest{Name: "room", Type: domain.ChatTypeGroup})
	require.NoError(t, err)

	require.NoError(t, s.SetActiveChat(ctx, chat.ID))
	assert.Equal(t, 5, store.Notifier().WatcherCount())

	// switching keeps a single message subscription
	require.NoError(t, s.SetActiveChat(ctx, chat.ID))
	assert.Equal(t, 5, store.Notifier().WatcherCount())

	s.Close()
	assert.Equal(t, 0, store.Notifier().WatcherCount())
	_, err = s.CreateChat(ctx, &domain.CreateChatRequest{Name: "late", Type: domain.ChatTypeGroup})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_LiveUpdates(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	alice := NewSession(svc, user("u1"), nil)
	defer alice.Close()
	alice.SetScope(ctx, scope)

	// 다른 사용자가 만든 채팅도 목록에 나타나야 함
	chat, err := svc.Chats.CreateChat(ctx, scope, "u2", &domain.CreateChatRequest{
		Name:         "team",
		Type:         domain.ChatTypeGroup,
		Participants: []string{"u1"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		chats := alice.State().Chats
		return len(chats) == 1 && chats[0].ID == chat.ID
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.SetActiveChat(ctx, chat.ID))
	assert.Empty(t, alice.State().ActiveMessages())

	_, err = svc.Messages.SendMessage(ctx, scope, "u2", chat.ID, &domain.SendMessageRequest{Text: "hello"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		msgs := alice.State().ActiveMessages()
		return len(msgs) == 1 && msgs[0].Text == "hello"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_OnChangeOrder(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	s := NewSession(svc, user("u1"), nil)
	defer s.Close()

	var mu sync.Mutex
	var seen []bool
	stop := s.OnChange(func(st State) {
		mu.Lock()
		seen = append(seen, st.IsLoading)
		mu.Unlock()
	})
	s.SetScope(ctx, scope)
	stop()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.False(t, seen[len(seen)-1])
}

func TestSession_Unauthenticated(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	s := NewSession(svc, user(""), nil)
	defer s.Close()

	_, err := s.SendMessage(ctx, "chat1", &domain.SendMessageRequest{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.NotEmpty(t, s.State().Error)
	assert.False(t, s.State().IsLoading)

	res, err := s.SearchMessages(ctx, "hi", "")
	assert.Error(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.Results)

	list, err := s.GetWorkContacts(ctx)
	assert.Error(t, err)
	assert.Empty(t, list)

	s.ClearError()
	assert.Empty(t, s.State().Error)
}

func TestSession_SendAndEdit(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	s := NewSession(svc, user("u1"), nil)
	defer s.Close()
	s.SetScope(ctx, scope)

	chat, err := s.CreateChat(ctx, &domain.CreateChatRequest{Name: "room", Type: domain.ChatTypeGroup})
	require.NoError(t, err)
	require.NoError(t, s.SetActiveChat(ctx, chat.ID))

	_, err = s.SaveDraft(ctx, chat.ID, &domain.SaveDraftRequest{Text: "wip"})
	require.NoError(t, err)
	assert.Contains(t, s.State().Drafts, chat.ID)

	msg, err := s.SendMessage(ctx, chat.ID, &domain.SendMessageRequest{Text: "first"})
	require.NoError(t, err)
	assert.NotContains(t, s.State().Drafts, chat.ID)

	edited, err := s.EditMessage(ctx, chat.ID, msg.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", edited.Text)

	pinned, err := s.PinMessage(ctx, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)

	reacted, err := s.AddReaction(ctx, chat.ID, msg.ID, "👍")
	require.NoError(t, err)
	assert.Contains(t, reacted.Reactions["👍"], "u1")

	res, err := s.SearchMessages(ctx, "SECOND", chat.ID)
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)

	settings, err := s.UpdateChatSettings(ctx, &domain.ChatSettings{ChatID: chat.ID, Muted: true})
	require.NoError(t, err)
	assert.True(t, settings.Muted)
	assert.True(t, s.State().Settings[chat.ID].Muted)
}

func TestSession_Invitations(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	alice := NewSession(svc, user("u1"), nil)
	defer alice.Close()
	alice.SetScope(ctx, scope)
	bob := NewSession(svc, user("u2"), nil)
	defer bob.Close()
	bob.SetScope(ctx, scope)

	res, err := alice.SendContactInvitation(ctx, &domain.SendInvitationRequest{ToUserID: "u2"})
	require.NoError(t, err)
	require.NotNil(t, res.Invitation)
	assert.False(t, res.Duplicate)

	dup, err := alice.SendContactInvitation(ctx, &domain.SendInvitationRequest{ToUserID: "u2"})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.NotEmpty(t, alice.State().Error)

	pair, err := bob.AcceptInvitation(ctx, res.Invitation.ID)
	require.NoError(t, err)
	assert.Len(t, pair, 2)
	assert.Len(t, bob.GetSavedContacts(), 1)

	require.Eventually(t, func() bool {
		return len(alice.GetSavedContacts()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
