package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushed struct {
	userID    string
	eventType string
}

type recordingPusher struct {
	mu    sync.Mutex
	calls []pushed
}

func (p *recordingPusher) Push(userID, eventType string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushed{userID: userID, eventType: eventType})
}

func (p *recordingPusher) to(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		if c.userID == userID {
			out = append(out, c.eventType)
		}
	}
	return out
}

func TestNotificationService_MessageFanOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pusher := &recordingPusher{}
	svc := NewNotificationService(f.notifications, f.prefs, pusher)
	svc.Register(f.bus)

	chat := f.group(t, "u1", "u2", "u3", "u4")
	require.NoError(t, f.prefs.SaveSettings(ctx, "u3", &domain.ChatSettings{ChatID: chat.ID, Notifications: true, Muted: true}))
	require.NoError(t, f.prefs.SaveSettings(ctx, "u4", &domain.ChatSettings{ChatID: chat.ID, Notifications: true, Muted: true}))

	_, err := f.msgSvc.SendMessage(ctx, testScope, "u1", chat.ID, &domain.SendMessageRequest{Text: "hey @u4", Mentions: []string{"u4"}})
	require.NoError(t, err)

	sender, err := svc.List(ctx, testScope, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, sender)

	u2, err := svc.List(ctx, testScope, "u2", 0)
	require.NoError(t, err)
	require.Len(t, u2, 1)
	assert.Equal(t, domain.NotificationMessage, u2[0].Type)
	assert.Equal(t, chat.ID, u2[0].ChatID)

	muted, err := svc.List(ctx, testScope, "u3", 0)
	require.NoError(t, err)
	assert.Empty(t, muted)

	mentioned, err := svc.List(ctx, testScope, "u4", 0)
	require.NoError(t, err)
	require.Len(t, mentioned, 1)
	assert.Equal(t, domain.NotificationMention, mentioned[0].Type)

	assert.Equal(t, []string{"notification"}, pusher.to("u2"))
	assert.Empty(t, pusher.to("u3"))
}

func TestNotificationService_MuteExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewNotificationService(f.notifications, f.prefs, nil)
	svc.Register(f.bus)

	chat := f.group(t, "u1", "u2")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.prefs.SaveSettings(ctx, "u2", &domain.ChatSettings{ChatID: chat.ID, Notifications: true, Muted: true, MuteUntil: &past}))

	send(t, f, "u1", chat.ID, "wake up")

	summary, err := svc.GetUnreadCount(ctx, testScope, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalUnread)
}

func TestNotificationService_MarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pusher := &recordingPusher{}
	svc := NewNotificationService(f.notifications, f.prefs, pusher)
	svc.Register(f.bus)

	chat := f.group(t, "u1", "u2")
	send(t, f, "u1", chat.ID, "one")
	send(t, f, "u1", chat.ID, "two")

	list, err := svc.List(ctx, testScope, "u2", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "two", list[0].Body)

	require.NoError(t, svc.MarkAsRead(ctx, testScope, "u2", list[0].ID))
	summary, err := svc.GetUnreadCount(ctx, testScope, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalUnread)

	require.NoError(t, svc.MarkAllAsRead(ctx, testScope, "u2"))
	summary, err = svc.GetUnreadCount(ctx, testScope, "u2")
	require.NoError(t, err)
	assert.Zero(t, summary.TotalUnread)

	assert.Contains(t, pusher.to("u2"), "unread_count")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := make([]rune, previewLength+10)
	for i := range long {
		long[i] = '가'
	}
	got := []rune(preview(string(long)))
	assert.Len(t, got, previewLength+1)
}
