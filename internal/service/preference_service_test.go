package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferenceService_Drafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewPreferenceService(f.prefs)

	_, err := svc.SaveDraft(ctx, "", "chat1", &domain.SaveDraftRequest{Text: "x"})
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	draft, err := svc.SaveDraft(ctx, "u1", "chat1", &domain.SaveDraftRequest{Text: "wip"})
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, "wip", draft.Text)

	drafts, err := svc.ListDrafts(ctx, "u1")
	require.NoError(t, err)
	assert.Contains(t, drafts, "chat1")

	// empty text removes the draft
	draft, err = svc.SaveDraft(ctx, "u1", "chat1", &domain.SaveDraftRequest{Text: "  "})
	require.NoError(t, err)
	assert.Nil(t, draft)

	got, err := svc.GetDraft(ctx, "u1", "chat1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// 첨부만 있는 초안은 유지
	files := []domain.Attachment{{ID: "a1", Type: domain.AttachmentFile, URL: "https://cdn/a.pdf", Name: "a.pdf"}}
	draft, err = svc.SaveDraft(ctx, "u1", "chat1", &domain.SaveDraftRequest{Files: files})
	require.NoError(t, err)
	require.NotNil(t, draft)
	got, err = svc.GetDraft(ctx, "u1", "chat1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, files, got.Files)
}

func TestStatusService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewStatusService(f.statuses)

	_, err := svc.SetStatus(ctx, testScope, "u1", &domain.SetStatusRequest{Status: "sleeping"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	set, err := svc.SetStatus(ctx, testScope, "u1", &domain.SetStatusRequest{Status: domain.PresenceAway, CustomStatus: "lunch"})
	require.NoError(t, err)
	assert.False(t, set.LastActive.IsZero())

	got, err := svc.GetStatus(ctx, testScope, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceAway, got.Status)
	assert.Equal(t, "lunch", got.CustomStatus)

	unknown, err := svc.GetStatus(ctx, testScope, "nobody")
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOffline, unknown.Status)

	all, err := svc.ListStatuses(ctx, testScope)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCategoryService_DeleteClearsChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewCategoryService(f.categories, f.chats)

	_, err := svc.Create(ctx, testScope, &domain.ChatCategory{Name: " "})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	cat, err := svc.Create(ctx, testScope, &domain.ChatCategory{Name: "Projects", Order: 2})
	require.NoError(t, err)

	chat := f.group(t, "u1")
	_, err = f.chatSvc.SetCategory(ctx, testScope, "u1", chat.ID, cat.ID)
	require.NoError(t, err)

	renamed, err := svc.Update(ctx, testScope, cat.ID, &domain.ChatCategory{Name: "Work", Order: 1})
	require.NoError(t, err)
	assert.Equal(t, "Work", renamed.Name)
	assert.Equal(t, 1, renamed.Order)

	require.NoError(t, svc.Delete(ctx, testScope, cat.ID))

	list, err := svc.List(ctx, testScope)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := f.chats.FindByID(ctx, testScope, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)
}

type fakeUploader struct {
	key  string
	body []byte
}

func (u *fakeUploader) Upload(_ context.Context, key string, body io.Reader, _ string, size int64) (*storage.UploadResult, error) {
	u.key = key
	u.body, _ = io.ReadAll(body)
	return &storage.UploadResult{Key: key, URL: "https://cdn.example.com/" + key, Size: size}, nil
}

func TestAttachmentService_UploadWithFake(t *testing.T) {
	ctx := context.Background()

	_, err := NewAttachmentService(nil, 0).Upload(ctx, "u1", "chat1", "a.png", "image/png", 3, bytes.NewReader([]byte("abc")))
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)

	up := &fakeUploader{}
	svc := NewAttachmentService(up, 10)

	_, err = svc.Upload(ctx, "u1", "chat1", "big.bin", "", 11, bytes.NewReader(nil))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	att, err := svc.Upload(ctx, "u1", "chat1", "../../etc/photo.png", "image/png", 3, bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, domain.AttachmentImage, att.Type)
	assert.Equal(t, "photo.png", att.Name)
	assert.Equal(t, int64(3), att.Size)
	assert.Contains(t, up.key, "chat1")
	assert.Equal(t, []byte("abc"), up.body)
}

type recordingIndex struct {
	indexed []string
	removed []string
}

func (r *recordingIndex) Index(_ context.Context, _ domain.Scope, msg *domain.Message) error {
	r.indexed = append(r.indexed, msg.ID)
	return nil
}

func (r *recordingIndex) Remove(_ context.Context, _ domain.Scope, messageID string) error {
	r.removed = append(r.removed, messageID)
	return errors.New("ignored")
}

func (r *recordingIndex) Search(context.Context, domain.Scope, string, []string, int) ([]*domain.Message, error) {
	return nil, nil
}

func TestRegisterSearchIndexer(t *testing.T) {
	bus := events.NewBus()
	idx := &recordingIndex{}
	RegisterSearchIndexer(bus, idx)

	msg := &domain.Message{ID: "m1"}
	bus.Publish(events.TopicMessageSent, testScope, &events.MessagePayload{Message: msg})
	bus.Publish(events.TopicMessageEdited, testScope, &events.MessagePayload{Message: msg})
	bus.Publish(events.TopicMessageDeleted, testScope, &events.MessagePayload{Message: msg})
	bus.Publish(events.TopicMessageSent, testScope, "not a payload")

	assert.Equal(t, []string{"m1", "m1"}, idx.indexed)
	assert.Equal(t, []string{"m1"}, idx.removed)
}
