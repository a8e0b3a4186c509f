package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessage_AddReactionIsIdempotent(t *testing.T) {
	m := &Message{}

	assert.True(t, m.AddReaction("👍", "u1"))
	assert.False(t, m.AddReaction("👍", "u1"))
	assert.Equal(t, []string{"u1"}, m.Reactions["👍"])

	assert.True(t, m.AddReaction("👍", "u2"))
	assert.Equal(t, []string{"u1", "u2"}, m.Reactions["👍"])
}

func TestMessage_RemoveReaction(t *testing.T) {
	m := &Message{}
	m.AddReaction("👍", "u1")
	m.AddReaction("👍", "u2")
	m.AddReaction("🎉", "u1")

	// absent reactor is a no-op
	assert.False(t, m.RemoveReaction("👍", "u3"))
	assert.False(t, m.RemoveReaction("❤️", "u1"))
	assert.Len(t, m.Reactions, 2)

	assert.True(t, m.RemoveReaction("👍", "u1"))
	assert.Equal(t, []string{"u2"}, m.Reactions["👍"])

	// last reactor removes the key
	assert.True(t, m.RemoveReaction("🎉", "u1"))
	_, ok := m.Reactions["🎉"]
	assert.False(t, ok)
	for emoji, ids := range m.Reactions {
		assert.NotEmpty(t, ids, emoji)
	}
}

func TestMessage_ApplyEdit(t *testing.T) {
	sent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	m := &Message{Text: "hello", Timestamp: sent}

	m.ApplyEdit("hello world", sent.Add(time.Minute))

	assert.Equal(t, "hello world", m.Text)
	assert.True(t, m.IsEdited)
	assert.Equal(t, []EditRecord{{Text: "hello", Timestamp: sent}}, m.EditHistory)

	m.ApplyEdit("bye", sent.Add(2*time.Minute))
	assert.Len(t, m.EditHistory, 2)
	assert.Equal(t, sent.Add(time.Minute), m.EditHistory[1].Timestamp)
}

func TestMessage_ApplySoftDelete(t *testing.T) {
	sent := time.Now()
	m := &Message{
		ID: "m1", ChatID: "c1", SenderID: "u1", Timestamp: sent, Text: "secret",
		Attachments: []Attachment{{ID: "a1"}},
	}

	m.ApplySoftDelete(DeletedMessageText, sent.Add(time.Second))

	assert.True(t, m.IsDeleted)
	assert.Equal(t, DeletedMessageText, m.Text)
	assert.Nil(t, m.Attachments)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "c1", m.ChatID)
	assert.Equal(t, "u1", m.SenderID)
	assert.Equal(t, sent, m.Timestamp)
}

func TestMessage_MarkReadBy(t *testing.T) {
	m := &Message{SenderID: "u1", Status: MessageStatusSent, ReadBy: []string{"u1"}}

	assert.False(t, m.MarkReadBy("u1"))
	assert.Equal(t, MessageStatusSent, m.Status)

	assert.True(t, m.MarkReadBy("u2"))
	assert.Equal(t, MessageStatusRead, m.Status)
	assert.False(t, m.MarkReadBy("u2"))
}

func TestChat_Participants(t *testing.T) {
	c := &Chat{Participants: []string{"u1"}}

	assert.False(t, c.AddParticipant("u1"))
	assert.True(t, c.AddParticipant("u2"))
	assert.True(t, c.RemoveParticipant("u1"))
	assert.False(t, c.RemoveParticipant("u1"))
	assert.Equal(t, []string{"u2"}, c.Participants)
}

func TestChat_SetPinned(t *testing.T) {
	c := &Chat{}

	assert.True(t, c.SetPinned("m1", true))
	assert.False(t, c.SetPinned("m1", true))
	assert.True(t, c.SetPinned("m2", true))
	assert.True(t, c.SetPinned("m1", false))
	assert.Equal(t, []string{"m2"}, c.PinnedMessages)
	assert.True(t, c.SetPinned("m2", false))
	assert.Nil(t, c.PinnedMessages)
}

func TestScope_Valid(t *testing.T) {
	assert.False(t, Scope{}.Valid())
	assert.True(t, Scope{CompanyID: "c1", DepartmentID: "d1"}.Valid())
	assert.False(t, Scope{CompanyID: "c1/chats"}.Valid())
	assert.False(t, Scope{CompanyID: "c1", DepartmentID: "a/b"}.Valid())
	assert.False(t, Scope{CompanyID: "c1", SiteID: ".."}.Valid())
}

func TestScope_BasePath(t *testing.T) {
	assert.Equal(t, "", Scope{}.BasePath())
	assert.Equal(t, "companies/c1", Scope{CompanyID: "c1"}.BasePath())
	assert.Equal(t, "companies/c1/sites/s1", Scope{CompanyID: "c1", SiteID: "s1"}.BasePath())
	assert.Equal(t, "companies/c1/sites/s1/subsites/ss", Scope{CompanyID: "c1", SiteID: "s1", SubsiteID: "ss"}.BasePath())
	// subsite without site is ignored
	assert.Equal(t, "companies/c1", Scope{CompanyID: "c1", SubsiteID: "ss"}.BasePath())
}

func TestChatType(t *testing.T) {
	assert.True(t, ChatTypeCompany.Scoped())
	assert.True(t, ChatTypeRole.Scoped())
	assert.False(t, ChatTypeDirect.Scoped())
	assert.False(t, ChatType("bogus").Valid())

	s := Scope{CompanyID: "c", SiteID: "s", DepartmentID: "d", RoleID: "r"}
	assert.Equal(t, "c", s.ScopeIDFor(ChatTypeCompany))
	assert.Equal(t, "d", s.ScopeIDFor(ChatTypeDepartment))
	assert.Equal(t, "", s.ScopeIDFor(ChatTypeGroup))
}

func TestAttachmentTypeOf(t *testing.T) {
	assert.Equal(t, AttachmentImage, AttachmentTypeOf("image/png"))
	assert.Equal(t, AttachmentVideo, AttachmentTypeOf("video/mp4"))
	assert.Equal(t, AttachmentAudio, AttachmentTypeOf("audio/ogg"))
	assert.Equal(t, AttachmentFile, AttachmentTypeOf("application/pdf"))
}

func TestChatSettings_IsMuted(t *testing.T) {
	now := time.Now()
	s := DefaultChatSettings("c1")
	assert.False(t, s.IsMuted(now))

	s.Muted = true
	assert.True(t, s.IsMuted(now))

	until := now.Add(-time.Minute)
	s.MuteUntil = &until
	assert.False(t, s.IsMuted(now))

	s = DefaultChatSettings("c1")
	s.Notifications = false
	assert.True(t, s.IsMuted(now))
}
