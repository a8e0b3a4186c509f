package domain

import "time"

// AddReaction records userID under emoji. It reports false when the user had
// already reacted with that emoji.
func (m *Message) AddReaction(emoji, userID string) bool {
	for _, id := range m.Reactions[emoji] {
		if id == userID {
			return false
		}
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	m.Reactions[emoji] = append(m.Reactions[emoji], userID)
	return true
}

// RemoveReaction drops userID from emoji and removes the emoji key once no
// reactors remain. It reports false when the user had not reacted.
func (m *Message) RemoveReaction(emoji, userID string) bool {
	reactors, ok := m.Reactions[emoji]
	if !ok {
		return false
	}
	kept := make([]string, 0, len(reactors))
	for _, id := range reactors {
		if id != userID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(reactors) {
		return false
	}
	if len(kept) == 0 {
		delete(m.Reactions, emoji)
	} else {
		m.Reactions[emoji] = kept
	}
	if len(m.Reactions) == 0 {
		m.Reactions = nil
	}
	return true
}

// MarkReadBy adds userID to the readers. The sender never counts as a reader
// for the delivery status.
func (m *Message) MarkReadBy(userID string) bool {
	if m.IsReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	if userID != m.SenderID {
		m.Status = MessageStatusRead
	}
	return true
}

// ApplyEdit replaces the text and appends the previous version to the history
func (m *Message) ApplyEdit(text string, at time.Time) {
	prev := m.Timestamp
	if m.EditedAt != nil {
		prev = *m.EditedAt
	}
	m.EditHistory = append(m.EditHistory, EditRecord{Text: m.Text, Timestamp: prev})
	m.Text = text
	m.IsEdited = true
	m.EditedAt = &at
}

// ApplySoftDelete tombstones the message in place. Identity, sender and
// timestamp are preserved.
func (m *Message) ApplySoftDelete(tombstone string, at time.Time) {
	m.Text = tombstone
	m.Attachments = nil
	m.Reactions = nil
	m.Mentions = nil
	m.IsDeleted = true
	m.IsPinned = false
	m.DeletedAt = &at
}

// AddParticipant appends userID when missing and reports whether it did
func (c *Chat) AddParticipant(userID string) bool {
	if c.HasParticipant(userID) {
		return false
	}
	c.Participants = append(c.Participants, userID)
	return true
}

// RemoveParticipant drops userID and reports whether it was present
func (c *Chat) RemoveParticipant(userID string) bool {
	kept := c.Participants[:0:0]
	for _, p := range c.Participants {
		if p != userID {
			kept = append(kept, p)
		}
	}
	removed := len(kept) != len(c.Participants)
	c.Participants = kept
	return removed
}

// SetPinned adds or removes messageID from the pinned list
func (c *Chat) SetPinned(messageID string, pinned bool) bool {
	idx := -1
	for i, id := range c.PinnedMessages {
		if id == messageID {
			idx = i
			break
		}
	}
	switch {
	case pinned && idx < 0:
		c.PinnedMessages = append(c.PinnedMessages, messageID)
		return true
	case !pinned && idx >= 0:
		c.PinnedMessages = append(c.PinnedMessages[:idx:idx], c.PinnedMessages[idx+1:]...)
		if len(c.PinnedMessages) == 0 {
			c.PinnedMessages = nil
		}
		return true
	}
	return false
}
