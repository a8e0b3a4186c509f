// Package messenger is the synchronization layer: a reducer-backed local view
// of the remote tree, kept current by change subscriptions, plus the intents a
// client issues against it.
package messenger

import (
	"github.com/damoang/angple-messenger/internal/domain"
)

// State is the local mirror of one user's messenger data. A State handed to a
// listener is never mutated afterwards; reduce copies whatever it changes.
type State struct {
	BasePath     string                          `json:"base_path"`
	Chats        []*domain.Chat                  `json:"chats"`
	Messages     map[string][]*domain.Message    `json:"messages"`
	ActiveChatID string                          `json:"active_chat_id,omitempty"`
	Contacts     []*domain.Contact               `json:"contacts"`
	Invitations  []*domain.ContactInvitation     `json:"invitations"`
	Settings     map[string]*domain.ChatSettings `json:"settings"`
	Drafts       map[string]*domain.Draft        `json:"drafts"`
	IsLoading    bool                            `json:"is_loading"`
	Error        string                          `json:"error,omitempty"`
}

// NewState returns an empty state
func NewState() State {
	return State{
		Chats:       []*domain.Chat{},
		Messages:    map[string][]*domain.Message{},
		Contacts:    []*domain.Contact{},
		Invitations: []*domain.ContactInvitation{},
		Settings:    map[string]*domain.ChatSettings{},
		Drafts:      map[string]*domain.Draft{},
	}
}

// ActiveMessages returns the messages of the active chat
func (s State) ActiveMessages() []*domain.Message {
	if s.ActiveChatID == "" {
		return nil
	}
	return s.Messages[s.ActiveChatID]
}

// action is one state transition
type action interface{}

type setLoading struct{ loading bool }

type setError struct{ message string }

type clearError struct{}

type setBasePath struct{ basePath string }

type setChats struct{ chats []*domain.Chat }

type upsertChat struct{ chat *domain.Chat }

type setActiveChat struct{ chatID string }

type setMessages struct {
	chatID   string
	messages []*domain.Message
}

type upsertMessage struct{ message *domain.Message }

type setContacts struct{ contacts []*domain.Contact }

type setInvitations struct{ invitations []*domain.ContactInvitation }

type upsertInvitation struct{ invitation *domain.ContactInvitation }

type setSettings struct{ settings *domain.ChatSettings }

type setDraft struct {
	chatID string
	draft  *domain.Draft
}

type resetScope struct{}

// reduce applies a to s and returns the next state. s is not modified.
func reduce(s State, a action) State {
	switch a := a.(type) {
	case setLoading:
		s.IsLoading = a.loading
	case setError:
		s.Error = a.message
		s.IsLoading = false
	case clearError:
		s.Error = ""
	case setBasePath:
		s.BasePath = a.basePath
	case setChats:
		s.Chats = a.chats
		s.IsLoading = false
	case upsertChat:
		chats := make([]*domain.Chat, 0, len(s.Chats)+1)
		chats = append(chats, a.chat)
		for _, c := range s.Chats {
			if c.ID != a.chat.ID {
				chats = append(chats, c)
			}
		}
		s.Chats = chats
	case setActiveChat:
		s.ActiveChatID = a.chatID
	case setMessages:
		msgs := copyMessages(s.Messages)
		msgs[a.chatID] = a.messages
		s.Messages = msgs
		s.IsLoading = false
	case upsertMessage:
		msgs := copyMessages(s.Messages)
		list := msgs[a.message.ChatID]
		next := make([]*domain.Message, 0, len(list)+1)
		found := false
		for _, m := range list {
			if m.ID == a.message.ID {
				next = append(next, a.message)
				found = true
				continue
			}
			next = append(next, m)
		}
		if !found {
			next = append(next, a.message)
		}
		msgs[a.message.ChatID] = next
		s.Messages = msgs
	case setContacts:
		s.Contacts = a.contacts
	case setInvitations:
		s.Invitations = a.invitations
	case upsertInvitation:
		invs := make([]*domain.ContactInvitation, 0, len(s.Invitations)+1)
		invs = append(invs, a.invitation)
		for _, inv := range s.Invitations {
			if inv.ID != a.invitation.ID {
				invs = append(invs, inv)
			}
		}
		s.Invitations = invs
	case setSettings:
		settings := make(map[string]*domain.ChatSettings, len(s.Settings)+1)
		for k, v := range s.Settings {
			settings[k] = v
		}
		settings[a.settings.ChatID] = a.settings
		s.Settings = settings
	case setDraft:
		drafts := make(map[string]*domain.Draft, len(s.Drafts)+1)
		for k, v := range s.Drafts {
			drafts[k] = v
		}
		if a.draft == nil {
			delete(drafts, a.chatID)
		} else {
			drafts[a.chatID] = a.draft
		}
		s.Drafts = drafts
	case resetScope:
		// 범위 변경 시 채팅 데이터만 초기화 (연락처는 회사와 무관)
		s.Chats = []*domain.Chat{}
		s.Messages = map[string][]*domain.Message{}
		s.ActiveChatID = ""
	}
	return s
}

func copyMessages(in map[string][]*domain.Message) map[string][]*domain.Message {
	out := make(map[string][]*domain.Message, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
