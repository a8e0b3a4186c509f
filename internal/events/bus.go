// Package events is an in-process publish/subscribe bus for messenger domain
// events. Side effects of a write (notifications, search indexing) subscribe
// here instead of being called from the write path.
package events

import (
	"sync"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// Topics
const (
	TopicMessageSent        = "message.sent"
	TopicMessageEdited      = "message.edited"
	TopicMessageDeleted     = "message.deleted"
	TopicInvitationSent     = "invitation.sent"
	TopicInvitationAccepted = "invitation.accepted"
)

// Event is one published occurrence
type Event struct {
	Topic     string
	Scope     domain.Scope
	Payload   interface{}
	Timestamp time.Time
}

// MessagePayload accompanies message topics
type MessagePayload struct {
	Chat    *domain.Chat
	Message *domain.Message
}

// InvitationPayload accompanies invitation topics
type InvitationPayload struct {
	Invitation *domain.ContactInvitation
}

// Handler handles one event
type Handler func(event Event)

type subscription struct {
	name    string
	handler Handler
}

// Bus 이벤트 발행/구독
type Bus struct {
	subscribers map[string][]subscription
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

// NewBus creates a Bus
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]subscription)}
}

// Subscribe registers handler for topic under name
func (b *Bus) Subscribe(name, topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], subscription{name: name, handler: handler})
	pkglogger.GetLogger().Debug().Str("subscriber", name).Str("topic", topic).Msg("event subscription added")
}

// Unsubscribe drops every subscription registered under name
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.subscribers {
		var remaining []subscription
		for _, s := range subs {
			if s.name != name {
				remaining = append(remaining, s)
			}
		}
		if len(remaining) == 0 {
			delete(b.subscribers, topic)
		} else {
			b.subscribers[topic] = remaining
		}
	}
}

// Publish runs every handler of topic in registration order. A panicking
// handler is logged and does not stop the others.
func (b *Bus) Publish(topic string, scope domain.Scope, payload interface{}) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[topic]))
	copy(subs, b.subscribers[topic])
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	event := Event{Topic: topic, Scope: scope, Payload: payload, Timestamp: time.Now()}
	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					pkglogger.GetLogger().Error().
						Str("topic", topic).
						Str("subscriber", s.name).
						Interface("panic", r).
						Msg("event handler panicked")
				}
			}()
			s.handler(event)
		}()
	}
}

// PublishAsync publishes on a new goroutine; Wait blocks until those finish
func (b *Bus) PublishAsync(topic string, scope domain.Scope, payload interface{}) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.Publish(topic, scope, payload)
	}()
}

// Wait blocks until every PublishAsync call has completed
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Subscriptions lists subscriber names per topic
func (b *Bus) Subscriptions() map[string][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string][]string)
	for topic, subs := range b.subscribers {
		for _, s := range subs {
			out[topic] = append(out[topic], s.name)
		}
	}
	return out
}
