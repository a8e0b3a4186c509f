package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/elasticsearch"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// MessageIndexName is the elasticsearch index holding messages
const MessageIndexName = "messenger-messages"

// SearchIndex is a full-text message index kept in step with message writes
type SearchIndex interface {
	Index(ctx context.Context, scope domain.Scope, msg *domain.Message) error
	Remove(ctx context.Context, scope domain.Scope, messageID string) error
	Search(ctx context.Context, scope domain.Scope, query string, chatIDs []string, limit int) ([]*domain.Message, error)
}

// searchBackend is the subset of the elasticsearch client the index uses
type searchBackend interface {
	IndexDocument(ctx context.Context, index, docID string, body interface{}) error
	DeleteDocument(ctx context.Context, index, docID string) error
	Search(ctx context.Context, index string, query map[string]interface{}, from, size int) (*elasticsearch.SearchResponse, error)
	CreateIndex(ctx context.Context, index string, mapping map[string]interface{}) error
}

// ESSearchIndex stores messages in elasticsearch
type ESSearchIndex struct {
	es searchBackend
}

// NewESSearchIndex wraps an elasticsearch client
func NewESSearchIndex(es *elasticsearch.Client) *ESSearchIndex {
	return &ESSearchIndex{es: es}
}

type indexedMessage struct {
	*domain.Message
	CompanyID string `json:"company_id"`
}

// EnsureIndex creates the message index with its mapping
func (x *ESSearchIndex) EnsureIndex(ctx context.Context) error {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"company_id": map[string]interface{}{"type": "keyword"},
				"chat_id":    map[string]interface{}{"type": "keyword"},
				"sender_id":  map[string]interface{}{"type": "keyword"},
				"text": map[string]interface{}{
					"type": "text",
					// 부분 문자열 검색용 원문
					"fields": map[string]interface{}{
						"raw": map[string]interface{}{"type": "keyword", "ignore_above": maxMessageLength},
					},
				},
				"timestamp":  map[string]interface{}{"type": "date"},
				"is_deleted": map[string]interface{}{"type": "boolean"},
			},
		},
	}
	return x.es.CreateIndex(ctx, MessageIndexName, mapping)
}

// Index upserts msg
func (x *ESSearchIndex) Index(ctx context.Context, scope domain.Scope, msg *domain.Message) error {
	return x.es.IndexDocument(ctx, MessageIndexName, msg.ID, &indexedMessage{Message: msg, CompanyID: scope.CompanyID})
}

// Remove deletes a message document
func (x *ESSearchIndex) Remove(ctx context.Context, _ domain.Scope, messageID string) error {
	return x.es.DeleteDocument(ctx, MessageIndexName, messageID)
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// Search finds messages whose text contains query, ignoring case, within the
// company and chatIDs. Same semantics as the repository scan.
func (x *ESSearchIndex) Search(ctx context.Context, scope domain.Scope, query string, chatIDs []string, limit int) ([]*domain.Message, error) {
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"wildcard": map[string]interface{}{
						"text.raw": map[string]interface{}{
							"value":            "*" + wildcardEscaper.Replace(query) + "*",
							"case_insensitive": true,
						},
					}},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"company_id": scope.CompanyID}},
					map[string]interface{}{"terms": map[string]interface{}{"chat_id": chatIDs}},
					map[string]interface{}{"term": map[string]interface{}{"is_deleted": false}},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"timestamp": map[string]interface{}{"order": "asc"}},
		},
	}
	res, err := x.es.Search(ctx, MessageIndexName, q, 0, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Message, 0, len(res.Results))
	for _, hit := range res.Results {
		raw, err := json.Marshal(hit.Source)
		if err != nil {
			continue
		}
		var m domain.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m.ID == "" {
			m.ID = hit.ID
		}
		out = append(out, &m)
	}
	return out, nil
}

// RegisterSearchIndexer keeps idx in step with message events
func RegisterSearchIndexer(bus *events.Bus, idx SearchIndex) {
	reindex := func(e events.Event) {
		p, ok := e.Payload.(*events.MessagePayload)
		if !ok || p.Message == nil {
			return
		}
		if err := idx.Index(context.Background(), e.Scope, p.Message); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("message_id", p.Message.ID).Msg("search index update failed")
		}
	}
	bus.Subscribe("search-indexer", events.TopicMessageSent, reindex)
	bus.Subscribe("search-indexer", events.TopicMessageEdited, reindex)
	bus.Subscribe("search-indexer", events.TopicMessageDeleted, func(e events.Event) {
		p, ok := e.Payload.(*events.MessagePayload)
		if !ok || p.Message == nil {
			return
		}
		if err := idx.Remove(context.Background(), e.Scope, p.Message.ID); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("message_id", p.Message.ID).Msg("search index removal failed")
		}
	})
}

// Reindex rebuilds idx from storage for one company. Deleted messages are
// removed from the index rather than skipped so stale documents disappear.
// It returns the number of messages indexed.
func Reindex(ctx context.Context, scope domain.Scope, chats repository.ChatRepository, messages repository.MessageRepository, idx SearchIndex) (int, error) {
	all, err := chats.FindAll(ctx, scope)
	if err != nil {
		return 0, err
	}
	indexed := 0
	for _, chat := range all {
		msgs, err := messages.FindAll(ctx, scope, chat.ID)
		if err != nil {
			return indexed, fmt.Errorf("chat %s: %w", chat.ID, err)
		}
		for _, m := range msgs {
			if m.IsDeleted {
				if err := idx.Remove(ctx, scope, m.ID); err != nil {
					pkglogger.GetLogger().Warn().Err(err).
						Str("company_id", scope.CompanyID).
						Str("message_id", m.ID).
						Msg("search index removal failed")
				}
				continue
			}
			if err := idx.Index(ctx, scope, m); err != nil {
				return indexed, fmt.Errorf("message %s: %w", m.ID, err)
			}
			indexed++
		}
	}
	return indexed, nil
}
