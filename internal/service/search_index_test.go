package service

import (
	"context"
	"sync"
	"testing"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/pkg/elasticsearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu      sync.Mutex
	docs    map[string]interface{}
	created map[string]interface{}
	query   map[string]interface{}
	resp    *elasticsearch.SearchResponse
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{docs: map[string]interface{}{}, created: map[string]interface{}{}}
}

func (f *fakeBackend) IndexDocument(_ context.Context, _ string, docID string, body interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[docID] = body
	return nil
}

func (f *fakeBackend) DeleteDocument(_ context.Context, _ string, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, docID)
	return nil
}

func (f *fakeBackend) Search(_ context.Context, _ string, query map[string]interface{}, _, _ int) (*elasticsearch.SearchResponse, error) {
	f.query = query
	return f.resp, nil
}

func (f *fakeBackend) CreateIndex(_ context.Context, index string, mapping map[string]interface{}) error {
	f.created[index] = mapping
	return nil
}

func TestESSearchIndex_IndexAndSearch(t *testing.T) {
	be := newFakeBackend()
	idx := &ESSearchIndex{es: be}
	ctx := context.Background()

	require.NoError(t, idx.EnsureIndex(ctx))
	assert.Contains(t, be.created, MessageIndexName)

	require.NoError(t, idx.Index(ctx, testScope, &domain.Message{ID: "m1", ChatID: "c1", Text: "hello"}))
	doc, ok := be.docs["m1"].(*indexedMessage)
	require.True(t, ok)
	assert.Equal(t, testScope.CompanyID, doc.CompanyID)

	be.resp = &elasticsearch.SearchResponse{Total: 1, Results: []elasticsearch.SearchResult{
		{ID: "m1", Source: map[string]interface{}{"chat_id": "c1", "text": "hello"}},
	}}
	hits, err := idx.Search(ctx, testScope, "hello", []string{"c1"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m1", hits[0].ID)
	assert.Equal(t, "hello", hits[0].Text)

	boolQuery := be.query["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, boolQuery["filter"].([]interface{}), 3)

	// substring, case-insensitive, like the scan path
	_, err = idx.Search(ctx, testScope, "ELL*", []string{"c1"}, 10)
	require.NoError(t, err)
	must := be.query["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})
	wildcard := must[0].(map[string]interface{})["wildcard"].(map[string]interface{})["text.raw"].(map[string]interface{})
	assert.Equal(t, `*ELL\**`, wildcard["value"])
	assert.Equal(t, true, wildcard["case_insensitive"])

	require.NoError(t, idx.Remove(ctx, testScope, "m1"))
	assert.Empty(t, be.docs)
}

func TestReindex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.group(t, "u1")
	b := f.group(t, "u2")
	send(t, f, "u1", a.ID, "one")
	gone := send(t, f, "u1", a.ID, "two")
	send(t, f, "u2", b.ID, "three")
	_, err := f.msgSvc.DeleteMessage(ctx, testScope, "u1", a.ID, gone.ID)
	require.NoError(t, err)

	be := newFakeBackend()
	be.docs[gone.ID] = "stale"
	n, err := Reindex(ctx, testScope, f.chats, f.messages, &ESSearchIndex{es: be})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, be.docs, 2)
	assert.NotContains(t, be.docs, gone.ID)

	// a failing removal is logged and the rebuild goes on
	rec := &recordingIndex{}
	n, err = Reindex(ctx, testScope, f.chats, f.messages, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{gone.ID}, rec.removed)
	assert.Len(t, rec.indexed, 2)

	_, err = Reindex(ctx, domain.Scope{}, f.chats, f.messages, &ESSearchIndex{es: be})
	assert.Error(t, err)
}
