// Package memdb provides an in-memory store driver for dev mode and tests.
package memdb

import (
	"context"
	"sort"
	"sync"

	"github.com/parleyhq/parley/store"
)

// DB is an in-memory implementation of store.Driver.
type DB struct {
	mu            sync.RWMutex
	conversations map[string]*store.Conversation
}

// NewDB creates a new in-memory driver.
func NewDB() *DB {
	return &DB{
		conversations: make(map[string]*store.Conversation),
	}
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) CreateConversation(_ context.Context, conversation *store.Conversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conversations[conversation.UID] = conversation.Clone()
	return nil
}

func (d *DB) GetConversation(_ context.Context, uid string) (*store.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conversation, ok := d.conversations[uid]
	if !ok {
		return nil, nil
	}
	return conversation.Clone(), nil
}

func (d *DB) SaveConversation(_ context.Context, conversation *store.Conversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conversations[conversation.UID] = conversation.Clone()
	return nil
}

func (d *DB) ListConversations(_ context.Context) ([]*store.ConversationSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	summaries := make([]*store.ConversationSummary, 0, len(d.conversations))
	for _, conversation := range d.conversations {
		summaries = append(summaries, conversation.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedTs != summaries[j].UpdatedTs {
			return summaries[i].UpdatedTs > summaries[j].UpdatedTs
		}
		return summaries[i].UID < summaries[j].UID
	})
	return summaries, nil
}

func (d *DB) DeleteConversation(_ context.Context, uid string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.conversations[uid]; !ok {
		return false, nil
	}
	delete(d.conversations, uid)
	return true, nil
}

var _ store.Driver = (*DB)(nil)
