package store

import (
	"context"
)

// Driver is the interface a store database driver implements.
// Drivers persist whole conversation records; ordering and per-conversation
// serialization are enforced by the Store facade.
type Driver interface {
	Close() error

	// CreateConversation inserts a new conversation record.
	CreateConversation(ctx context.Context, conversation *Conversation) error

	// GetConversation returns the record, or (nil, nil) when absent.
	GetConversation(ctx context.Context, uid string) (*Conversation, error)

	// SaveConversation replaces the stored record for conversation.UID.
	SaveConversation(ctx context.Context, conversation *Conversation) error

	// ListConversations returns summaries ordered by last update, newest first.
	ListConversations(ctx context.Context) ([]*ConversationSummary, error)

	// DeleteConversation removes the record, reporting whether it existed.
	DeleteConversation(ctx context.Context, uid string) (bool, error)
}
