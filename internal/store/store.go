//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a message does not exist or is not owned by the caller.
var ErrNotFound = errors.New("not found")

// Message represents a persisted private message between two identities.
type Message struct {
	ID        string
	Sender    string
	Recipient string
	Content   string
	CreatedAt time.Time
	Edited    bool
}

// ConversationSummary describes the latest message exchanged with one partner.
type ConversationSummary struct {
	Partner     string
	LastMessage string
	Timestamp   time.Time
}

// MessageStore handles message persistence and sender-scoped mutation.
type MessageStore interface {
	// CreateMessage persists a new message.
	// An empty ID is replaced by a generated one, a zero CreatedAt by the current time.
	CreateMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// UpdateMessageContent replaces the content of a message sent by sender and marks it edited.
	// Returns ErrNotFound if no message with that ID belongs to sender.
	UpdateMessageContent(ctx context.Context, id, sender, content string) (*Message, error)

	// DeleteMessage permanently removes a message sent by sender and returns the removed record.
	// Returns ErrNotFound if no message with that ID belongs to sender.
	DeleteMessage(ctx context.Context, id, sender string) (*Message, error)
}

// HistoryStore answers read-only history queries.
type HistoryStore interface {
	// ListConversation returns messages exchanged between a and b in chronological order.
	// If before is set, only messages created strictly before it are returned.
	ListConversation(ctx context.Context, a, b string, limit int, before *time.Time) ([]*Message, error)

	// ListConversations returns one summary per partner of identity, latest first.
	ListConversations(ctx context.Context, identity string) ([]*ConversationSummary, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore
	HistoryStore

	// Close closes the underlying database connection.
	Close() error
}
