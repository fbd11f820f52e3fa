package core

import "github.com/vovakirdan/mentorchat/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventPresence carries the full set of online identities.
	EventPresence EventKind = iota
	// EventPrivateMessage carries a persisted message to its sender and recipient.
	EventPrivateMessage
	// EventMessageEdited notifies the recipient about new content.
	EventMessageEdited
	// EventMessageDeleted notifies the recipient that a message is gone.
	EventMessageDeleted
)

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be mutated after delivery.
type Event struct {
	Kind       EventKind
	Identities []string      // EventPresence
	Message    store.Message // EventPrivateMessage
	MessageID  string        // EventMessageEdited, EventMessageDeleted
	Content    string        // EventMessageEdited
}
