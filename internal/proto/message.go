package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeAnnounce = "announce-identity"
	InboundTypeHello    = "hello"
	InboundTypeSend     = "send-private-message"
	InboundTypeEdit     = "edit-message"
	InboundTypeDelete   = "delete-message"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventPresenceUpdated = "presence-updated"
	EventPrivateMessage  = "private-message"
	EventMessageEdited   = "message-edited"
	EventMessageDeleted  = "message-deleted"
)

// AnnounceData binds an identity to the connection.
type AnnounceData struct {
	Identity string `json:"identity"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// SendData is a private message from the client.
type SendData struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// EditData replaces the content of a message the client sent.
type EditData struct {
	MessageID  string `json:"messageId"`
	NewContent string `json:"newContent"`
}

// DeleteData removes a message the client sent.
type DeleteData struct {
	MessageID string `json:"messageId"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// PresenceUpdated carries every identity currently online.
type PresenceUpdated struct {
	Identities []string `json:"identities"`
}

// PrivateMessage is a persisted message as clients see it.
// ID duplicates MongoID for clients that still read the legacy key.
type PrivateMessage struct {
	MongoID   string    `json:"_id"`
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsEdited  bool      `json:"isEdited"`
}

// MessageEdited notifies the recipient about new content.
type MessageEdited struct {
	MessageID  string `json:"messageId"`
	NewContent string `json:"newContent"`
}

// MessageDeleted notifies the recipient that a message is gone.
type MessageDeleted struct {
	MessageID string `json:"messageId"`
}

// Partner identifies the other side of a conversation.
type Partner struct {
	ID string `json:"_id"`
}

// ConversationSummary is one entry of the conversations listing.
type ConversationSummary struct {
	Partner     Partner   `json:"partner"`
	LastMessage string    `json:"lastMessage"`
	Timestamp   time.Time `json:"timestamp"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
