package core

import (
	"context"
	"errors"

	"github.com/vovakirdan/mentorchat/internal/store"
)

// SendPrivateMessage persists a message from c's identity to recipient, echoes the
// stored record back to c and pushes it to the recipient if online.
// Connections without an identity are ignored.
func (h *Hub) SendPrivateMessage(ctx context.Context, c *Client, recipient, content string) {
	sender, ok := h.sender(c, CommandSendPrivateMessage)
	if !ok {
		return
	}

	msg := &store.Message{
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		CreatedAt: h.now(),
	}
	if err := h.store.CreateMessage(ctx, msg); err != nil {
		h.log.Error().Err(err).
			Str("client_id", c.ID).
			Str("identity", sender).
			Str("recipient", recipient).
			Msg("failed to persist private message")
		return
	}

	ev := &Event{Kind: EventPrivateMessage, Message: *msg}
	h.deliver(c, ev)
	if target, online := h.presence.Lookup(recipient); online && target != c {
		h.deliver(target, ev)
	}
}

// EditMessage replaces the content of a message c's identity sent and notifies
// the recipient if online. Unknown and foreign messages are ignored alike.
func (h *Hub) EditMessage(ctx context.Context, c *Client, messageID, content string) {
	sender, ok := h.sender(c, CommandEditMessage)
	if !ok {
		return
	}
	if !h.ownedBy(ctx, c, messageID, sender, CommandEditMessage) {
		return
	}

	msg, err := h.store.UpdateMessageContent(ctx, messageID, sender, content)
	if err != nil {
		h.storeFailure(err, c, messageID, CommandEditMessage)
		return
	}

	if target, online := h.presence.Lookup(msg.Recipient); online {
		h.deliver(target, &Event{Kind: EventMessageEdited, MessageID: msg.ID, Content: msg.Content})
	}
}

// DeleteMessage permanently removes a message c's identity sent and notifies
// the recipient if online. Unknown and foreign messages are ignored alike.
func (h *Hub) DeleteMessage(ctx context.Context, c *Client, messageID string) {
	sender, ok := h.sender(c, CommandDeleteMessage)
	if !ok {
		return
	}
	if !h.ownedBy(ctx, c, messageID, sender, CommandDeleteMessage) {
		return
	}

	msg, err := h.store.DeleteMessage(ctx, messageID, sender)
	if err != nil {
		h.storeFailure(err, c, messageID, CommandDeleteMessage)
		return
	}

	if target, online := h.presence.Lookup(msg.Recipient); online {
		h.deliver(target, &Event{Kind: EventMessageDeleted, MessageID: msg.ID})
	}
}

func (h *Hub) sender(c *Client, kind CommandKind) (string, bool) {
	identity, ok := h.presence.IdentityOf(c)
	if !ok {
		h.log.Debug().Str("client_id", c.ID).Stringer("command", kind).Msg("dropped: connection has no identity")
	}
	return identity, ok
}

func (h *Hub) ownedBy(ctx context.Context, c *Client, messageID, sender string, kind CommandKind) bool {
	msg, err := h.store.GetMessage(ctx, messageID)
	if err != nil {
		h.storeFailure(err, c, messageID, kind)
		return false
	}
	if msg.Sender != sender {
		// Logged like a missing message so that logs carry no more than clients see.
		h.log.Debug().Str("client_id", c.ID).Str("message_id", messageID).Stringer("command", kind).Msg("dropped: message not found")
		return false
	}
	return true
}

func (h *Hub) storeFailure(err error, c *Client, messageID string, kind CommandKind) {
	if errors.Is(err, store.ErrNotFound) {
		h.log.Debug().Str("client_id", c.ID).Str("message_id", messageID).Stringer("command", kind).Msg("dropped: message not found")
		return
	}
	h.log.Error().Err(err).Str("client_id", c.ID).Str("message_id", messageID).Stringer("command", kind).Msg("message store failure")
}
