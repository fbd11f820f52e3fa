package http

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/vovakirdan/mentorchat/internal/core"
	"github.com/vovakirdan/mentorchat/internal/proto"
	"github.com/vovakirdan/mentorchat/internal/store"
)

// inboundToCommand maps routing frames. Identity announcements are handled by the ws handler.
// A non-nil error means the frame could not be decoded at all.
func inboundToCommand(inbound proto.Inbound, maxContent int) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeSend:
		var send proto.SendData
		if err := json.Unmarshal(inbound.Data, &send); err != nil {
			return nil, nil, err
		}
		if send.RecipientID == "" {
			return nil, badRequest("recipientId is required"), nil
		}
		if protoErr := checkContent(send.Content, maxContent); protoErr != nil {
			return nil, protoErr, nil
		}
		return &core.Command{
			Kind:      core.CommandSendPrivateMessage,
			Recipient: send.RecipientID,
			Content:   send.Content,
		}, nil, nil
	case proto.InboundTypeEdit:
		var edit proto.EditData
		if err := json.Unmarshal(inbound.Data, &edit); err != nil {
			return nil, nil, err
		}
		if edit.MessageID == "" {
			return nil, badRequest("messageId is required"), nil
		}
		if protoErr := checkContent(edit.NewContent, maxContent); protoErr != nil {
			return nil, protoErr, nil
		}
		return &core.Command{
			Kind:      core.CommandEditMessage,
			MessageID: edit.MessageID,
			Content:   edit.NewContent,
		}, nil, nil
	case proto.InboundTypeDelete:
		var del proto.DeleteData
		if err := json.Unmarshal(inbound.Data, &del); err != nil {
			return nil, nil, err
		}
		if del.MessageID == "" {
			return nil, badRequest("messageId is required"), nil
		}
		return &core.Command{
			Kind:      core.CommandDeleteMessage,
			MessageID: del.MessageID,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}, nil
	}
}

func checkContent(content string, maxContent int) *proto.Error {
	if maxContent > 0 && utf8.RuneCountInString(content) > maxContent {
		return badRequest(fmt.Sprintf("content exceeds %d characters", maxContent))
	}
	return nil
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func errorFrame(protoErr *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventPresence:
		identities := event.Identities
		if identities == nil {
			identities = []string{}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresenceUpdated,
			Data:  proto.PresenceUpdated{Identities: identities},
		}
	case core.EventPrivateMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPrivateMessage,
			Data:  privateMessage(&event.Message),
		}
	case core.EventMessageEdited:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageEdited,
			Data:  proto.MessageEdited{MessageID: event.MessageID, NewContent: event.Content},
		}
	case core.EventMessageDeleted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDeleted,
			Data:  proto.MessageDeleted{MessageID: event.MessageID},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func privateMessage(msg *store.Message) proto.PrivateMessage {
	return proto.PrivateMessage{
		MongoID:   msg.ID,
		ID:        msg.ID,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt.UTC(),
		IsEdited:  msg.Edited,
	}
}
