package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/mentorchat/internal/proto"
)

// frame keeps the payload raw so it can be decoded per event.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run announces, sends a note to itself, edits and deletes it.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	identity := flag.String("identity", "tester", "identity to announce")
	token := flag.String("token", "", "JWT (see `mentorchat token`)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	// await prints frames until the named event arrives.
	await := func(event string) (json.RawMessage, error) {
		for {
			var f frame
			if err := wsjson.Read(ctx, conn, &f); err != nil {
				return nil, fmt.Errorf("read: %w", err)
			}
			if f.Type == proto.OutboundTypeError && f.Error != nil {
				return nil, fmt.Errorf("server error %s: %s", f.Error.Code, f.Error.Msg)
			}
			fmt.Printf("Received outbound: type=%s event=%s data=%s\n", f.Type, f.Event, f.Data)
			if f.Event == event {
				return f.Data, nil
			}
		}
	}

	if err := send(proto.InboundTypeAnnounce, proto.AnnounceData{
		Identity: *identity,
		Token:    *token,
		Protocol: proto.ProtocolVersion,
	}); err != nil {
		return err
	}
	if _, err := await(proto.EventPresenceUpdated); err != nil {
		return err
	}

	if err := send(proto.InboundTypeSend, proto.SendData{RecipientID: *identity, Content: *text}); err != nil {
		return err
	}
	raw, err := await(proto.EventPrivateMessage)
	if err != nil {
		return err
	}
	var msg proto.PrivateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	fmt.Printf("Message: id=%s sender=%s recipient=%s content=%q ts=%s\n",
		msg.ID, msg.Sender, msg.Recipient, msg.Content, msg.Timestamp.Format(time.RFC3339))

	// Sending to ourselves makes us the recipient of the edit and delete notifications too.
	if err := send(proto.InboundTypeEdit, proto.EditData{MessageID: msg.ID, NewContent: *text + " (edited)"}); err != nil {
		return err
	}
	if _, err := await(proto.EventMessageEdited); err != nil {
		return err
	}

	if err := send(proto.InboundTypeDelete, proto.DeleteData{MessageID: msg.ID}); err != nil {
		return err
	}
	if _, err := await(proto.EventMessageDeleted); err != nil {
		return err
	}

	fmt.Println("smoke test passed")
	return nil
}
