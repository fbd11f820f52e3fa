package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/mentorchat/internal/proto"
)

const usage = `Commands:
  /to <identity> <text>   send a private message
  /edit <id> <text>       edit one of your messages
  /delete <id>            delete one of your messages
  <text>                  send to the last /to recipient`

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	identity := flag.String("identity", "cli-user", "identity to announce")
	token := flag.String("token", "", "JWT (see `mentorchat token`)")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeAnnounce, proto.AnnounceData{Identity: *identity, Token: *token}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *identity)
	fmt.Println(usage)

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if f.Type == proto.OutboundTypeError && f.Error != nil {
			fmt.Printf("! %s: %s\n", f.Error.Code, f.Error.Msg)
			continue
		}

		switch f.Event {
		case proto.EventPresenceUpdated:
			var evt proto.PresenceUpdated
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				log.Printf("unmarshal presence: %v", err)
				continue
			}
			fmt.Printf("* online: %s\n", strings.Join(evt.Identities, ", "))
		case proto.EventPrivateMessage:
			var evt proto.PrivateMessage
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			fmt.Printf("[%s] %s -> %s: %s\n", evt.ID, evt.Sender, evt.Recipient, evt.Content)
		case proto.EventMessageEdited:
			var evt proto.MessageEdited
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				log.Printf("unmarshal edit: %v", err)
				continue
			}
			fmt.Printf("[%s] edited: %s\n", evt.MessageID, evt.NewContent)
		case proto.EventMessageDeleted:
			var evt proto.MessageDeleted
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				log.Printf("unmarshal delete: %v", err)
				continue
			}
			fmt.Printf("[%s] deleted\n", evt.MessageID)
		default:
			fmt.Printf("event=%s data=%s\n", f.Event, f.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var recipient string
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			switch {
			case strings.HasPrefix(text, "/to "):
				to, body, _ := strings.Cut(strings.TrimPrefix(text, "/to "), " ")
				recipient = to
				err = send(ctx, conn, proto.InboundTypeSend, proto.SendData{RecipientID: to, Content: body})
			case strings.HasPrefix(text, "/edit "):
				id, body, _ := strings.Cut(strings.TrimPrefix(text, "/edit "), " ")
				err = send(ctx, conn, proto.InboundTypeEdit, proto.EditData{MessageID: id, NewContent: body})
			case strings.HasPrefix(text, "/delete "):
				err = send(ctx, conn, proto.InboundTypeDelete, proto.DeleteData{MessageID: strings.TrimPrefix(text, "/delete ")})
			case recipient == "":
				fmt.Println(usage)
				continue
			default:
				err = send(ctx, conn, proto.InboundTypeSend, proto.SendData{RecipientID: recipient, Content: text})
			}
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
