package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorchat/internal/auth"
	"github.com/vovakirdan/mentorchat/internal/config"
	"github.com/vovakirdan/mentorchat/internal/core"
	"github.com/vovakirdan/mentorchat/internal/history"
	"github.com/vovakirdan/mentorchat/internal/proto"
	"github.com/vovakirdan/mentorchat/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	ts    *httptest.Server
	store *sqlite.SQLiteStore
	auth  *auth.Service
}

// frame is an outbound message with the payload left undecoded.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.JWT.Secret = testSecret
	cfg.JWT.Issuer = "test"
	cfg.JWT.Audience = "test"
	return cfg
}

// startTestServer runs the full stack over an in-memory store.
func startTestServer(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if _, err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}

	disabledLogger := zerolog.Nop()

	hub := core.NewHub(st, &disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      time.Hour,
	}, cfg.JWT.Required)
	hist := history.NewService(st, cfg.HistoryMaxLimit)

	server := NewServer(hub, hist, authService, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService}
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func (e *testEnv) token(t *testing.T, identity string) string {
	t.Helper()

	token, err := e.auth.IssueToken(identity)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) frame {
	t.Helper()

	var f frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// readEvent skips frames until an event with the given name arrives and decodes its payload.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, name string, out any) {
	t.Helper()

	for {
		f := readFrame(t, ctx, conn)
		if f.Type != proto.OutboundTypeEvent || f.Event != name {
			continue
		}
		if err := json.Unmarshal(f.Data, out); err != nil {
			t.Fatalf("unmarshal %s: %v", name, err)
		}
		return
	}
}

// readError skips event frames until an error frame arrives.
func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()

	for {
		f := readFrame(t, ctx, conn)
		if f.Type == proto.OutboundTypeError {
			if f.Error == nil {
				t.Fatal("error frame without error body")
			}
			return f.Error
		}
	}
}

// waitPresence reads presence updates until one contains exactly want.
func waitPresence(t *testing.T, ctx context.Context, conn *websocket.Conn, want ...string) {
	t.Helper()

	for {
		var p proto.PresenceUpdated
		readEvent(t, ctx, conn, proto.EventPresenceUpdated, &p)
		if strings.Join(p.Identities, ",") == strings.Join(want, ",") {
			return
		}
	}
}

// announce binds identity to conn and waits until the server has published it.
func announce(t *testing.T, ctx context.Context, conn *websocket.Conn, identity string, online ...string) {
	t.Helper()

	send(t, ctx, conn, proto.InboundTypeAnnounce, proto.AnnounceData{Identity: identity})
	waitPresence(t, ctx, conn, online...)
}
