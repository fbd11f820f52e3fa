package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorchat/internal/store"
)

// Hub tracks connected clients, their announced identities and routes
// private messages between them.
//
// Every attached client gets its own command pump, so commands from one
// connection are handled in order while different connections proceed
// concurrently. Presence transitions are serialized so that presence
// broadcasts reach clients in the order the registry changed.
type Hub struct {
	presence *Presence
	store    store.MessageStore
	log      *zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	clients map[*Client]struct{}

	lifecycle sync.Mutex

	register chan *Client
	done     chan struct{}
	stopOnce sync.Once
	pumps    sync.WaitGroup
}

// NewHub creates a hub persisting messages into st.
func NewHub(st store.MessageStore, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		presence: NewPresence(),
		store:    st,
		log:      logger,
		now:      time.Now,
		clients:  make(map[*Client]struct{}),
		register: make(chan *Client),
		done:     make(chan struct{}),
	}
}

// Run attaches registered clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Int("online", h.presence.Len()).Msg("hub stopping")
			return
		case c := <-h.register:
			h.attach(ctx, c)
		}
	}
}

// RegisterClient attaches a freshly connected, still anonymous client.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient handles a transport-level disconnection of c.
// The caller must have stopped sending commands; those already queued are
// handled before the identity goes offline.
// Safe to call more than once and for clients that never announced.
func (h *Hub) UnregisterClient(c *Client) {
	c.close()

	h.mu.RLock()
	_, attached := h.clients[c]
	h.mu.RUnlock()
	if attached {
		<-c.drained
	}

	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	c.gone = true

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	identity, ok := h.presence.Unregister(c)
	if !ok {
		h.log.Debug().Str("client_id", c.ID).Msg("client disconnected without identity")
		return
	}

	h.log.Info().Str("client_id", c.ID).Str("identity", identity).Msg("identity offline")
	h.broadcastPresence()
}

// Announce binds identity to c and broadcasts the new presence set to everyone.
func (h *Hub) Announce(c *Client, identity string) {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	if c.gone {
		return
	}

	h.presence.Register(identity, c)
	h.log.Info().Str("client_id", c.ID).Str("identity", identity).Msg("identity online")
	h.broadcastPresence()
}

// Online returns the identities currently online.
func (h *Hub) Online() []string {
	return h.presence.Snapshot()
}

func (h *Hub) attach(ctx context.Context, c *Client) {
	h.mu.Lock()
	if c.closed() {
		h.mu.Unlock()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug().Str("client_id", c.ID).Msg("client attached")

	h.pumps.Add(1)
	go func() {
		defer h.pumps.Done()
		h.serve(ctx, c)
	}()
}

func (h *Hub) serve(ctx context.Context, c *Client) {
	defer close(c.drained)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.quit:
			h.drain(ctx, c)
			return
		case cmd := <-c.Commands:
			if cmd != nil {
				h.handle(ctx, c, cmd)
			}
		}
	}
}

// drain handles the commands c queued before it went away.
func (h *Hub) drain(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd != nil {
				h.handle(ctx, c, cmd)
			}
		default:
			return
		}
	}
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandAnnounce:
		h.Announce(c, cmd.Identity)
	case CommandSendPrivateMessage:
		h.SendPrivateMessage(ctx, c, cmd.Recipient, cmd.Content)
	case CommandEditMessage:
		h.EditMessage(ctx, c, cmd.MessageID, cmd.Content)
	case CommandDeleteMessage:
		h.DeleteMessage(ctx, c, cmd.MessageID)
	default:
		h.log.Warn().Str("client_id", c.ID).Int("kind", int(cmd.Kind)).Msg("unknown command")
	}
}

// broadcastPresence must be called with the lifecycle lock held.
func (h *Hub) broadcastPresence() {
	ev := &Event{Kind: EventPresence, Identities: h.presence.Snapshot()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		h.deliver(c, ev)
	}
}

// deliver pushes ev without blocking; a full buffer drops the event for that client only.
func (h *Hub) deliver(c *Client, ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		h.log.Warn().Str("client_id", c.ID).Int("kind", int(ev.Kind)).Msg("slow consumer, event dropped")
		return false
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	h.pumps.Wait()
}
