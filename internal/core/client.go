package core

import "sync"

// DefaultEventBuffer is the Events capacity used when none is configured.
const DefaultEventBuffer = 64

// Client is one live connection as seen by the core layer.
// The transport owns the socket; the core only keeps this handle.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	quit      chan struct{}
	closeOnce sync.Once
	drained   chan struct{}

	// gone is set once the hub has dropped the client; guarded by Hub.lifecycle.
	gone bool
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, eventBuffer int) *Client {
	if eventBuffer <= 0 {
		eventBuffer = DefaultEventBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, eventBuffer),
		quit:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
}

// Done is closed once the client has been unregistered from the hub.
func (c *Client) Done() <-chan struct{} {
	return c.quit
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

func (c *Client) closed() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}
