package core

import (
	"sort"
	"sync"
)

// Presence maps online identities to their single active connection.
// A reverse index keeps connection to identity lookups O(1).
// Both indexes are only updated together under the write lock.
type Presence struct {
	mu         sync.RWMutex
	byIdentity map[string]*Client
	byClient   map[*Client]string
}

// NewPresence creates an empty registry.
func NewPresence() *Presence {
	return &Presence{
		byIdentity: make(map[string]*Client),
		byClient:   make(map[*Client]string),
	}
}

// Register binds identity to c, superseding any earlier connection for identity.
// If c was bound to another identity, that binding is dropped.
func (p *Presence) Register(identity string, c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.byIdentity[identity]; ok && prev != c {
		delete(p.byClient, prev)
	}
	if old, ok := p.byClient[c]; ok && old != identity {
		delete(p.byIdentity, old)
	}

	p.byIdentity[identity] = c
	p.byClient[c] = identity
}

// Unregister removes the entry bound to c and reports which identity went offline.
// Unknown or superseded connections are a no-op.
func (p *Presence) Unregister(c *Client) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	identity, ok := p.byClient[c]
	if !ok {
		return "", false
	}
	delete(p.byClient, c)
	if p.byIdentity[identity] == c {
		delete(p.byIdentity, identity)
	}
	return identity, true
}

// Lookup returns the active connection for identity.
func (p *Presence) Lookup(identity string) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c, ok := p.byIdentity[identity]
	return c, ok
}

// IdentityOf returns the identity currently bound to c.
func (p *Presence) IdentityOf(c *Client) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	identity, ok := p.byClient[c]
	return identity, ok
}

// Snapshot returns all online identities in sorted order.
func (p *Presence) Snapshot() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	identities := make([]string, 0, len(p.byIdentity))
	for identity := range p.byIdentity {
		identities = append(identities, identity)
	}
	sort.Strings(identities)
	return identities
}

// Len returns the number of online identities.
func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byIdentity)
}
