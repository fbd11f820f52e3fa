package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresenceRegisterAndLookup(t *testing.T) {
	req := require.New(t)
	p := NewPresence()
	a := NewClient("a", 0)
	b := NewClient("b", 0)

	p.Register("u2", b)
	p.Register("u1", a)

	got, ok := p.Lookup("u1")
	req.True(ok)
	req.Same(a, got)

	identity, ok := p.IdentityOf(b)
	req.True(ok)
	req.Equal("u2", identity)

	req.Equal([]string{"u1", "u2"}, p.Snapshot())
	req.Equal(2, p.Len())

	_, ok = p.Lookup("u3")
	req.False(ok)
}

func TestPresenceSupersede(t *testing.T) {
	req := require.New(t)
	p := NewPresence()
	first := NewClient("first", 0)
	second := NewClient("second", 0)

	p.Register("u1", first)
	p.Register("u1", second)

	got, _ := p.Lookup("u1")
	req.Same(second, got)

	_, ok := p.IdentityOf(first)
	req.False(ok)

	_, ok = p.Unregister(first)
	req.False(ok)
	req.Equal([]string{"u1"}, p.Snapshot())

	identity, ok := p.Unregister(second)
	req.True(ok)
	req.Equal("u1", identity)
	req.Empty(p.Snapshot())
}

func TestPresenceRebindConnection(t *testing.T) {
	req := require.New(t)
	p := NewPresence()
	c := NewClient("c", 0)

	p.Register("u1", c)
	p.Register("u2", c)

	_, ok := p.Lookup("u1")
	req.False(ok)
	identity, _ := p.IdentityOf(c)
	req.Equal("u2", identity)
	req.Equal(1, p.Len())
}

func TestPresenceUnregisterUnknown(t *testing.T) {
	p := NewPresence()

	identity, ok := p.Unregister(NewClient("x", 0))
	require.False(t, ok)
	require.Empty(t, identity)
}

func TestPresenceConcurrentAccess(t *testing.T) {
	p := NewPresence()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClient(fmt.Sprintf("c%d", i), 0)
			identity := fmt.Sprintf("u%d", i)
			p.Register(identity, c)
			_, _ = p.Lookup(identity)
			_ = p.Snapshot()
			if i%2 == 0 {
				p.Unregister(c)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 25, p.Len())
}
