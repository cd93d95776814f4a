// Package toolpool owns the long-lived sessions to server-backed tools.
// Clients are established lazily on first use, cached per tool id, and
// released exactly once during orderly shutdown.
package toolpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/conduitchat/conduit/internal/domain"
)

// Pool caches at most one live client per tool identifier. The cache is the
// only resource shared across concurrent turns; the guarded read-check-
// create below ensures two concurrent first-uses of the same tool never
// open two connections.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry
	dial    DialFunc
}

// entry serializes dialing per tool id so a slow connection to one tool
// server never blocks clients of another.
type entry struct {
	mu     sync.Mutex
	client Client
}

// NewPool builds a pool using the given dialer; a nil dialer selects the
// MCP dialer.
func NewPool(dial DialFunc) *Pool {
	if dial == nil {
		dial = DialMCP
	}
	return &Pool{
		entries: make(map[string]*entry),
		dial:    dial,
	}
}

// Get returns the cached client for the tool, dialing on first use. Dial
// failures are returned to the caller and not cached, so the next call
// retries.
func (p *Pool) Get(ctx context.Context, tool domain.Tool) (Client, error) {
	if tool.Kind != domain.ToolKindServer {
		return nil, fmt.Errorf("tool %q is not server-backed", tool.ID)
	}

	p.mu.Lock()
	e, ok := p.entries[tool.ID]
	if !ok {
		e = &entry{}
		p.entries[tool.ID] = e
	}
	p.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		return e.client, nil
	}

	client, err := p.dial(ctx, tool)
	if err != nil {
		return nil, fmt.Errorf("connecting to tool server %q: %w", tool.ID, err)
	}

	log.Info().Str("tool", tool.ID).Msg("established tool server session")
	e.client = client

	return client, nil
}

// CloseAll tears down every cached client and clears the cache. A close
// failure on one client does not prevent closing the rest. Safe to call
// repeatedly; with an empty cache it is a no-op.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*entry)
	p.mu.Unlock()

	for id, e := range entries {
		e.mu.Lock()
		client := e.client
		e.client = nil
		e.mu.Unlock()

		if client == nil {
			continue
		}
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Str("tool", id).Msg("closing tool server session")
			continue
		}
		log.Debug().Str("tool", id).Msg("closed tool server session")
	}
}
