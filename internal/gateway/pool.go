package gateway

import (
	"strings"
	"sync"
)

// Pool reuses one Client per gateway URL, so executors built for the same
// gateway share connections.
type Pool struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{clients: make(map[string]*Client)}
}

// GetOrCreate returns the client for cfg.URL, creating it from cfg on first
// use. Later calls for the same URL ignore the rest of cfg.
func (p *Pool) GetOrCreate(cfg ClientConfig) *Client {
	key := strings.TrimRight(cfg.URL, "/")

	p.mu.RLock()
	if client, ok := p.clients[key]; ok {
		p.mu.RUnlock()
		return client
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check: another goroutine may have created it while we waited.
	if client, ok := p.clients[key]; ok {
		return client
	}
	client := NewClient(cfg)
	p.clients[key] = client
	return client
}

// Len returns the number of pooled clients.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

// Clear drops every pooled client.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients = make(map[string]*Client)
}
