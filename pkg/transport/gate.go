// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package transport

import "sync"

// Gate is the single serialized access point to a Link. Every write/read
// sequence that belongs together runs inside one Exchange, so a background
// worker and a caller never interleave bytes on the same device.
type Gate struct {
	mu     sync.Mutex
	link   Link
	closed bool
}

// NewGate wraps link
func NewGate(link Link) *Gate {
	return &Gate{link: link}
}

// Exchange runs fn with exclusive access to the link
func (g *Gate) Exchange(fn func(Link) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return &TransportError{Op: "exchange", Err: ErrConnectionClosed}
	}
	return fn(g.link)
}

// Close closes the underlying link once. Later exchanges fail with
// ErrConnectionClosed.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return wrapErr("close", g.link.Close())
}

// Closed reports whether Close was called
func (g *Gate) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
