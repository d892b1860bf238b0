// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketLink carries the device byte stream over a WebSocket bridge.
// Messages are pumped by a background reader so a read timeout never
// poisons the underlying connection.
type WebSocketLink struct {
	conn     *websocket.Conn
	messages chan []byte
	done     chan struct{}

	mu        sync.Mutex
	buf       []byte
	timeout   time.Duration
	readErr   error
	closeOnce sync.Once
}

// OpenWebSocket opens a WebSocket link with optional HTTP Basic auth
func OpenWebSocket(wsURL, username, password string, skipSSLVerify bool) (*WebSocketLink, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("invalid URL: %w", err)}
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, &TransportError{Op: "open", Err: fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)}
		}
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("websocket connection failed: %w", err)}
	}

	return newWebSocketLink(conn), nil
}

func newWebSocketLink(conn *websocket.Conn) *WebSocketLink {
	w := &WebSocketLink{
		conn:     conn,
		messages: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	go w.pump()
	return w
}

func (w *WebSocketLink) pump() {
	defer close(w.messages)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.readErr = err
			w.mu.Unlock()
			return
		}
		// The sensor bridge may relay text frames; both carry raw bytes.
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}
		select {
		case w.messages <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketLink) Read(p []byte) (int, error) {
	w.mu.Lock()
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		w.mu.Unlock()
		return n, nil
	}
	timeout := w.timeout
	w.mu.Unlock()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case data, ok := <-w.messages:
		if !ok {
			return 0, w.closedErr()
		}
		n := copy(p, data)
		if n < len(data) {
			w.mu.Lock()
			w.buf = append(w.buf, data[n:]...)
			w.mu.Unlock()
		}
		return n, nil
	case <-timer:
		return 0, nil
	case <-w.done:
		return 0, &TransportError{Op: "read", Err: ErrConnectionClosed}
	}
}

func (w *WebSocketLink) closedErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.readErr != nil {
		return &TransportError{Op: "read", Err: fmt.Errorf("%w: %v", ErrConnectionClosed, w.readErr)}
	}
	return &TransportError{Op: "read", Err: ErrConnectionClosed}
}

func (w *WebSocketLink) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, wrapErr("write", err)
	}
	return len(p), nil
}

// SetReadTimeout bounds each Read. Zero or negative blocks until data arrives.
func (w *WebSocketLink) SetReadTimeout(timeout time.Duration) error {
	w.mu.Lock()
	w.timeout = timeout
	w.mu.Unlock()
	return nil
}

// ResetInputBuffer drops buffered bytes and any messages already received.
func (w *WebSocketLink) ResetInputBuffer() error {
	w.mu.Lock()
	w.buf = nil
	w.mu.Unlock()
	for {
		select {
		case _, ok := <-w.messages:
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}
}

func (w *WebSocketLink) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = wrapErr("close", w.conn.Close())
	})
	return err
}
