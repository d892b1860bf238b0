// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package transport

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

type fakeChunk struct {
	data []byte
	err  error
}

// FakeLink is a scripted in-memory Link. Queued chunks are returned one per
// Read, followed by a single empty read, so ReadAvailable collects exactly
// one chunk per call. An empty queue reads as a timeout.
type FakeLink struct {
	mu       sync.Mutex
	queue    []fakeChunk
	boundary bool
	writes   [][]byte
	closed   bool
	resets   int
	timeout  time.Duration

	// Responder, when set, is called with every written command (trailing
	// CR/LF trimmed) and its replies are queued.
	Responder func(cmd string) []string

	// Stream, when set, is consulted when the queue is empty; a non-empty
	// result is returned as the next chunk.
	Stream func() string

	// ReadLatency delays every Read that returns data.
	ReadLatency time.Duration

	WriteErr error
	CloseErr error
	ResetErr error
}

// NewFakeLink returns a FakeLink with the given replies queued
func NewFakeLink(replies ...string) *FakeLink {
	f := &FakeLink{}
	f.Queue(replies...)
	return f
}

// Queue appends replies to the read queue. An empty string queues an empty read.
func (f *FakeLink) Queue(replies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range replies {
		f.queue = append(f.queue, fakeChunk{data: []byte(r)})
	}
}

// QueueError makes a future Read fail with err
func (f *FakeLink) QueueError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeChunk{err: err})
}

// Pending returns the number of queued chunks not yet read
func (f *FakeLink) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

func (f *FakeLink) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, &TransportError{Op: "read", Err: ErrConnectionClosed}
	}
	if f.boundary {
		f.boundary = false
		f.mu.Unlock()
		return 0, nil
	}
	if len(f.queue) == 0 && f.Stream != nil {
		if s := f.Stream(); s != "" {
			f.queue = append(f.queue, fakeChunk{data: []byte(s)})
		}
	}
	if len(f.queue) == 0 {
		f.mu.Unlock()
		return 0, nil
	}

	chunk := f.queue[0]
	if chunk.err != nil {
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return 0, chunk.err
	}

	n := copy(p, chunk.data)
	if n < len(chunk.data) {
		f.queue[0].data = chunk.data[n:]
	} else {
		f.queue = f.queue[1:]
		f.boundary = n > 0
	}
	latency := f.ReadLatency
	f.mu.Unlock()

	if latency > 0 && n > 0 {
		time.Sleep(latency)
	}
	return n, nil
}

func (f *FakeLink) Write(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, &TransportError{Op: "write", Err: ErrConnectionClosed}
	}
	if f.WriteErr != nil {
		err := f.WriteErr
		f.mu.Unlock()
		return 0, err
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	responder := f.Responder
	f.mu.Unlock()

	if responder != nil {
		f.Queue(responder(strings.TrimRight(string(p), "\r\n"))...)
	}
	return len(p), nil
}

func (f *FakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.CloseErr
}

func (f *FakeLink) SetReadTimeout(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = timeout
	return nil
}

// ResetInputBuffer only counts calls; queued replies model bytes that
// arrive after the reset.
func (f *FakeLink) ResetInputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.ResetErr
}

// Writes returns a copy of every write in order
func (f *FakeLink) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	for i, w := range f.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// WrittenCommands returns every write as a string with CR/LF trimmed
func (f *FakeLink) WrittenCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(bytes.TrimRight(w, "\r\n"))
	}
	return out
}

// Resets returns how many times ResetInputBuffer was called
func (f *FakeLink) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

// Closed reports whether Close was called
func (f *FakeLink) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// ReadTimeout returns the last timeout passed to SetReadTimeout
func (f *FakeLink) ReadTimeout() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeout
}
