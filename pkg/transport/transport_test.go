// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package transport

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptionsNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"lidar preset", LidarPortOptions(), PortOptions{BaudRate: 19200, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"framing defaults", PortOptions{BaudRate: 115200}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"lower case parity", PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: " e "}, PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}, false},
		{"missing baud", PortOptions{}, PortOptions{}, true},
		{"bad data bits", PortOptions{BaudRate: 9600, DataBits: 5}, PortOptions{}, true},
		{"bad stop bits", PortOptions{BaudRate: 9600, StopBits: 3}, PortOptions{}, true},
		{"parity word", PortOptions{BaudRate: 9600, Parity: "even"}, PortOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := LidarPortOptions().SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 19200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)

	mode, err = PortOptions{BaudRate: 115200, StopBits: 2, Parity: "E"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)

	assert.Equal(t, "115200 8N1", DeflectorPortOptions().String())
}

func TestReadAvailableOneChunkPerCall(t *testing.T) {
	link := NewFakeLink("D: 1.234m,100\r\n", "D: 2.345m,90\r\n")

	got, err := ReadAvailable(link, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "D: 1.234m,100\r\n", got)
	assert.Equal(t, 50*time.Millisecond, link.ReadTimeout())

	got, err = ReadAvailable(link, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "D: 2.345m,90\r\n", got)

	got, err = ReadAvailable(link, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadAvailableLongChunk(t *testing.T) {
	long := strings.Repeat("x", 700)
	link := NewFakeLink(long)

	got, err := ReadAvailable(link, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, long, got)
}

func TestReadAvailableError(t *testing.T) {
	link := NewFakeLink()
	boom := errors.New("device unplugged")
	link.QueueError(boom)

	_, err := ReadAvailable(link, time.Millisecond)
	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "read", te.Op)
	assert.ErrorIs(t, err, boom)
}

func TestReadAvailableEOFWithData(t *testing.T) {
	link := NewFakeLink("V: 1.0")
	link.QueueError(io.EOF)
	// boundary read ends the first call before EOF is seen
	got, err := ReadAvailable(link, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "V: 1.0", got)
}

func TestGateClose(t *testing.T) {
	link := NewFakeLink()
	gate := NewGate(link)

	err := gate.Exchange(func(l Link) error {
		_, err := l.Write([]byte("S\r\n"))
		return err
	})
	require.NoError(t, err)

	require.NoError(t, gate.Close())
	require.NoError(t, gate.Close())
	assert.True(t, gate.Closed())
	assert.True(t, link.Closed())

	err = gate.Exchange(func(Link) error { return nil })
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.Equal(t, []string{"S"}, link.WrittenCommands())
}

func TestFakeLinkResponder(t *testing.T) {
	link := NewFakeLink()
	link.Responder = func(cmd string) []string {
		if cmd == "O" {
			return []string{"O,OK!\r\n"}
		}
		return nil
	}

	_, err := link.Write([]byte("O\r\n"))
	require.NoError(t, err)
	got, err := ReadAvailable(link, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "O,OK!\r\n", got)

	require.NoError(t, link.ResetInputBuffer())
	assert.Equal(t, 1, link.Resets())
}

func newEchoServer(t *testing.T, greeting string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if greeting != "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(greeting))
		}
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func TestWebSocketLinkEcho(t *testing.T) {
	srv := newEchoServer(t, "")
	defer srv.Close()

	link, err := OpenWebSocket("ws"+strings.TrimPrefix(srv.URL, "http"), "", "", false)
	require.NoError(t, err)
	defer link.Close()

	_, err = link.Write([]byte("S\r\n"))
	require.NoError(t, err)

	got, err := ReadAvailable(link, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "S\r\n", got)
}

func TestWebSocketLinkTimeoutAndReset(t *testing.T) {
	srv := newEchoServer(t, "stale")
	defer srv.Close()

	link, err := OpenWebSocket("ws"+strings.TrimPrefix(srv.URL, "http"), "", "", false)
	require.NoError(t, err)
	defer link.Close()

	require.Eventually(t, func() bool { return len(link.messages) > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, link.ResetInputBuffer())

	got, err := ReadAvailable(link, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)

	// a timed out read leaves the link usable
	_, err = link.Write([]byte("V\r\n"))
	require.NoError(t, err)
	got, err = ReadAvailable(link, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "V\r\n", got)
}

func TestOpenWebSocketRejectsScheme(t *testing.T) {
	_, err := OpenWebSocket("http://localhost:1", "", "", false)
	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "open", te.Op)
}
