// Package clienttransport dials the server's WebSocket endpoint from the
// client side — the teacher's websocket package only ever accepts
// connections, so this dial-role counterpart is grounded on the same
// gorilla/websocket primitives used by internal/transport, run in the
// opposite direction (spec.md §6.1 "Transport").
package clienttransport

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a dialed WebSocket connection with the binary
// framed-message send/receive surface the client connection state
// machine needs.
type Conn struct {
	ws *websocket.Conn
}

// Dial connects to serverURL (e.g. "ws://host:port/data") within timeout.
func Dial(ctx context.Context, serverURL string, timeout time.Duration) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("clienttransport: dial: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// Send writes one binary frame.
func (c *Conn) Send(payload []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, payload)
}

// Receive blocks for the next binary frame, ignoring control frames.
func (c *Conn) Receive() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
