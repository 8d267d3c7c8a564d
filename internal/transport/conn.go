// Package transport supplies the one concrete framing the core commits
// to: a bidirectional JSON message channel per connection. §1 treats
// this channel as an assumption of the core; this package is where
// that assumption becomes a real websocket.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned by Send once a connection has been closed.
var ErrConnClosed = errors.New("transport: connection closed")

// Conn is a bidirectional message channel to one remote participant.
// Implementations must make Send safe for concurrent callers; a
// dispatcher's turn timer and its message-handling loop can both write
// to the same connection.
type Conn interface {
	Send(v interface{}) error
	ReadMessage() (json.RawMessage, error)
	Close() error
	RemoteID() string
}

// WSConn wraps a gorilla/websocket connection, serializing concurrent
// writes with a mutex (the library forbids concurrent WriteMessage
// calls on the same connection).
type WSConn struct {
	id string
	ws *websocket.Conn

	writeMu sync.Mutex
	closed  bool
}

// NewWSConn wraps an already-upgraded websocket connection.
func NewWSConn(id string, ws *websocket.Conn) *WSConn {
	return &WSConn{id: id, ws: ws}
}

func (c *WSConn) RemoteID() string { return c.id }

func (c *WSConn) Send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.ws.WriteJSON(v)
}

func (c *WSConn) ReadMessage() (json.RawMessage, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (c *WSConn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

// Upgrader mirrors the teacher's package-level websocket.Upgrader,
// permissive by default since origin policy is an operator concern.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
