package websocket

import (
	"github.com/gorilla/websocket"
)

// connWrapper adapts *websocket.Conn to Connection
type connWrapper struct {
	*websocket.Conn
}

// NewConnectionWrapper wraps a gorilla connection
func NewConnectionWrapper(conn *websocket.Conn) Connection {
	return &connWrapper{Conn: conn}
}

// RemoteAddr returns the peer address as a string
func (c *connWrapper) RemoteAddr() string {
	if c.Conn == nil {
		return ""
	}
	return c.Conn.RemoteAddr().String()
}
