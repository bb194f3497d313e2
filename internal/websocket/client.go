package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"coefcalc/internal/infrastructure"
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id           string
	traceID      string
	remoteAddr   string
	connectedAt  time.Time
	subscription atomic.Value

	logger *slog.Logger
}

// NewClient creates a client. calculationID, when set, limits the client to
// messages of that calculation.
func NewClient(hub *Hub, conn Connection, calculationID, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	id := uuid.New().String()
	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, hub.options.SendBuffer),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
		),
	}
	c.subscription.Store(calculationID)
	return c
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

// Subscription returns the calculation the client follows, or ""
func (c *Client) Subscription() string {
	return c.subscription.Load().(string)
}

func (c *Client) wants(calculationID string) bool {
	sub := c.Subscription()
	return sub == "" || calculationID == "" || sub == calculationID
}

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ReadPump reads client commands until the connection fails, then
// unregisters the client
func (c *Client) ReadPump() {
	opts := c.hub.options
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WarnContext(c.context(), "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			return
		}
		c.handleCommand(bytes.TrimSpace(message))
	}
}

func (c *Client) handleCommand(message []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.logger.DebugContext(c.context(), "Ignoring malformed client message")
		return
	}

	switch cmd.Type {
	case "heartbeat":
	case "subscribe":
		c.subscription.Store(cmd.CalculationID)
		c.logger.DebugContext(c.context(), "Client subscribed",
			slog.String("calculation_id", cmd.CalculationID))
		c.hub.publish(c.context(), Message{Type: TypeSubscribed, CalculationID: cmd.CalculationID}, c)
	default:
		c.logger.DebugContext(c.context(), "Unknown client message", slog.String("type", cmd.Type))
	}
}

// WritePump drains the send channel and keeps the connection alive with
// pings
func (c *Client) WritePump() {
	opts := c.hub.options
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.DebugContext(c.context(), "Error writing message to WebSocket",
					slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS registers an upgraded connection and starts its pumps
func ServeWS(hub *Hub, conn *websocket.Conn, calculationID, traceID string, logger *slog.Logger) *Client {
	client := NewClient(hub, NewConnectionWrapper(conn), calculationID, traceID, logger)
	hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return client
}
