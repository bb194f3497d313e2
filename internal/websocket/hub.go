package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"coefcalc/internal/config"
	"coefcalc/internal/infrastructure"
)

// Options tunes client keepalive
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// OptionsFromConfig converts the configured WebSocket settings
func OptionsFromConfig(cfg config.WebSocketConfig) Options {
	o := DefaultOptions()
	o.PongWait = cfg.PongWait
	o.PingPeriod = cfg.PingPeriod
	return o
}

// DefaultOptions returns the keepalive defaults
func DefaultOptions() Options {
	return Options{
		WriteWait:      config.WebSocketWriteWait,
		PongWait:       config.WebSocketPongWait,
		PingPeriod:     config.WebSocketPingPeriod,
		MaxMessageSize: 512,
		SendBuffer:     64,
	}
}

type envelope struct {
	calculationID string
	payload       []byte
	// target restricts delivery to one client
	target *Client
}

// Hub maintains the set of active clients and fans calculation progress out
// to them. The client set is only touched by the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client

	options Options
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	clientCount      atomic.Int64
	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger, options Options) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if options.SendBuffer <= 0 {
		options = DefaultOptions()
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		options:    options,
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in a goroutine. Calling it twice has no effect.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop closes every client and waits for the loop to exit
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.quit)
	h.mu.Unlock()

	<-h.done
}

func (h *Hub) isRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientCount.Store(0)
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.clientCount.Store(int64(len(h.clients)))
			h.totalConnections.Add(1)

			h.logger.InfoContext(client.context(), "Client registered",
				slog.Int("total_clients", len(h.clients)),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.deliver(client, h.encode(Message{
				Type:          TypeConnection,
				CalculationID: client.Subscription(),
				Data:          map[string]string{"status": "connected", "client_id": client.id},
				Timestamp:     time.Now().UTC(),
				TraceID:       client.traceID,
			}))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.clientCount.Store(int64(len(h.clients)))

				h.logger.InfoContext(client.context(), "Client unregistered",
					slog.Int("total_clients", len(h.clients)),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case env := <-h.broadcast:
			if env.target != nil {
				if h.clients[env.target] {
					h.deliver(env.target, env.payload)
				}
				continue
			}
			for client := range h.clients {
				if client.wants(env.calculationID) {
					h.deliver(client, env.payload)
				}
			}
		}
	}
}

// deliver queues payload on the client, dropping the client when its
// buffer is full. Only called from run.
func (h *Hub) deliver(client *Client, payload []byte) {
	if payload == nil {
		return
	}
	select {
	case client.send <- payload:
		h.messagesSent.Add(1)
	default:
		delete(h.clients, client)
		close(client.send)
		h.clientCount.Store(int64(len(h.clients)))
		h.messagesDropped.Add(1)
		h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) encode(msg Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("message_type", msg.Type),
			slog.String("error", err.Error()))
		return nil
	}
	return data
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Publish sends msg to every client subscribed to its calculation, and to
// clients without a subscription. It is a no-op when the hub is stopped.
func (h *Hub) Publish(ctx context.Context, msg Message) {
	h.publish(ctx, msg, nil)
}

func (h *Hub) publish(ctx context.Context, msg Message, target *Client) {
	if !h.isRunning() {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.TraceID == "" {
		msg.TraceID = infrastructure.GetTraceID(ctx)
	}

	payload := h.encode(msg)
	if payload == nil {
		return
	}

	select {
	case h.broadcast <- envelope{calculationID: msg.CalculationID, payload: payload, target: target}:
	case <-h.quit:
	case <-ctx.Done():
	}
}

// BroadcastProgress publishes one progress step of a calculation
func (h *Hub) BroadcastProgress(ctx context.Context, calculationID, stage string, progress int, message string) {
	h.Publish(ctx, Message{
		Type:          TypeProgress,
		CalculationID: calculationID,
		Data:          ProgressData{Stage: stage, Progress: progress, Message: message},
	})
}

// BroadcastError publishes a fatal calculation error
func (h *Hub) BroadcastError(ctx context.Context, calculationID, message string) {
	h.Publish(ctx, Message{
		Type:          TypeError,
		CalculationID: calculationID,
		Data:          map[string]string{"message": message},
	})
}

// BroadcastComplete publishes the end of a calculation with its summary
func (h *Hub) BroadcastComplete(ctx context.Context, calculationID string, summary any) {
	h.Publish(ctx, Message{
		Type:          TypeComplete,
		CalculationID: calculationID,
		Data:          summary,
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

// Stats returns hub counters for the health endpoint
func (h *Hub) Stats() map[string]int64 {
	return map[string]int64{
		"active_clients":    h.clientCount.Load(),
		"total_connections": h.totalConnections.Load(),
		"messages_sent":     h.messagesSent.Load(),
		"messages_dropped":  h.messagesDropped.Load(),
	}
}

// Reporter returns a progress sink bound to one calculation
func (h *Hub) Reporter(calculationID string) *Reporter {
	return &Reporter{hub: h, calculationID: calculationID}
}

// Reporter forwards calculation progress to the hub
type Reporter struct {
	hub           *Hub
	calculationID string
}

// Report publishes a progress message
func (r *Reporter) Report(ctx context.Context, stage string, percent int, message string) {
	r.hub.BroadcastProgress(ctx, r.calculationID, stage, percent, message)
}
