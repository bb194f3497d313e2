package websocket

import "time"

// Message types sent to clients
const (
	TypeConnection = "connection"
	TypeProgress   = "progress"
	TypeComplete   = "complete"
	TypeError      = "error"
	TypeSubscribed = "subscribed"
)

// Message is the JSON envelope of every server push
type Message struct {
	Type          string    `json:"type"`
	CalculationID string    `json:"calculation_id,omitempty"`
	Data          any       `json:"data,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	TraceID       string    `json:"trace_id,omitempty"`
}

// ProgressData is the payload of a progress message
type ProgressData struct {
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// clientCommand is what a browser may send: {"type":"subscribe","calculation_id":"..."}
type clientCommand struct {
	Type          string `json:"type"`
	CalculationID string `json:"calculation_id"`
}
