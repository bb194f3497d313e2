package websocket

import (
	"errors"
	"sync"
	"time"
)

// mockConnection records writes and replays queued reads
type mockConnection struct {
	mu sync.Mutex

	written []mockMessage
	reads   []mockMessage
	closed  bool

	readDeadline time.Time
	readLimit    int64
	pongHandler  func(string) error
}

type mockMessage struct {
	Type int
	Data []byte
	Err  error
}

func newMockConnection() *mockConnection {
	return &mockConnection{}
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("connection closed")
	}
	m.written = append(m.written, mockMessage{Type: messageType, Data: data})
	return nil
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || len(m.reads) == 0 {
		return 0, nil, errors.New("no more messages")
	}
	msg := m.reads[0]
	m.reads = m.reads[1:]
	return msg.Type, msg.Data, msg.Err
}

func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConnection) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDeadline = t
	return nil
}

func (m *mockConnection) SetWriteDeadline(time.Time) error {
	return nil
}

func (m *mockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readLimit = limit
}

func (m *mockConnection) SetPongHandler(h func(string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pongHandler = h
}

func (m *mockConnection) RemoteAddr() string {
	return "127.0.0.1:9999"
}

func (m *mockConnection) addRead(messageType int, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, mockMessage{Type: messageType, Data: data})
}

func (m *mockConnection) writtenMessages() []mockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockMessage, len(m.written))
	copy(out, m.written)
	return out
}

func (m *mockConnection) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
