package tone

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrNoOutput is returned when attaching to a session that has no websocket output
var ErrNoOutput = errors.New("no websocket output for session")

// WebSocketHub owns one WebSocketOutput per session so browser listeners can
// find the output their session plays through.
type WebSocketHub struct {
	mu      sync.Mutex
	outputs map[uuid.UUID]*WebSocketOutput
}

// NewWebSocketHub creates an empty hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{outputs: make(map[uuid.UUID]*WebSocketOutput)}
}

// Open creates the output for sessionID. The output leaves the hub when it
// is closed.
func (h *WebSocketHub) Open(sessionID uuid.UUID) (Output, error) {
	out := NewWebSocketOutput()
	out.onClose = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.outputs[sessionID] == out {
			delete(h.outputs, sessionID)
		}
	}

	h.mu.Lock()
	h.outputs[sessionID] = out
	h.mu.Unlock()
	return out, nil
}

// Attach connects a listener to the session's output
func (h *WebSocketHub) Attach(sessionID uuid.UUID, conn *websocket.Conn) error {
	h.mu.Lock()
	out, ok := h.outputs[sessionID]
	h.mu.Unlock()
	if !ok {
		return ErrNoOutput
	}
	return out.Attach(conn)
}

// Detach disconnects conn if it is still the session's listener
func (h *WebSocketHub) Detach(sessionID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	out, ok := h.outputs[sessionID]
	h.mu.Unlock()
	if ok {
		out.Detach(conn)
	}
}

// Count returns the number of open outputs
func (h *WebSocketHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.outputs)
}
