package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"barberbook/internal/notification"
)

// ErrOffline: the recipient has no live connection. Callers treat delivery
// as best-effort and log.
var ErrOffline = errors.New("user not connected")

type controlDTO struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// outFrame is the wire shape of everything the engine pushes to a client.
type outFrame struct {
	Type     string       `json:"type"` // "message" or "edit"
	Ref      string       `json:"ref"`
	Text     string       `json:"text"`
	Controls []controlDTO `json:"controls,omitempty"`
}

// inFrame is what a client sends: free text, or the opaque data of a pressed
// control.
type inFrame struct {
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"`
}

// Hub tracks live connections per user and implements the engine's outbound
// notification port. Message refs are uuids; the ref-to-user index is what
// lets a later Edit find its connection.
type Hub struct {
	mutex       sync.RWMutex
	connections map[int64]*websocket.Conn
	refs        map[notification.MessageRef]int64
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[int64]*websocket.Conn),
		refs:        make(map[notification.MessageRef]int64),
	}
}

func (h *Hub) Register(userID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if old, exists := h.connections[userID]; exists && old != nil {
		_ = old.Close()
	}
	h.connections[userID] = conn
}

func (h *Hub) Unregister(userID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// Only drop the mapping if it still points at this connection; a
	// reconnect may already have replaced it.
	if cur, exists := h.connections[userID]; exists && cur == conn {
		_ = cur.Close()
		delete(h.connections, userID)
	}
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// Render pushes a fresh message and returns its handle.
func (h *Hub) Render(ctx context.Context, userID int64, text string, controls []notification.Control) (notification.MessageRef, error) {
	ref := notification.MessageRef(uuid.NewString())
	frame := outFrame{Type: "message", Ref: string(ref), Text: text, Controls: toControlDTOs(controls)}
	if err := h.send(userID, frame); err != nil {
		return "", err
	}
	h.mutex.Lock()
	h.refs[ref] = userID
	h.mutex.Unlock()
	return ref, nil
}

// Edit rewrites a previously rendered message in place. An unknown ref (user
// reconnected and lost history, process restarted) is an error the caller
// logs and swallows.
func (h *Hub) Edit(ctx context.Context, ref notification.MessageRef, text string, controls []notification.Control) error {
	h.mutex.RLock()
	userID, ok := h.refs[ref]
	h.mutex.RUnlock()
	if !ok {
		return errors.New("unknown message ref")
	}
	return h.send(userID, outFrame{Type: "edit", Ref: string(ref), Text: text, Controls: toControlDTOs(controls)})
}

func (h *Hub) send(userID int64, frame outFrame) error {
	h.mutex.RLock()
	conn, exists := h.connections[userID]
	h.mutex.RUnlock()

	if !exists || conn == nil {
		return ErrOffline
	}
	if err := conn.WriteJSON(frame); err != nil {
		h.Unregister(userID, conn)
		return err
	}
	return nil
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, conn := range h.connections {
		if conn != nil {
			_ = conn.Close()
		}
		delete(h.connections, userID)
	}
}

func toControlDTOs(controls []notification.Control) []controlDTO {
	if len(controls) == 0 {
		return nil
	}
	out := make([]controlDTO, len(controls))
	for i, c := range controls {
		out[i] = controlDTO{Label: c.Label, Data: c.Data}
	}
	return out
}
