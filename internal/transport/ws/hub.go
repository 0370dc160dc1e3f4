package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgAdministrationCompleted MessageType = "administration_completed"
	MsgRunCompleted            MessageType = "run_completed"
	MsgError                   MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans run progress out to the operators watching each run
type Hub struct {
	// runID -> subscribers
	runConns map[string]map[*Connection]bool

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	closeRun   chan string

	logger *zap.Logger
}

// Connection represents a WebSocket connection watching one run
type Connection struct {
	RunID      string
	OperatorID string
	Send       chan []byte
	Hub        *Hub
}

// BroadcastMessage is a message for every subscriber of a run
type BroadcastMessage struct {
	RunID   string
	Message *Message
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		runConns:   make(map[string]map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
		closeRun:   make(chan string),
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.runConns[conn.RunID] == nil {
				h.runConns[conn.RunID] = make(map[*Connection]bool)
			}
			h.runConns[conn.RunID][conn] = true
			h.mu.Unlock()
			h.logger.Debug("run subscriber connected", zap.String("run_id", conn.RunID), zap.String("operator_id", conn.OperatorID))

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.runConns[conn.RunID]; ok && conns[conn] {
				delete(conns, conn)
				close(conn.Send)
				if len(conns) == 0 {
					delete(h.runConns, conn.RunID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)

		case runID := <-h.closeRun:
			h.drain()
			h.mu.Lock()
			for conn := range h.runConns[runID] {
				close(conn.Send)
			}
			delete(h.runConns, runID)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	data, err := json.Marshal(msg.Message)
	if err != nil {
		h.logger.Warn("ws message encode failed", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.runConns[msg.RunID] {
		select {
		case conn.Send <- data:
		default:
			// Drop message if buffer full
		}
	}
}

// drain delivers everything already queued
func (h *Hub) drain() {
	for {
		select {
		case msg := <-h.broadcast:
			h.deliver(msg)
		default:
			return
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Subscribers returns the number of connections watching a run
func (h *Hub) Subscribers(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runConns[runID])
}

// BroadcastToRun sends a message to every subscriber of a run (implements service.Broadcaster)
func (h *Hub) BroadcastToRun(runID string, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("ws payload encode failed", zap.String("type", msgType), zap.Error(err))
		return
	}
	h.broadcast <- &BroadcastMessage{
		RunID: runID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// CloseRun disconnects every subscriber of a finished run (implements service.Broadcaster).
// Messages already queued for the run are delivered first.
func (h *Hub) CloseRun(runID string) {
	h.closeRun <- runID
}
