package plot

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/raykavin/backreplay/pkg/logger"
)

// Message represents a message sent over the WebSocket channel
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WebSocketManager pushes incremental chart updates to connected browsers
type WebSocketManager struct {
	sync.RWMutex
	clients       map[*websocket.Conn]struct{}
	upgrader      websocket.Upgrader
	broadcastChan chan Message
	log           logger.Logger
}

// NewWebSocketManager creates a manager and starts its broadcast loop
func NewWebSocketManager(log logger.Logger) *WebSocketManager {
	manager := &WebSocketManager{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcastChan: make(chan Message, 100),
		log:           log,
	}

	go manager.handleBroadcasts()

	return manager
}

// Broadcast queues a message for every connected client. Non-blocking: when
// the queue is full the message is dropped, the next full data push will
// resynchronize clients.
func (m *WebSocketManager) Broadcast(msg Message) {
	select {
	case m.broadcastChan <- msg:
	default:
		m.log.Warn("websocket broadcast queue full, dropping message")
	}
}

// handleBroadcasts fans queued messages out to connected clients
func (m *WebSocketManager) handleBroadcasts() {
	for msg := range m.broadcastChan {
		m.RLock()
		for conn := range m.clients {
			if err := m.writeJSON(conn, msg); err != nil {
				m.log.WithError(err).Error("failed to send websocket message")
			}
		}
		m.RUnlock()
	}
}

func (m *WebSocketManager) writeJSON(conn *websocket.Conn, msg Message) error {
	return conn.WriteJSON(msg)
}

// HandleWebSocket upgrades an HTTP connection and registers the client
func (m *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.WithError(err).Error("failed to upgrade connection to websocket")
		return
	}

	m.Lock()
	m.clients[conn] = struct{}{}
	count := len(m.clients)
	m.Unlock()

	m.log.Infof("websocket client connected (%d total)", count)

	// Drain the read side; a read error means the client is gone
	go func() {
		defer m.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *WebSocketManager) removeClient(conn *websocket.Conn) {
	m.Lock()
	delete(m.clients, conn)
	m.Unlock()
	conn.Close()
}
