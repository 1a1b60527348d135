package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans completed claim records out to websocket subscribers. A slow
// subscriber is dropped rather than allowed to block publishing.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan *domain.ClaimRecord
	log     *logrus.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan *domain.ClaimRecord),
		log:     logger,
	}
}

// Publish sends a record to every subscriber without blocking the caller.
func (h *Hub) Publish(record *domain.ClaimRecord) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, ch := range h.clients {
		select {
		case ch <- record:
		default:
			h.log.WithField("remote", conn.RemoteAddr().String()).
				Warn("Dropping slow stream subscriber")
			go h.remove(conn)
		}
	}
}

// ServeWS upgrades the request and streams records until the client
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithField("error", err.Error()).Warn("Websocket upgrade failed")
		return
	}

	ch := make(chan *domain.ClaimRecord, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	h.log.WithField("remote", conn.RemoteAddr().String()).Info("Stream subscriber connected")

	// Reader goroutine detects client disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()

	for record := range ch {
		if err := conn.WriteJSON(record); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	if ok {
		close(ch)
		conn.Close()
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		h.remove(conn)
	}
}
