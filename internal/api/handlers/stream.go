package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// StreamMessage is one frame sent to websocket clients
type StreamMessage struct {
	Type    string               `json:"type"` // index event type or "ping"
	Payload contracts.IndexEvent `json:"payload"`
}

type streamClient struct {
	send chan StreamMessage
}

// Hub fans index events out to websocket clients.
// Slow clients whose buffer is full are disconnected.
// ⭐ SSOT: 실시간 지수 이벤트 스트림은 여기서만
type Hub struct {
	mu       sync.RWMutex
	clients  map[*streamClient]struct{}
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

var _ contracts.EventPublisher = (*Hub)(nil)

// NewHub creates a hub; allowedOrigins ["*"] accepts any origin
func NewHub(allowedOrigins []string, log *logger.Logger) *Hub {
	h := &Hub{
		clients: make(map[*streamClient]struct{}),
		logger:  log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts an event to every connected client
func (h *Hub) Publish(_ context.Context, event contracts.IndexEvent) error {
	msg := StreamMessage{Type: event.Type, Payload: event}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// 버퍼가 가득 찬 클라이언트는 끊음
			delete(h.clients, c)
			close(c.send)
		}
	}
	return nil
}

// Relay forwards events from a channel (the Redis subscription) until it closes
func (h *Hub) Relay(ctx context.Context, events <-chan contracts.IndexEvent) {
	for event := range events {
		_ = h.Publish(ctx, event)
	}
}

func (h *Hub) register() *streamClient {
	c := &streamClient{send: make(chan StreamMessage, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeWS upgrades the connection and streams index events
// GET /ws/index
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := h.register()
	h.logger.WithField("remote_addr", r.RemoteAddr).Info("WebSocket client connected")

	done := make(chan struct{})
	go h.readPump(conn, client, done)
	h.writePump(conn, client, done)

	h.logger.WithField("remote_addr", r.RemoteAddr).Info("WebSocket client disconnected")
}

// readPump discards client frames and detects close
func (h *Hub) readPump(conn *websocket.Conn, client *streamClient, done chan<- struct{}) {
	defer close(done)
	defer h.unregister(client)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, client *streamClient, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.unregister(client)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(client)
				return
			}
		case <-done:
			return
		}
	}
}
