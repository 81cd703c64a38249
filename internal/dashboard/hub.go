package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/contrib/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// wsMessage is the envelope of every frame in both directions.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type directMessage struct {
	client *client
	data   []byte
}

// Hub fans dashboard events out to connected WebSocket clients. Only the Run
// goroutine writes to or closes a registered client's send channel.
type Hub struct {
	logger     *slog.Logger
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	direct     chan directMessage
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a Hub. Call Run to start it.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger.With("component", "dashboard_hub"),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, sendBuffer),
		direct:     make(chan directMessage, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Run services the hub until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Dashboard client connected", "clients", n)

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.logger.Warn("Dropping slow dashboard client")
				h.drop(c)
			}

		case dm := <-h.direct:
			h.mu.RLock()
			_, ok := h.clients[dm.client]
			h.mu.RUnlock()
			if ok {
				select {
				case dm.client.send <- dm.data:
				default:
				}
			}

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Info("Dashboard client disconnected", "clients", len(h.clients))
	}
}

// Register adds c. It reports false once the hub has stopped.
func (h *Hub) Register(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its send channel.
func (h *Hub) Unregister(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues msg for every client without blocking; it is dropped when
// the queue is full.
func (h *Hub) Broadcast(msgType string, data any) {
	payload, err := encode(msgType, data)
	if err != nil {
		h.logger.Error("Failed to encode dashboard event", "type", msgType, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Dashboard broadcast queue full, event dropped", "type", msgType)
	}
}

// SendTo queues msg for one client.
func (h *Hub) SendTo(c *client, msgType string, data any) {
	payload, err := encode(msgType, data)
	if err != nil {
		h.logger.Error("Failed to encode dashboard event", "type", msgType, "error", err)
		return
	}
	select {
	case h.direct <- directMessage{client: c, data: payload}:
	case <-h.done:
	default:
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(msgType string, data any) ([]byte, error) {
	return sonic.Marshal(wsMessage{Type: msgType, Data: data})
}

// writePump drains c.send to the connection and keeps it alive with pings.
// done is closed once it stops touching the connection.
func writePump(c *client, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client requests until the connection fails, passing each
// request type to handle.
func readPump(c *client, handle func(msgType string)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var req struct {
			Type string `json:"type"`
		}
		if err := sonic.Unmarshal(raw, &req); err != nil {
			continue
		}
		handle(req.Type)
	}
}
