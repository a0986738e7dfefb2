package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"socialflow/internal/automation"
	"socialflow/internal/logging"
	"socialflow/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	EventFlowExecuted    = "flow_executed"
	EventMessageReceived = "message_received"

	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from another origin
	},
}

// Client is one dashboard connection, subscribed to a single tenant.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	tenantID string
	send     chan []byte
}

type envelope struct {
	tenantID string
	payload  []byte
}

// Hub fans tenant events out to connected dashboards.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		log:        logging.Component("ws"),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client. Connections arriving after that are refused.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug().Str("tenant_id", client.tenantID).Msg("websocket client registered")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug().Str("tenant_id", client.tenantID).Msg("websocket client unregistered")
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.tenantID != msg.tenantID {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

type WSEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// BroadcastEvent queues an event for the tenant's clients. Events are dropped
// when the queue is full.
func (h *Hub) BroadcastEvent(tenantID, eventType string, data interface{}) {
	payload, err := json.Marshal(WSEvent{Type: eventType, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("type", eventType).Msg("failed to marshal ws event")
		return
	}
	select {
	case h.broadcast <- envelope{tenantID: tenantID, payload: payload}:
	default:
		h.log.Warn().Str("type", eventType).Msg("ws broadcast queue full, event dropped")
	}
}

func (h *Hub) FlowExecuted(tenantID string, result automation.RunResult) {
	h.BroadcastEvent(tenantID, EventFlowExecuted, result)
}

func (h *Hub) MessageReceived(tenantID string, msg *models.Message) {
	h.BroadcastEvent(tenantID, EventMessageReceived, msg)
}

// ServeWs upgrades the request. The tenant comes from the X-Tenant-ID header
// or the tenant query parameter, since browsers cannot set headers on
// websocket handshakes.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get("X-Tenant-ID")
	if tenantID == "" {
		tenantID = r.URL.Query().Get("tenant")
	}
	if tenantID == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{hub: h, conn: conn, tenantID: tenantID, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		// Clients only send pings; reading keeps close frames flowing.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
