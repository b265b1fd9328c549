// Package ws pushes dashboard snapshots to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/polyscreen/polyscreen-backend/internal/metrics"
	"github.com/polyscreen/polyscreen-backend/internal/store"
)

// TopicDashboard carries dashboard snapshots. Clients are subscribed to it
// on connect.
const TopicDashboard = "dashboard"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	idleTimeout    = 2 * time.Minute
	maxMessageSize = 512
	sendBuffer     = 16
)

type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	// closed when Run returns
	done       chan struct{}
	cache      *store.Cache
	upgrader   websocket.Upgrader
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	mu         sync.RWMutex
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	topicsMu sync.RWMutex
	topics   map[string]bool

	// unix nanoseconds
	lastActive atomic.Int64
}

type Message struct {
	// "snapshot" on connect, "update" after each refresh.
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type SubscriptionRequest struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

// NewHub creates a hub. Origins matching the request host are always
// admitted; allowedOrigins lists the cross-origin ones ("*" admits any).
func NewHub(cache *store.Cache, allowedOrigins []string, logger *zap.SugaredLogger, m *metrics.Metrics) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		cache:      cache,
		logger:     logger,
		metrics:    m,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin.
			if origin == "" || slices.Contains(allowedOrigins, origin) || slices.Contains(allowedOrigins, "*") {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
	return h
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	go h.relay(ctx)
	go h.startClientCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			h.logger.Infow("WebSocket hub shutting down")
			h.mu.Lock()
			for c := range h.clients {
				h.dropLocked(ctx, c)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.metrics.IncrementConnections(ctx)
			h.logger.Debugw("Client registered", "remote", client.conn.RemoteAddr().String())

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(ctx, client)
			h.mu.Unlock()
		}
	}
}

// dropLocked removes c once; h.mu must be held for writing.
func (h *Hub) dropLocked(ctx context.Context, c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.DecrementConnections(ctx)
	h.logger.Debugw("Client unregistered", "remote", c.conn.RemoteAddr().String())
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// relay forwards published dashboard snapshots to subscribed clients.
func (h *Hub) relay(ctx context.Context) {
	sub := h.cache.Subscribe(ctx, store.ChannelDashboard)
	defer sub.Close()

	h.logger.Debugw("WebSocket hub subscribed", "channel", store.ChannelDashboard, "in_memory", h.cache.IsInMemoryMode())

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			h.Broadcast(ctx, TopicDashboard, "update", json.RawMessage(msg.Payload))
		}
	}
}

// Broadcast sends data to every client subscribed to topic. Clients whose
// send buffer is full are disconnected.
func (h *Hub) Broadcast(ctx context.Context, topic, kind string, data json.RawMessage) {
	payload, err := encode(topic, kind, data)
	if err != nil {
		h.logger.Errorw("Failed to marshal WebSocket message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if !c.isSubscribed(topic) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.logger.Warnw("Dropping slow WebSocket client", "remote", c.conn.RemoteAddr().String())
			h.dropLocked(ctx, c)
		}
	}
}

func encode(topic, kind string, data json.RawMessage) ([]byte, error) {
	return json.Marshal(Message{
		Type:      kind,
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Hub) startClientCleanup(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupInactiveClients(ctx, time.Now().Add(-idleTimeout))
		}
	}
}

func (h *Hub) cleanupInactiveClients(ctx context.Context, cutoff time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if time.Unix(0, c.lastActive.Load()).Before(cutoff) {
			h.dropLocked(ctx, c)
			h.logger.Debugw("Cleaned up inactive client")
		}
	}
}

// HandleWebSocket upgrades the request and sends the latest dashboard
// snapshot, if one has been published.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		topics: map[string]bool{TopicDashboard: true},
	}
	client.touch()

	var snapshot json.RawMessage
	switch err := h.cache.Get(r.Context(), store.KeyDashboard, &snapshot); {
	case err == nil:
		if payload, err := encode(TopicDashboard, "snapshot", snapshot); err == nil {
			client.send <- payload
		}
	case !errors.Is(err, store.ErrCacheMiss):
		h.logger.Warnw("Failed to load dashboard snapshot", "error", err)
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorw("WebSocket error", "error", err)
			}
			return
		}

		c.touch()
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var req SubscriptionRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.hub.logger.Warnw("Invalid subscription message", "error", err)
		return
	}

	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()

	switch req.Type {
	case "subscribe":
		for _, t := range req.Topics {
			c.topics[t] = true
		}
	case "unsubscribe":
		for _, t := range req.Topics {
			delete(c.topics, t)
		}
	default:
		c.hub.logger.Debugw("Unknown message type", "type", req.Type)
	}
}

func (c *Client) isSubscribed(topic string) bool {
	c.topicsMu.RLock()
	defer c.topicsMu.RUnlock()
	return c.topics[topic]
}
