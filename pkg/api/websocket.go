package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uhyunpark/yesno/pkg/app/exchange"
)

const (
	wsSubscribe   = "SUBSCRIBE"
	wsUnsubscribe = "UNSUBSCRIBE"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (CORS handled by main server)
		return true
	},
}

// Hub fans order book snapshots out to websocket clients.
//
// Each symbol is a channel with its own client set. A channel exists only while
// it has subscribers; the last unsubscribe or disconnect tears it down.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{} // orderbookId -> subscribers

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger *zap.SugaredLogger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		channels:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run handles client lifecycle until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Infow("ws_client_connected", "client", client.id, "total", total)

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]struct{})
			h.channels = make(map[string]map[*Client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// remove drops a disconnected client from every channel it joined
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	for channel := range client.subscriptions {
		h.leaveLocked(client, channel)
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Infow("ws_client_disconnected", "client", client.id, "total", len(h.clients))
}

// Subscribe adds client to the channel of orderbookID, creating it if needed
func (h *Hub) Subscribe(client *Client, orderbookID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return // disconnected or hub stopped
	}
	subs, ok := h.channels[orderbookID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[orderbookID] = subs
		h.logger.Infow("ws_channel_opened", "orderbook_id", orderbookID)
	}
	subs[client] = struct{}{}
	client.subscriptions[orderbookID] = struct{}{}
}

// Unsubscribe removes client from a channel
func (h *Hub) Unsubscribe(client *Client, orderbookID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, orderbookID)
}

func (h *Hub) leaveLocked(client *Client, orderbookID string) {
	delete(client.subscriptions, orderbookID)
	subs, ok := h.channels[orderbookID]
	if !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.channels, orderbookID)
		h.logger.Infow("ws_channel_closed", "orderbook_id", orderbookID)
	}
}

// Subscribers returns how many clients listen to orderbookID
func (h *Hub) Subscribers(orderbookID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[orderbookID])
}

// Channels returns the number of open channels
func (h *Hub) Channels() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// Publish forwards payload verbatim to every subscriber of orderbookID.
// Clients whose buffer is full miss this message; the next snapshot replaces it.
func (h *Hub) Publish(orderbookID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.channels[orderbookID] {
		select {
		case client.send <- payload:
		default:
			h.logger.Warnw("ws_client_lagging", "client", client.id, "orderbook_id", orderbookID)
		}
	}
}

// HandleEvent publishes the snapshot carried by an engine event
func (h *Hub) HandleEvent(_ context.Context, ev exchange.Event) error {
	if !ev.HasBook() || h.Subscribers(ev.Book.Symbol) == 0 {
		return nil
	}
	payload, err := json.Marshal(ev.Book)
	if err != nil {
		return err
	}
	h.Publish(ev.Book.Symbol, payload)
	return nil
}

var _ exchange.Sink = (*Hub)(nil)

// Client represents a WebSocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	// guarded by hub.mu
	subscriptions map[string]struct{}
}

// handleMessage applies one subscription request
func (c *Client) handleMessage(message []byte) {
	var req WSRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.reply(WSAck{Type: "ERROR", Message: "invalid message"})
		return
	}
	if req.OrderbookID == "" {
		c.reply(WSAck{Type: "ERROR", Message: "missing orderbookId"})
		return
	}

	switch strings.ToUpper(req.Type) {
	case wsSubscribe:
		c.hub.Subscribe(c, req.OrderbookID)
		c.reply(WSAck{Type: "SUBSCRIBED", OrderbookID: req.OrderbookID})
	case wsUnsubscribe:
		c.hub.Unsubscribe(c, req.OrderbookID)
		c.reply(WSAck{Type: "UNSUBSCRIBED", OrderbookID: req.OrderbookID})
	default:
		c.reply(WSAck{Type: "ERROR", OrderbookID: req.OrderbookID, Message: "unknown type " + req.Type})
	}
}

func (c *Client) reply(ack WSAck) {
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return // send already closed
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warnw("ws_read_error", "client", c.id, "err", err)
			}
			return
		}
		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
// Every snapshot goes out as its own text frame.
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
				// Hub closed the channel
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

// ServeWS upgrades the request and attaches the connection to the hub
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("ws_upgrade_failed", "err", err)
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            conn.RemoteAddr().String(),
		subscriptions: make(map[string]struct{}),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start read and write pumps in separate goroutines
	go client.writePump()
	go client.readPump()
}
