package realtime

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// Message is the envelope pushed to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type push struct {
	userID int
	body   []byte
}

// Client is one websocket connection. A user can hold several at once
// (multiple tabs); each gets its own Client.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID int
}

// Hub tracks live connections and routes messages to a user's connections.
type Hub struct {
	clients    map[*Client]bool
	pushes     chan push
	register   chan *Client
	unregister chan *Client
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		pushes:     make(chan push, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// NewClient wires a fresh connection into the hub and starts its pumps.
func (h *Hub) NewClient(conn *websocket.Conn, userID int) *Client {
	c := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: userID,
	}
	h.register <- c
	go c.writePump()
	go c.readPump()
	return c
}

// Push sends a typed message to every live connection of one user.
// Delivery is best-effort: when nothing is connected the message is dropped,
// the notifications table is the durable record.
func (h *Hub) Push(userID int, msgType string, data any) {
	body, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.Warn("Failed to marshal realtime message",
			zap.String("type", msgType),
			zap.Error(err),
		)
		return
	}
	select {
	case h.pushes <- push{userID: userID, body: body}:
	default:
		h.logger.Warn("Realtime push buffer full, dropping message",
			zap.Int("user_id", userID),
			zap.String("type", msgType),
		)
	}
}

// Run is the hub's main loop. Call it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("Websocket client connected",
				zap.Int("user_id", client.userID),
				zap.Int("clients", len(h.clients)),
			)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("Websocket client disconnected",
					zap.Int("user_id", client.userID),
					zap.Int("clients", len(h.clients)),
				)
			}
		case p := <-h.pushes:
			for client := range h.clients {
				if client.userID != p.userID {
					continue
				}
				select {
				case client.send <- p.body:
				default:
					// Send buffer full, assume the connection is dead.
					h.logger.Warn("Websocket send buffer full, dropping client",
						zap.Int("user_id", client.userID),
					)
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// readPump drains the connection. Clients do not send application messages;
// the loop exists to process pongs and notice closes.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Websocket read error",
					zap.Int("user_id", c.userID),
					zap.Error(err),
				)
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
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
				// The hub closed the channel.
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
