package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/bus"
)

const (
	hubComponentName = "transport.ws.hub"

	MessageNewOrders   = "new_orders"
	MessageOrderFilled = "order_filled"
	MessageCancelled   = "orders_cancelled"
	MessagePositions   = "positions"
	MessagePnL         = "pnl"
	MessageReady       = "ready"
	MessageFinished    = "finished"
	MessageNext        = "next"

	sendBufferSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
)

var messageTypes = map[string]string{
	bus.TopicOrderNew:           MessageNewOrders,
	bus.TopicOrderFilled:        MessageOrderFilled,
	bus.TopicOrderCancelled:     MessageCancelled,
	bus.TopicPositionUpdated:    MessagePositions,
	bus.TopicAccountPnL:         MessagePnL,
	bus.TopicSimulationFinished: MessageFinished,
}

// Continuer resumes a tick loop waiting for an external acknowledgement.
type Continuer interface {
	Continue()
}

type Message struct {
	Type    string `json:"type"`
	Tick    int64  `json:"tick,omitempty"`
	EventID string `json:"event_id,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type inbound struct {
	Type string `json:"type"`
}

// Hub mirrors bus events to websocket clients and turns their "next" messages into Continue calls.
// It only observes: delivery problems are logged and never reach the bus.
type Hub struct {
	logger    *zap.Logger
	continuer Continuer
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(logger *zap.Logger, continuer Continuer) *Hub {
	return &Hub{
		logger:    logger.Named(hubComponentName),
		continuer: continuer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// Attach subscribes the hub to every topic of b.
func (h *Hub) Attach(b *bus.Bus) bus.Token {
	return b.Subscribe(bus.Wildcard, h.OnEvent)
}

func (h *Hub) OnEvent(event bus.Event) error {
	messageType, ok := messageTypes[event.Type]
	if !ok {
		return nil
	}

	h.Broadcast(Message{
		Type:    messageType,
		Tick:    event.Tick,
		EventID: event.ID,
		Data:    event.Data,
	})

	// account.pnl closes every tick, so clients may ask for the next one.
	if event.Type == bus.TopicAccountPnL {
		h.Broadcast(Message{Type: MessageReady, Tick: event.Tick})
	}
	return nil
}

func (h *Hub) Broadcast(message Message) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Warn("unable to marshal message", zap.String("type", message.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("client too slow, disconnecting", zap.String("remote", c.remote))
			h.drop(c)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("unable to upgrade connection", zap.Error(err))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		remote: r.RemoteAddr,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("client connected", zap.String("remote", c.remote))

	go c.writePump()
	c.readPump()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	h.drop(c)
	h.mu.Unlock()
	h.logger.Info("client disconnected", zap.String("remote", c.remote))
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("read error", zap.String("remote", c.remote), zap.Error(err))
			}
			return
		}

		var message inbound
		if err := json.Unmarshal(payload, &message); err != nil {
			c.hub.logger.Warn("invalid message", zap.String("remote", c.remote), zap.Error(err))
			continue
		}

		switch message.Type {
		case MessageNext:
			if c.hub.continuer != nil {
				c.hub.continuer.Continue()
			}
		default:
			c.hub.logger.Debug("ignoring message", zap.String("type", message.Type))
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
