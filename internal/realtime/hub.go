// Package realtime pushes funnel events to websocket subscribers.
package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"

	"github.com/seuros/pathflow/internal/logging"
)

// Hub fans messages out to connected clients. Clients may subscribe to a
// single website; an empty subscription receives everything.
type Hub struct {
	register    chan *Client
	unregister  chan *Client
	broadcast   chan message
	clientCount chan chan int
	done        chan struct{}
	clients     map[*Client]struct{}
}

type message struct {
	websiteID string
	payload   []byte
}

type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

type Client struct {
	hub       *Hub
	conn      wsConn
	send      chan []byte
	websiteID string
}

type pingTicker interface {
	C() <-chan time.Time
	Stop()
}

type realPingTicker struct {
	*time.Ticker
}

func (t *realPingTicker) C() <-chan time.Time {
	return t.Ticker.C
}

var pingTickerFactory = func() pingTicker {
	return &realPingTicker{time.NewTicker(30 * time.Second)}
}

func NewHub() *Hub {
	h := &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan message, 256),
		clientCount: make(chan chan int),
		done:        make(chan struct{}),
		clients:     make(map[*Client]struct{}),
	}

	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				_ = client.conn.Close()
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.websiteID != "" && client.websiteID != msg.websiteID {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		case response := <-h.clientCount:
			response <- len(h.clients)
		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// Stop disconnects every client and ends the hub loop.
func (h *Hub) Stop() {
	close(h.done)
}

// Publish routes a raw notification payload to the subscribers of its website.
func (h *Hub) Publish(payload []byte) {
	var head struct {
		WebsiteID string `json:"website_id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		logging.L().Warn("ignoring malformed realtime payload", "error", err)
		return
	}
	h.enqueue(message{websiteID: head.WebsiteID, payload: payload})
}

// Broadcast encodes and routes a funnel event.
func (h *Hub) Broadcast(event FunnelEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.L().Warn("failed to marshal realtime payload", "error", err)
		return
	}
	h.enqueue(message{websiteID: event.WebsiteID, payload: payload})
}

func (h *Hub) enqueue(msg message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.L().Warn("dropping realtime payload", slog.String("reason", "slow consumers"))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	response := make(chan int)
	h.clientCount <- response
	return <-response
}

// Handler upgrades the connection; ?website_id= narrows the subscription.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			hub:       h,
			conn:      conn,
			send:      make(chan []byte, 64),
			websiteID: conn.Query("website_id"),
		}

		h.register <- client

		go client.writePump()
		client.readPump()
	})
}

// Upgrade rejects plain HTTP requests on the websocket route.
func Upgrade(c fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := pingTickerFactory()
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C():
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
