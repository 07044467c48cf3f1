// Package live pushes domain events to dashboards over websockets.
package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"emargement/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

type message struct {
	typ     events.Type
	payload []byte
}

// Hub tracks connected dashboards. All client bookkeeping happens on the
// Run goroutine.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan message
	count      chan chan int
	clients    map[*client]struct{}
	upgrader   websocket.Upgrader
}

// NewHub builds a hub; checkOrigin may be nil to accept any origin.
func NewHub(checkOrigin func(*http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 256),
		count:      make(chan chan int),
		clients:    make(map[*client]struct{}),
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			h.drop(c)
		case reply := <-h.count:
			reply <- len(h.clients)
		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.wants(msg.typ) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Clients returns the number of connected dashboards.
func (h *Hub) Clients(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-ctx.Done():
		return 0
	}
}

// Handle implements events.Sink. It never blocks the caller; when the
// broadcast buffer is full the event is dropped for live viewers.
func (h *Hub) Handle(_ context.Context, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- message{typ: evt.Type, payload: data}:
	default:
		log.Printf("ws: broadcast buffer full, dropping %s", evt.Type)
	}
	return nil
}

// Handler upgrades GET /ws. The optional "topic" query keeps only events
// whose type starts with one of the comma-separated prefixes.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var topics []string
		for _, t := range strings.Split(c.Query("topic"), ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		cl := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize), topics: topics}
		select {
		case h.register <- cl:
		case <-c.Request.Context().Done():
			conn.Close()
			return
		}

		go cl.writePump()
		cl.readPump()
	}
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topics []string
}

func (c *client) wants(t events.Type) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, p := range c.topics {
		if strings.HasPrefix(string(t), p) {
			return true
		}
	}
	return false
}

// readPump only watches for pongs and disconnects; dashboards never send.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-time.After(writeWait):
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
