// Package websocket pushes unlock/claim events to connected clients so the
// UI gets toasts without polling. The hub subscribes to the tracker's
// listener fan-out; it never touches storage.
package websocket

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/chronochess/progress/internal/models"
	"github.com/chronochess/progress/internal/progress"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by the CORS layer in front.
		return true
	},
}

type Event struct {
	Type        string             `json:"type"` // "unlocked" or "claimed"
	Achievement models.Achievement `json:"achievement"`
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastEvent fans an achievement event out to every connected client.
func (h *Hub) BroadcastEvent(eventType string, a models.Achievement) {
	data, err := json.Marshal(Event{Type: eventType, Achievement: a})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Nobody is draining the hub; drop rather than block a claim.
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func handleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256)}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// RegisterRoutes starts the hub, wires it to the tracker's listener
// fan-out and exposes the /ws endpoint.
func RegisterRoutes(r *mux.Router, tracker *progress.Tracker) *Hub {
	hub := NewHub()
	go hub.Run()

	tracker.OnUnlock(func(a models.Achievement) {
		hub.BroadcastEvent("unlocked", a)
	})
	tracker.OnClaim(func(a models.Achievement) {
		hub.BroadcastEvent("claimed", a)
	})

	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, w, r)
	})
	return hub
}
