// Package notify pushes cart notices, recovery decisions and integrity logs
// to connected clients over websockets. Each user listens in a room named
// after their id; admins may also join the admins room.
package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"bazaar/globals"
	"bazaar/models"
)

// AdminRoom receives maintenance and integrity output.
const AdminRoom = "admins"

type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	Room   string
	UserID string
}

type broadcastMsg struct {
	Room string
	Data []byte
}

type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for room, conns := range h.rooms {
				for c := range conns {
					close(c.Send)
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.Room] == nil {
				h.rooms[c.Room] = make(map[*Client]bool)
			}
			h.rooms[c.Room][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if conns := h.rooms[c.Room]; conns != nil && conns[c] {
				delete(conns, c)
				close(c.Send)
			}
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[m.Room] {
				select {
				case c.Send <- m.Data:
				default:
					// Slow consumer.
					close(c.Send)
					delete(h.rooms[m.Room], c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Join registers c. It returns false once the hub has stopped.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters c.
func (h *Hub) Leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Listeners reports how many clients are in room.
func (h *Hub) Listeners(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Notice is what clients receive.
type Notice struct {
	Kind      string   `json:"kind"` // "cart", "crash", "integrity", "maintenance", "order"
	Room      string   `json:"room"`
	Messages  []string `json:"messages,omitempty"`
	Data      any      `json:"data,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Publish sends a notice to every client in room. It never blocks on a
// stopped hub.
func (h *Hub) Publish(room, kind string, messages []string, data any) {
	out := Notice{Kind: kind, Room: room, Messages: messages, Data: data, Timestamp: time.Now().Unix()}
	raw, err := json.Marshal(out)
	if err != nil {
		log.Printf("[notify] marshal %s notice: %v", kind, err)
		return
	}
	select {
	case h.broadcast <- broadcastMsg{Room: room, Data: raw}:
	case <-h.done:
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// inboundPayload represents what clients send us.
type inboundPayload struct {
	Action string `json:"action"` // "ping"
}

// WebSocketHandler upgrades an authenticated request and joins the caller's
// room, or the admins room with ?room=admins for admins.
func WebSocketHandler(hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		userID, _ := r.Context().Value(globals.UserIDKey).(string)
		if userID == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		room := userID
		if r.URL.Query().Get("room") == AdminRoom {
			roles, _ := r.Context().Value(globals.RoleKey).([]string)
			if !slices.Contains(roles, models.RoleAdmin) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			room = AdminRoom
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade:", err)
			return
		}
		client := &Client{
			Conn:   conn,
			Send:   make(chan []byte, 256),
			Room:   room,
			UserID: userID,
		}
		if !hub.Join(client) {
			conn.Close()
			return
		}
		go writePump(client)
		go readPump(client, hub)
	}
}

func writePump(c *Client) {
	defer c.Conn.Close()
	for msg := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

func readPump(c *Client, hub *Hub) {
	defer func() {
		hub.Leave(c)
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		var in inboundPayload
		if err := json.Unmarshal(raw, &in); err != nil {
			log.Println("invalid payload:", err)
			continue
		}
		switch in.Action {
		case "ping":
			hub.Publish(c.Room, "pong", nil, nil)
		default:
			log.Println("unknown action:", in.Action)
		}
	}
}
