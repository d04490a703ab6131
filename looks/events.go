package looks

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Feed event types pushed over the live websocket.
const (
	EventLookPublished = "look.published"
	EventLookLiked     = "look.liked"
)

// FeedEvent is one live update on the public feed.
type FeedEvent struct {
	Type      string `json:"type"`
	PublicID  string `json:"public_id"`
	OwnerName string `json:"owner_name,omitempty"`
	Title     string `json:"title,omitempty"`
	LikeCount int64  `json:"like_count,omitempty"`
}

const writeTimeout = 5 * time.Second

// Hub fans feed events out to every connected websocket client. Clients that
// cannot keep up are dropped rather than blocking the broadcast.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and keeps the connection registered until the
// peer goes away. Inbound messages are discarded; the stream is one-way.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("looks: websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends an event to every connected client. The hub lock also
// serializes writes; gorilla/websocket allows only one concurrent writer per
// connection.
func (h *Hub) Broadcast(event FeedEvent) {
	h.mu.Lock()
	var failed []*websocket.Conn
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// ClientCount reports the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, present := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if present {
		conn.Close()
	}
}
