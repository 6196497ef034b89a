package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eyerest/eyerest_backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// FeedPayload is pushed to realtime dashboards for every public activity.
type FeedPayload struct {
	ActivityType string          `json:"activity_type"`
	ActivityData json.RawMessage `json:"activity_data,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// FeedHub fans public activity feed entries out to websocket clients.
type FeedHub struct {
	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan []byte
	clients    map[*feedClient]struct{}
}

func NewFeedHub() *FeedHub {
	return &FeedHub{
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[*feedClient]struct{}),
	}
}

func (h *FeedHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				client.conn.Close()
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					delete(h.clients, client)
					close(client.send)
					client.conn.Close()
				}
			}
		}
	}
}

// Publish implements timer.FeedPublisher. Private entries are dropped.
func (h *FeedHub) Publish(entry models.LiveActivityFeed) {
	if h == nil || !entry.IsPublic {
		return
	}
	data, err := json.Marshal(FeedPayload{
		ActivityType: entry.ActivityType,
		ActivityData: json.RawMessage(entry.ActivityData),
		CreatedAt:    entry.CreatedAt,
	})
	if err != nil {
		slog.Warn("ws: failed to marshal feed payload", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Hub backlogged; dropping a feed entry is acceptable.
	}
}

type feedClient struct {
	hub  *FeedHub
	conn *websocket.Conn
	send chan []byte
}

func newFeedClient(hub *FeedHub, conn *websocket.Conn) *feedClient {
	return &feedClient{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

func (c *feedClient) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *feedClient) writePump() {
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
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			if err := w.Close(); err != nil {
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
