package http

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

type role int

const (
	roleNone role = iota
	roleHost
	rolePlayer
)

// Client is one websocket connection. It belongs to at most one game, either
// as its host or as one player.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	closed   bool
	gameID   string
	playerID string
	role     role
}

func newClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{id: id, hub: hub, conn: conn, send: make(chan []byte, sendBuffer)}
}

func (c *Client) binding() (gameID, playerID string, r role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID, c.playerID, c.role
}

// enqueue hands data to the write pump. A client that cannot keep up is closed.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Printf("ws send buffer full conn=%s, closing", c.id)
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws marshal conn=%s: %v", c.id, err)
		return
	}
	c.enqueue(data)
}

func (c *Client) sendError(message string) {
	c.sendJSON(outboundMessage[errorPayload]{Type: typeError, Payload: errorPayload{Message: message}})
}

// shutdown closes the send queue; the write pump then closes the socket.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump(handle func(inboundMessage)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read error conn=%s: %v", c.id, err)
			}
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("Invalid message format")
			continue
		}
		handle(msg)
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
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("ws write error conn=%s: %v", c.id, err)
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
