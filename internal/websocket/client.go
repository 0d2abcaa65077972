// internal/websocket/client.go
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	wstypes "pressroom-service/internal/domain/websocket"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ClientAuth holds the identity resolved during the websocket handshake.
type ClientAuth struct {
	UserID       string
	SessionJTI   string
	Email        string
	Roles        []string
	SelectedSite string
}

type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	userID     string
	sessionJTI string
	email      string

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, auth *ClientAuth) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		userID:     auth.UserID,
		sessionJTI: auth.SessionJTI,
		email:      auth.Email,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// ReadPump consumes inbound frames. The console only sends pings; anything
// else is ignored.
func (c *Client) ReadPump() {
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
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] unexpected close for %s: %v", c.email, err)
			}
			return
		}

		var msg wstypes.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type == wstypes.EventTypePing {
			pong, _ := json.Marshal(wstypes.NewMessage(wstypes.EventTypePong, nil))
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}

// WritePump streams outbound frames and keeps the connection alive with
// pings.
func (c *Client) WritePump() {
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

		case <-c.ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
