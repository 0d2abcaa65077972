// internal/domain/websocket/types.go
package websocket

import (
	"time"
)

// EventType represents the real-time events the console listens for.
type EventType string

const (
	EventTypePing  EventType = "ping"
	EventTypePong  EventType = "pong"
	EventTypeError EventType = "error"

	// Server -> console
	EventTypeNotification EventType = "notification"
	EventTypeForceLogout  EventType = "session:force_logout"
	EventTypeSiteChanged  EventType = "session:site_changed"
)

// WSMessage is the universal message format.
type WSMessage struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}
