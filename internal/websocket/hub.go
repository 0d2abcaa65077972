// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	wstypes "pressroom-service/internal/domain/websocket"
	"pressroom-service/internal/pkg/jwt"
	"pressroom-service/internal/pkg/session"
)

// Hub fans real-time events out to connected consoles. Clients are grouped
// by user id so a logout or a notification reaches every open tab.
type Hub struct {
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	broadcast chan *BroadcastMessage

	jwtVerifier    *jwt.Verifier
	sessionManager *session.Manager
}

type BroadcastMessage struct {
	UserIDs []string
	Message *wstypes.WSMessage
}

func NewHub(jwtVerifier *jwt.Verifier, sessionManager *session.Manager) *Hub {
	return &Hub{
		clients:        make(map[string]map[*Client]bool),
		Register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 256),
		jwtVerifier:    jwtVerifier,
		sessionManager: sessionManager,
	}
}

// AuthenticateClient validates a console token and builds the client's
// identity. The session record must still exist and be authenticated.
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := h.jwtVerifier.VerifyAccessToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	blacklisted, err := h.sessionManager.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, ErrTokenBlacklisted
	}

	rec, err := h.sessionManager.Get(ctx, claims.ID)
	if err != nil || !rec.Authenticated() {
		return nil, ErrSessionExpired
	}

	return &ClientAuth{
		UserID:       claims.UserID,
		SessionJTI:   claims.ID,
		Email:        claims.Email,
		Roles:        claims.Roles,
		SelectedSite: rec.SelectedSite,
	}, nil
}

// Run processes register/unregister/broadcast events until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// NotifyUser pushes a message to every open console of a user.
func (h *Hub) NotifyUser(userID string, msg *wstypes.WSMessage) {
	h.broadcast <- &BroadcastMessage{
		UserIDs: []string{userID},
		Message: msg,
	}
}

// ForceLogout disconnects a user's consoles. With a JTI only the clients of
// that session are dropped; without one, all of them.
func (h *Hub) ForceLogout(userID, jti, reason string) {
	msg := wstypes.NewMessage(wstypes.EventTypeForceLogout, map[string]string{"reason": reason})
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[userID] {
		if jti != "" && client.sessionJTI != jti {
			continue
		}
		select {
		case client.send <- payload:
		default:
		}
		client.cancel()
	}
}

// TotalClients reports the number of live connections across all users.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		if clients[client] {
			delete(clients, client)
			close(client.send)
			if len(clients) == 0 {
				delete(h.clients, client.userID)
			}
		}
	}
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	payload, err := json.Marshal(msg.Message)
	if err != nil {
		log.Printf("[WS] failed to marshal broadcast: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range msg.UserIDs {
		for client := range h.clients[userID] {
			select {
			case client.send <- payload:
			default:
				// Slow consumer; drop the message rather than block the hub
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
			client.cancel()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
