// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager persists console session records in Redis. Records are keyed by
// token JTI and indexed per user so sessions can be listed and revoked.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	return &Manager{
		client: client,
		ttl:    ttl,
	}
}

// Save stores (or replaces) a session record under its JTI.
func (m *Manager) Save(ctx context.Context, rec *Record) error {
	if rec.JTI == "" {
		return fmt.Errorf("session record has no jti")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := m.client.Set(ctx, m.sessionKey(rec.JTI), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}

	if rec.User != nil && rec.User.ID != "" {
		// Index for listing/revoking a user's sessions
		if err := m.client.SAdd(ctx, m.userKey(rec.User.ID), rec.JTI).Err(); err == nil {
			m.client.Expire(ctx, m.userKey(rec.User.ID), m.ttl)
		}
	}

	return nil
}

// Get rehydrates the session record for a JTI. A missing key returns
// redis.Nil wrapped; a stale or malformed record degrades to a fresh
// unauthenticated record rather than failing the request.
func (m *Manager) Get(ctx context.Context, jti string) (*Record, error) {
	data, err := m.client.Get(ctx, m.sessionKey(jti)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return &Record{JTI: jti, State: StateUnauthenticated}, nil
	}
	if rec.State == "" {
		rec.State = StateUnauthenticated
	}

	rec.LastActivityAt = time.Now()
	return &rec, nil
}

// Invalidate removes a session record. Removing a record that is already
// gone is not an error.
func (m *Manager) Invalidate(ctx context.Context, jti string) error {
	rec, err := m.Get(ctx, jti)
	if err == nil && rec.User != nil && rec.User.ID != "" {
		m.client.SRem(ctx, m.userKey(rec.User.ID), jti)
	}

	if err := m.client.Del(ctx, m.sessionKey(jti)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SessionsForUser returns the live session records indexed for a user.
func (m *Manager) SessionsForUser(ctx context.Context, userID string) ([]*Record, error) {
	jtis, err := m.client.SMembers(ctx, m.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var records []*Record
	for _, jti := range jtis {
		rec, err := m.Get(ctx, jti)
		if err != nil {
			// Expired entry still in the index
			m.client.SRem(ctx, m.userKey(userID), jti)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// InvalidateAllForUser removes every indexed session of a user.
func (m *Manager) InvalidateAllForUser(ctx context.Context, userID string) error {
	jtis, err := m.client.SMembers(ctx, m.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, jti := range jtis {
		m.client.Del(ctx, m.sessionKey(jti))
	}
	return m.client.Del(ctx, m.userKey(userID)).Err()
}

// BlacklistToken marks a JTI revoked until its natural expiry.
func (m *Manager) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	return m.client.Set(ctx, m.blacklistKey(jti), "1", ttl).Err()
}

// IsTokenBlacklisted checks whether a JTI has been revoked.
func (m *Manager) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := m.client.Exists(ctx, m.blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

// Helper functions
func (m *Manager) sessionKey(jti string) string {
	return fmt.Sprintf("console:sess:%s", jti)
}

func (m *Manager) userKey(userID string) string {
	return fmt.Sprintf("console:user_sessions:%s", userID)
}

func (m *Manager) blacklistKey(jti string) string {
	return fmt.Sprintf("console:blacklist:%s", jti)
}
