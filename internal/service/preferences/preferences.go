// internal/service/preferences/preferences.go
package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps per-user console preferences (article list filters, theme) in
// redis. Preferences are a collaborator of the auth flow, not session state.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		ttl:    90 * 24 * time.Hour,
	}
}

func (s *Store) SaveArticleFilters(ctx context.Context, userID string, filters json.RawMessage) error {
	return s.client.Set(ctx, s.filtersKey(userID), []byte(filters), s.ttl).Err()
}

func (s *Store) ArticleFilters(ctx context.Context, userID string) (json.RawMessage, error) {
	data, err := s.client.Get(ctx, s.filtersKey(userID)).Bytes()
	if err == redis.Nil {
		return json.RawMessage("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load article filters: %w", err)
	}
	return json.RawMessage(data), nil
}

func (s *Store) SaveTheme(ctx context.Context, userID, theme string) error {
	return s.client.Set(ctx, s.themeKey(userID), theme, s.ttl).Err()
}

func (s *Store) Theme(ctx context.Context, userID string) (string, error) {
	theme, err := s.client.Get(ctx, s.themeKey(userID)).Result()
	if err == redis.Nil {
		return "light", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load theme: %w", err)
	}
	return theme, nil
}

func (s *Store) filtersKey(userID string) string {
	return fmt.Sprintf("console:prefs:filters:%s", userID)
}

func (s *Store) themeKey(userID string) string {
	return fmt.Sprintf("console:prefs:theme:%s", userID)
}
