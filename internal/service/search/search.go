// internal/service/search/search.go
package search

import (
	"context"
	"net/url"
	"sync"
	"time"

	"pressroom-service/internal/pkg/session"
	"pressroom-service/internal/upstream"

	"go.uber.org/zap"
)

// Service runs list/search queries against the upstream platform on behalf
// of an authenticated session and normalizes whatever envelope shape comes
// back. Server and network failures degrade to an empty page with one
// rate-limited warn instead of failing the view.
type Service struct {
	client *upstream.Client
	logger *zap.Logger
	warns  *warnLimiter
}

func NewService(client *upstream.Client, logger *zap.Logger) *Service {
	return &Service{
		client: client,
		logger: logger,
		warns:  newWarnLimiter(30 * time.Second),
	}
}

// List fetches a resource listing. Client errors (including 403) propagate
// so the handler can answer precisely; transient failures yield the empty
// page and a nil error.
func (s *Service) List(ctx context.Context, rec *session.Record, path string, query url.Values) (upstream.ListPage, error) {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}

	resp, callErr := s.client.Do(ctx, "GET", path, nil, upstream.Options{
		Token: rec.UpstreamToken,
		Site:  rec.SelectedSite,
		Quiet: true,
	})
	if callErr != nil {
		if callErr.IsClient() {
			return upstream.EmptyListPage(), callErr
		}
		// Transient: degrade to empty results, warn at most once per window
		if s.warns.allow(path) {
			s.logger.Warn("search degraded to empty results",
				zap.String("path", path),
				zap.String("kind", callErr.Kind.String()),
				zap.Int("status", callErr.Status),
			)
		}
		return upstream.EmptyListPage(), nil
	}

	return upstream.NormalizeList(resp.Body), nil
}

// Detail fetches a single resource document.
func (s *Service) Detail(ctx context.Context, rec *session.Record, path string) ([]byte, *upstream.CallError) {
	resp, callErr := s.client.Do(ctx, "GET", path, nil, upstream.Options{
		Token: rec.UpstreamToken,
		Site:  rec.SelectedSite,
		Quiet: true,
	})
	if callErr != nil {
		return nil, callErr
	}
	return resp.Body, nil
}

// warnLimiter rate-limits warn logs per key so a flapping upstream emits a
// single notification per window, not one per retry.
type warnLimiter struct {
	mu       sync.Mutex
	last     map[string]time.Time
	interval time.Duration
}

func newWarnLimiter(interval time.Duration) *warnLimiter {
	return &warnLimiter{
		last:     make(map[string]time.Time),
		interval: interval,
	}
}

func (w *warnLimiter) allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if t, ok := w.last[key]; ok && now.Sub(t) < w.interval {
		return false
	}
	w.last[key] = now
	return true
}
