// internal/pkg/refcache/refcache.go

// Package refcache caches slow-changing reference datasets for the life of
// the process. Concurrent loads of an empty cache collapse into a single
// loader call; a failed load stores the fallback value so readers never see
// an absent dataset after the first attempt.
package refcache

import (
	"context"
	"sync"
)

// Loader fetches the dataset. It runs at most once per load cycle no matter
// how many callers are waiting.
type Loader[T any] func(ctx context.Context) (T, error)

// Cache holds one dataset. Get, EnsureLoaded and Reset are the only
// mutators; the zero value is not usable, construct with New.
type Cache[T any] struct {
	mu       sync.Mutex
	value    *T
	inFlight chan struct{}
	loader   Loader[T]
	fallback T
}

func New[T any](loader Loader[T], fallback T) *Cache[T] {
	return &Cache[T]{
		loader:   loader,
		fallback: fallback,
	}
}

// Get returns the cached value without triggering a load. The second result
// is false until the first load cycle has completed.
func (c *Cache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil {
		return c.fallback, false
	}
	return *c.value, true
}

// EnsureLoaded returns the cached value, loading it first if needed. When a
// load is already in flight the caller waits for it instead of issuing a
// duplicate fetch. A caller whose context ends while waiting gets the
// fallback; the shared load runs detached from any caller's context and
// keeps going for the remaining waiters.
func (c *Cache[T]) EnsureLoaded(ctx context.Context) T {
	for {
		c.mu.Lock()
		if c.value != nil {
			v := *c.value
			c.mu.Unlock()
			return v
		}

		if c.inFlight != nil {
			done := c.inFlight
			c.mu.Unlock()
			select {
			case <-done:
				// Re-read; Reset may have raced the completion.
				continue
			case <-ctx.Done():
				return c.fallback
			}
		}

		done := make(chan struct{})
		c.inFlight = done
		c.mu.Unlock()

		// The load is shared; the initiating caller's context must not be
		// able to cancel it for everyone else.
		v, err := c.loader(context.WithoutCancel(ctx))
		c.mu.Lock()
		if err != nil {
			stored := c.fallback
			c.value = &stored
		} else {
			c.value = &v
		}
		result := *c.value
		c.inFlight = nil
		c.mu.Unlock()
		close(done)
		return result
	}
}

// Reset clears the cached value so the next EnsureLoaded fetches again.
func (c *Cache[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
}
