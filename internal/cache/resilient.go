package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// FetchFunc reads the upstream value.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Result is a cached value. Stale is set only when the value is served after a failed refresh.
type Result[T any] struct {
	Data      T
	FetchedAt time.Time
	Stale     bool
}

type entry[T any] struct {
	data      T
	fetchedAt time.Time
}

// Resilient is a TTL cache in front of a single upstream read. Fresh values are served from memory,
// expired ones trigger a refresh, and a failed refresh falls back to whatever was last fetched.
type Resilient[T any] struct {
	name  string
	ttl   time.Duration
	fetch FetchFunc[T]
	now   func() time.Time

	mu    sync.RWMutex
	entry *entry[T]
	group singleflight.Group
}

func NewResilient[T any](name string, ttl time.Duration, fetch FetchFunc[T], now func() time.Time) *Resilient[T] {
	if now == nil {
		now = time.Now
	}
	return &Resilient[T]{name: name, ttl: ttl, fetch: fetch, now: now}
}

// Get returns the cached value while it is younger than the TTL, otherwise refreshes.
// Errors wrap domain.ErrUpstreamUnavailable and only occur when nothing was ever cached.
func (c *Resilient[T]) Get(ctx context.Context) (Result[T], error) {
	c.mu.RLock()
	e := c.entry
	c.mu.RUnlock()

	if e != nil && c.now().Sub(e.fetchedAt) < c.ttl {
		metrics.CacheResults.WithLabelValues(c.name, "hit").Inc()
		return Result[T]{Data: e.data, FetchedAt: e.fetchedAt}, nil
	}

	v, err, _ := c.group.Do(c.name, func() (interface{}, error) {
		data, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		fresh := &entry[T]{data: data, fetchedAt: c.now()}
		c.mu.Lock()
		c.entry = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err == nil {
		fresh := v.(*entry[T])
		metrics.CacheResults.WithLabelValues(c.name, "fresh").Inc()
		return Result[T]{Data: fresh.data, FetchedAt: fresh.fetchedAt}, nil
	}

	c.mu.RLock()
	e = c.entry
	c.mu.RUnlock()
	if e == nil {
		metrics.CacheResults.WithLabelValues(c.name, "error").Inc()
		var zero Result[T]
		return zero, fmt.Errorf("%s: %w: %v", c.name, domain.ErrUpstreamUnavailable, err)
	}

	logger.FromContext(ctx).WithError(err).WithField("cache", c.name).
		Warn("upstream refresh failed, serving stale value")
	metrics.CacheResults.WithLabelValues(c.name, "stale").Inc()
	return Result[T]{Data: e.data, FetchedAt: e.fetchedAt, Stale: true}, nil
}

// Invalidate drops the cached value so the next Get fetches.
func (c *Resilient[T]) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
	c.group.Forget(c.name)
}
