// Package policycache implements the stale-while-revalidate cache of
// per-tool deterministic policies: a fresh hit returns immediately, a stale
// hit returns the old value while scheduling exactly one background
// refresh, and an expired or missing entry blocks on nothing but still
// kicks off a refresh for next time.
package policycache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/palisade-dev/palisade-go/internal/cloudclient"
	"github.com/palisade-dev/palisade-go/internal/constraint"
	"github.com/palisade-dev/palisade-go/internal/telemetry"
)

// DefaultFreshSeconds and DefaultMaxSeconds mirror the reference cache's
// fresh/max horizons.
const (
	DefaultFreshSeconds = 60
	DefaultMaxSeconds   = 300
)

type entry struct {
	policy    constraint.Policy
	staleAt   time.Time
	expiredAt time.Time
}

// PolicyFetcher is the subset of cloudclient.Client the cache depends on.
type PolicyFetcher interface {
	FetchPolicy(ctx context.Context, toolName string) (map[string]any, error)
}

// Cache is a per-tool-name cache of deterministic policies with single-
// flight background refresh. The zero value is not usable; use New.
type Cache struct {
	client         PolicyFetcher
	freshSeconds   time.Duration
	maxSeconds     time.Duration
	refreshTimeout time.Duration
	logger         *slog.Logger

	mu         sync.Mutex
	entries    map[string]*entry
	refreshing map[string]bool

	metrics *telemetry.Metrics
}

// SetMetrics enables Prometheus recording of cache lookups (by fresh/stale/
// expired/miss state) and background refresh outcomes (success/error/empty). Safe
// to call once before the cache sees any traffic; without it the cache
// records nothing.
func (c *Cache) SetMetrics(m *telemetry.Metrics) {
	c.metrics = m
}

// New creates a Cache. A zero fresh/max duration falls back to the
// reference defaults (60s / 300s).
func New(client PolicyFetcher, freshSeconds, maxSeconds time.Duration, logger *slog.Logger) *Cache {
	if freshSeconds <= 0 {
		freshSeconds = DefaultFreshSeconds * time.Second
	}
	if maxSeconds <= 0 {
		maxSeconds = DefaultMaxSeconds * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client:         client,
		freshSeconds:   freshSeconds,
		maxSeconds:     maxSeconds,
		refreshTimeout: 10 * time.Second,
		logger:         logger,
		entries:        make(map[string]*entry),
		refreshing:     make(map[string]bool),
	}
}

// Get returns the cached policy for toolName per the fresh/stale/expired
// rules. It never returns an entry whose expiredAt has passed, and it
// schedules at most one in-flight refresh per tool at a time.
func (c *Cache) Get(toolName string) (constraint.Policy, bool) {
	c.mu.Lock()
	e, ok := c.entries[toolName]
	c.mu.Unlock()

	now := time.Now()

	if !ok {
		c.recordLookup("miss")
		c.backgroundRefresh(toolName)
		return constraint.Policy{}, false
	}
	if now.Before(e.staleAt) {
		c.recordLookup("fresh")
		return e.policy, true
	}
	if now.Before(e.expiredAt) {
		c.recordLookup("stale")
		c.backgroundRefresh(toolName)
		return e.policy, true
	}
	c.recordLookup("expired")
	c.backgroundRefresh(toolName)
	return constraint.Policy{}, false
}

func (c *Cache) recordLookup(state string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(state).Inc()
	}
}

// Invalidate removes the cached entry for toolName, if any.
func (c *Cache) Invalidate(toolName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, toolName)
}

// InvalidateAll removes every cached entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// backgroundRefresh starts exactly one in-flight refresh for toolName. A
// second call while one is already running is a no-op.
func (c *Cache) backgroundRefresh(toolName string) {
	c.mu.Lock()
	if c.refreshing[toolName] {
		c.mu.Unlock()
		return
	}
	c.refreshing[toolName] = true
	c.mu.Unlock()

	go c.doRefresh(toolName)
}

// doRefresh fetches the policy outside the cache lock and installs it on
// success. A nil response or an error leaves the existing entry untouched.
func (c *Cache) doRefresh(toolName string) {
	defer func() {
		c.mu.Lock()
		delete(c.refreshing, toolName)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	doc, err := c.client.FetchPolicy(ctx, toolName)
	if err != nil {
		c.recordRefresh("error")
		return
	}
	if doc == nil {
		c.recordRefresh("empty")
		return
	}

	now := time.Now()
	policy := parsePolicy(toolName, doc)
	policy.FetchedAt = float64(now.UnixNano()) / 1e9

	c.mu.Lock()
	c.entries[toolName] = &entry{
		policy:    policy,
		staleAt:   now.Add(c.freshSeconds),
		expiredAt: now.Add(c.maxSeconds),
	}
	c.mu.Unlock()
	c.recordRefresh("success")
}

func (c *Cache) recordRefresh(outcome string) {
	if c.metrics != nil {
		c.metrics.CacheRefreshes.WithLabelValues(outcome).Inc()
	}
}
