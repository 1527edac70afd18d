// Package cache provides in-process ports.ResultCache implementations.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ahrav/go-postfactum/internal/domain"
	"github.com/ahrav/go-postfactum/internal/ports"
)

// ErrNilAdjustment is returned when Set is called without a value.
var ErrNilAdjustment = errors.New("nil adjustment")

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// LRUCache is a size-bounded ports.ResultCache. It stores and returns deep
// copies, so callers may modify what they get back.
type LRUCache struct {
	entries *lru.Cache[string, *domain.Adjustment]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

var _ ports.ResultCache = (*LRUCache)(nil)

// NewLRUCache creates a cache holding at most size adjustments.
func NewLRUCache(size int) (*LRUCache, error) {
	c := &LRUCache{}
	entries, err := lru.NewWithEvict(size, c.handleEviction)
	if err != nil {
		return nil, ports.NewCacheError("", "create", fmt.Errorf("size %d: %w", size, err))
	}
	c.entries = entries
	return c, nil
}

func (c *LRUCache) handleEviction(string, *domain.Adjustment) { c.evictions.Add(1) }

// Get implements ports.ResultCache.
func (c *LRUCache) Get(ctx context.Context, key string) (*domain.Adjustment, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, ports.NewCacheError(key, "get", err)
	}
	adj, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return adj.Clone(), true, nil
}

// Set implements ports.ResultCache.
func (c *LRUCache) Set(ctx context.Context, key string, adj *domain.Adjustment) error {
	if err := ctx.Err(); err != nil {
		return ports.NewCacheError(key, "set", err)
	}
	if adj == nil {
		return ports.NewCacheError(key, "set", ErrNilAdjustment)
	}
	c.entries.Add(key, adj.Clone())
	return nil
}

// Len implements ports.ResultCache.
func (c *LRUCache) Len() int { return c.entries.Len() }

// Purge drops every entry.
func (c *LRUCache) Purge() { c.entries.Purge() }

// Stats returns hit, miss and eviction counts.
func (c *LRUCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.entries.Len(),
	}
}
