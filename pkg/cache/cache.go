// Package cache provides a TTL-bounded, invalidation-aware cache for hot
// knowledge nodes, sitting in front of the graph store. State is explicit
// and keyed by owner+node, never ambient.
package cache

import (
	"sync"
	"time"

	"github.com/dan-solli/recall/pkg/store"
)

type entry struct {
	node      *store.Node
	expiresAt time.Time
}

// NodeCache caches nodes with a fixed TTL. Writes to a node must call
// Invalidate; expiry handles the rest.
type NodeCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
	now func() time.Time
}

// NewNodeCache creates a cache with the given TTL. A non-positive TTL
// defaults to one minute.
func NewNodeCache(ttl time.Duration) *NodeCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &NodeCache{
		ttl: ttl,
		m:   make(map[string]entry),
		now: time.Now,
	}
}

func key(ownerID, nodeID string) string {
	return ownerID + "\x00" + nodeID
}

// Get returns the cached node, or nil when absent or expired.
func (c *NodeCache) Get(ownerID, nodeID string) *store.Node {
	c.mu.RLock()
	e, ok := c.m[key(ownerID, nodeID)]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil
	}
	return e.node
}

// Put stores a node.
func (c *NodeCache) Put(node *store.Node) {
	if node == nil {
		return
	}
	c.mu.Lock()
	c.m[key(node.OwnerID, node.ID)] = entry{node: node, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops a node after any mutation.
func (c *NodeCache) Invalidate(ownerID, nodeID string) {
	c.mu.Lock()
	delete(c.m, key(ownerID, nodeID))
	c.mu.Unlock()
}

// InvalidateOwner drops every cached node of an owner, for cascading
// deletes whose edge fan-out the caller does not want to enumerate.
func (c *NodeCache) InvalidateOwner(ownerID string) {
	prefix := ownerID + "\x00"
	c.mu.Lock()
	for k := range c.m {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.m, k)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of cached entries, expired included.
func (c *NodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
