// Package recipients maintains the conversation -> other-party index.
// Inbound realtime frames may omit the sender when the server does not
// echo it, so both the REST response path and the receive path keep this
// cache warm.
package recipients

import "sync"

// Cache is a concurrent conversation id -> recipient user id map. It is
// process-lifetime state, rebuilt from REST responses and refreshed
// incrementally by realtime traffic.
type Cache struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{m: make(map[string]string)}
}

// Put records the other-party user id for a conversation. Empty values
// are ignored so a partial REST response cannot erase a known recipient.
func (c *Cache) Put(conversationID, userID string) {
	if conversationID == "" || userID == "" {
		return
	}
	c.mu.Lock()
	c.m[conversationID] = userID
	c.mu.Unlock()
}

// Get returns the cached recipient for a conversation, if any.
func (c *Cache) Get(conversationID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.m[conversationID]
	return id, ok
}
