// ABOUTME: Thread-safe TTL cache of Gemini clients keyed by API key
// ABOUTME: Size-bounded with oldest-first eviction so many distinct keys can't grow memory without bound

package genai

import (
	"container/list"
	"sync"
	"time"
)

// clientEntry stores the client, its last-use timestamp and list element.
type clientEntry struct {
	client   *Client
	lastUsed time.Time
	element  *list.Element
}

// ClientCache hands out Gemini clients keyed by API key. Building a
// client is cheap but each one carries connection state worth reusing; the
// cache bounds both staleness (TTL) and size (LRU-style eviction), with a
// background goroutine sweeping expired entries.
type ClientCache struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	order   *list.List // keys in recency order, oldest at front
	ttl     time.Duration
	maxSize int
	opts    []ClientOption
	done    chan struct{}
	closed  bool
}

// NewClientCache creates a cache with the given TTL and maximum size.
// The opts are applied to every client it builds.
func NewClientCache(ttl time.Duration, maxSize int, opts ...ClientOption) *ClientCache {
	c := &ClientCache{
		clients: make(map[string]*clientEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		opts:    opts,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the cached client for the key, building one on a miss.
func (c *ClientCache) Get(apiKey string) (*Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.clients[apiKey]; ok && time.Since(entry.lastUsed) < c.ttl {
		entry.lastUsed = time.Now()
		c.order.MoveToBack(entry.element)
		return entry.client, nil
	}

	client, err := NewClient(apiKey, c.opts...)
	if err != nil {
		return nil, err
	}

	if entry, ok := c.clients[apiKey]; ok {
		// Expired entry being replaced in place
		entry.client = client
		entry.lastUsed = time.Now()
		c.order.MoveToBack(entry.element)
		return client, nil
	}

	if len(c.clients) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(apiKey)
	c.clients[apiKey] = &clientEntry{
		client:   client,
		lastUsed: time.Now(),
		element:  elem,
	}
	return client, nil
}

// Len returns the number of cached clients.
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// evictOldest removes the least recently used entry. Must be called with
// mu held.
func (c *ClientCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.clients, key)
}

// cleanup periodically drops expired entries.
func (c *ClientCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

func (c *ClientCache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.clients {
		if now.Sub(entry.lastUsed) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.clients, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call twice.
func (c *ClientCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
